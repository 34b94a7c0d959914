package record

import (
	"context"
	"slices"
	"strings"

	"github.com/roach88/rowkit/internal/ordered"
)

// appendEntry is one output-only field. list entries render the named
// relation restricted to fields.
type appendEntry struct {
	name   string
	fields []string
	list   bool
}

// projection carries output rules pushed down from a parent record.
type projection struct {
	visible []string
	hidden  []string
	appends []string
}

// Visible adds fields to the output allow-list, or replaces it with
// override. "relation.field" entries restrict a nested relation.
func (r *Record) Visible(fields []string, override bool) *Record {
	if override {
		r.visible = slices.Clone(fields)
	} else {
		r.visible = append(r.visible, fields...)
	}
	return r
}

// Hidden adds fields to the output deny-list, or replaces it with
// override. "relation.field" entries hide a nested field.
func (r *Record) Hidden(fields []string, override bool) *Record {
	if override {
		r.hidden = slices.Clone(fields)
	} else {
		r.hidden = append(r.hidden, fields...)
	}
	return r
}

// Append adds output-only fields read through Get, or replaces them with
// override. "relation.field" entries render one field of a relation.
func (r *Record) Append(names []string, override bool) *Record {
	if override {
		r.appends = nil
	}
	for _, n := range names {
		r.appends = append(r.appends, appendEntry{name: n})
	}
	return r
}

// AppendRelated adds a relation to the output, restricted to fields.
func (r *Record) AppendRelated(relation string, fields ...string) *Record {
	r.appends = append(r.appends, appendEntry{name: relation, fields: slices.Clone(fields), list: true})
	return r
}

// ToOutput projects the record and its loaded relations into an ordered
// map under the visible, hidden and append rules.
func (r *Record) ToOutput(ctx context.Context) (*ordered.Map, error) {
	return r.output(ctx, projection{})
}

// ToJSON renders ToOutput as JSON, preserving key order.
func (r *Record) ToJSON(ctx context.Context) ([]byte, error) {
	out, err := r.ToOutput(ctx)
	if err != nil {
		return nil, err
	}
	return ordered.Marshal(out)
}

// rules splits plain names from "relation.field" entries.
type rules struct {
	names  map[string]bool
	nested map[string][]string
}

func splitRules(entries []string) rules {
	rs := rules{names: make(map[string]bool), nested: make(map[string][]string)}
	for _, e := range entries {
		if rel, field, ok := strings.Cut(e, "."); ok && rel != "" {
			rs.nested[rel] = append(rs.nested[rel], field)
			continue
		}
		rs.names[e] = true
	}
	return rs
}

func (rs rules) mentions(key string) bool {
	_, nested := rs.nested[key]
	return rs.names[key] || nested
}

func (r *Record) output(ctx context.Context, extra projection) (*ordered.Map, error) {
	visible := splitRules(concat(r.visible, extra.visible))
	hidden := splitRules(concat(r.hidden, extra.hidden))
	hasVisible := len(visible.names) > 0

	merged := r.data.Clone()
	merged.Merge(r.relations)

	item := ordered.New()
	var err error
	merged.Range(func(key string, val any) bool {
		if related, ok := asRelated(val); ok {
			var child projection
			if fields, ok := visible.nested[key]; ok {
				child.visible = fields
			} else if fields, ok := hidden.nested[key]; ok {
				child.hidden = fields
			}
			if !hidden.names[key] {
				var out any
				if out, err = renderRelated(ctx, related, child); err != nil {
					return false
				}
				item.Set(key, out)
			}
			return true
		}

		if visible.mentions(key) || (!hidden.mentions(key) && !hasVisible) {
			var v any
			if v, err = r.Get(ctx, key); err != nil {
				return false
			}
			item.Set(key, v)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	entries := slices.Clone(r.appends)
	for _, n := range extra.appends {
		entries = append(entries, appendEntry{name: n})
	}
	for _, a := range entries {
		if err := r.appendOutput(ctx, item, a); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (r *Record) appendOutput(ctx context.Context, item *ordered.Map, a appendEntry) error {
	name, fields := a.name, a.fields
	if !a.list {
		rel, field, ok := strings.Cut(a.name, ".")
		if !ok || rel == "" {
			v, projected, err := r.getAttr(ctx, a.name, item)
			if err != nil {
				return err
			}
			if !projected {
				item.Set(a.name, v)
			}
			return nil
		}
		name, fields = rel, []string{field}
	}

	child := projection{appends: fields}
	val, loaded := r.relations.Get(name)
	if !loaded {
		var err error
		if val, err = r.Get(ctx, name); err != nil {
			return err
		}
		child.visible = fields
	}

	related, ok := asRelated(val)
	if !ok {
		item.Set(name, []any{})
		return nil
	}
	out, err := renderRelated(ctx, related, child)
	if err != nil {
		return err
	}
	item.Set(name, out)
	return nil
}

// asRelated reports whether v is a non-nil record or a collection.
func asRelated(v any) (any, bool) {
	switch rel := v.(type) {
	case *Record:
		return rel, rel != nil
	case Collection:
		return rel, true
	}
	return nil, false
}

func renderRelated(ctx context.Context, related any, p projection) (any, error) {
	switch rel := related.(type) {
	case *Record:
		return rel.output(ctx, p)
	case Collection:
		return rel.output(ctx, p)
	}
	return nil, nil
}

func concat(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	return append(slices.Clone(a), b...)
}
