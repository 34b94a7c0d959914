package schema

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/rowkit/internal/record"
)

// relationKinds are the keys naming a relation's kind and its target model.
var relationKinds = []string{"has_one", "has_many", "belongs_to", "belongs_to_many"}

// relationDef is one parsed entry of a "relations" block.
type relationDef struct {
	kind       string
	model      string
	foreignKey string
	localKey   string
	ownerKey   string
	relatedKey string
	pivot      string
	order      []string
	bindings   []record.Binding
}

// parseRelations reads the "relations" block. Each entry names exactly one
// kind with its target model, e.g.
//
//	relations: {
//		posts:  {has_many: "Post", foreign_key: "user_id", order: ["id"]}
//		author: {belongs_to: "User", foreign_key: "user_id", bind: {author_name: "name"}}
//		roles:  {belongs_to_many: "Role", pivot: "UserRole", foreign_key: "user_id", related_key: "role_id"}
//	}
//
// Targets are resolved through the record's registry when the relation is
// built, so definitions may refer to each other in any order.
func parseRelations(v cue.Value) (map[string]record.RelationAccessor, []Ref, error) {
	f, ok := lookup(v, "relations")
	if !ok {
		return nil, nil, nil
	}
	iter, err := f.Fields()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	relations := make(map[string]record.RelationAccessor)
	var refs []Ref
	for iter.Next() {
		field := "relations." + iter.Label()
		def, err := parseRelation(iter.Value(), field)
		if err != nil {
			return nil, nil, err
		}
		relations[iter.Label()] = def.accessor()

		refs = append(refs, Ref{Field: field, Model: def.model, Pos: iter.Value().Pos()})
		if def.pivot != "" {
			refs = append(refs, Ref{Field: field + ".pivot", Model: def.pivot, Pos: iter.Value().Pos()})
		}
	}
	return relations, refs, nil
}

func parseRelation(v cue.Value, field string) (*relationDef, error) {
	def := &relationDef{}
	for _, kind := range relationKinds {
		target, ok := lookup(v, kind)
		if !ok {
			continue
		}
		if def.kind != "" {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("both %s and %s given", def.kind, kind), Pos: v.Pos()}
		}
		model, err := target.String()
		if err != nil {
			return nil, &CompileError{Field: field + "." + kind, Message: "must name a model", Pos: target.Pos()}
		}
		def.kind, def.model = kind, model
	}
	if def.kind == "" {
		return nil, &CompileError{Field: field, Message: "relation kind is required (has_one, has_many, belongs_to or belongs_to_many)", Pos: v.Pos()}
	}

	keys := []struct {
		name string
		dst  *string
	}{
		{"foreign_key", &def.foreignKey},
		{"local_key", &def.localKey},
		{"owner_key", &def.ownerKey},
		{"related_key", &def.relatedKey},
		{"pivot", &def.pivot},
	}
	for _, k := range keys {
		s, err := optString(v, k.name)
		if err != nil {
			return nil, &CompileError{Field: field + "." + k.name, Message: "must be a string", Pos: v.Pos()}
		}
		*k.dst = s
	}
	if def.foreignKey == "" {
		return nil, &CompileError{Field: field + ".foreign_key", Message: "foreign_key is required", Pos: v.Pos()}
	}
	if def.kind == "belongs_to_many" && (def.pivot == "" || def.relatedKey == "") {
		return nil, &CompileError{Field: field, Message: "belongs_to_many requires pivot and related_key", Pos: v.Pos()}
	}

	var err error
	if def.order, err = stringList(v, "order"); err != nil {
		return nil, err
	}
	if def.bindings, err = parseBindings(v, field); err != nil {
		return nil, err
	}
	if len(def.bindings) > 0 && def.kind != "has_one" && def.kind != "belongs_to" {
		return nil, &CompileError{Field: field + ".bind", Message: "only has_one and belongs_to relations bind attributes", Pos: v.Pos()}
	}
	return def, nil
}

// parseBindings reads "bind": a list of field names kept as-is, or a
// struct of output key to related field.
func parseBindings(v cue.Value, field string) ([]record.Binding, error) {
	f, ok := lookup(v, "bind")
	if !ok {
		return nil, nil
	}
	if f.IncompleteKind() == cue.ListKind {
		names, err := stringValues(f, field+".bind")
		if err != nil {
			return nil, err
		}
		return record.Bind(names...), nil
	}

	iter, err := f.Fields()
	if err != nil {
		return nil, &CompileError{Field: field + ".bind", Message: "must be a list or a struct", Pos: f.Pos()}
	}
	var out []record.Binding
	for iter.Next() {
		attr, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field + ".bind." + iter.Label(), Message: "must be a string", Pos: iter.Value().Pos()}
		}
		out = append(out, record.Binding{Key: iter.Label(), Attr: attr})
	}
	return out, nil
}

// accessor builds the relation for a record, resolving models by name.
func (d *relationDef) accessor() record.RelationAccessor {
	return func(r *record.Record) record.Relation {
		reg := r.Model().Registry()
		related := reg.MustModel(d.model)
		switch d.kind {
		case "has_one":
			return &record.HasOne{Parent: r, Related: related, ForeignKey: d.foreignKey, LocalKey: d.localKey, Bindings: d.bindings}
		case "has_many":
			return &record.HasMany{Parent: r, Related: related, ForeignKey: d.foreignKey, LocalKey: d.localKey, Order: d.order}
		case "belongs_to":
			return &record.BelongsTo{Parent: r, Related: related, ForeignKey: d.foreignKey, OwnerKey: d.ownerKey, Bindings: d.bindings}
		default:
			return &record.BelongsToMany{
				Parent:     r,
				Related:    related,
				Pivot:      reg.MustModel(d.pivot),
				ForeignKey: d.foreignKey,
				RelatedKey: d.relatedKey,
				LocalKey:   d.localKey,
				OwnerKey:   d.ownerKey,
			}
		}
	}
}
