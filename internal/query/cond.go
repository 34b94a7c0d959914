package query

import (
	"fmt"
	"slices"
	"strings"
)

// Cond represents a WHERE condition.
//
// This is a sealed interface - only types in this package implement it.
type Cond interface {
	condNode() // Marker method - seals interface to this package
}

// Eq matches rows where Field equals Value.
type Eq struct {
	Field string
	Value any
}

// In matches rows where Field equals any of Values.
type In struct {
	Field  string
	Values []any
}

// And matches rows satisfying every condition in Conds.
// An empty And matches every row.
type And struct {
	Conds []Cond
}

func (Eq) condNode()  {}
func (In) condNode()  {}
func (And) condNode() {}

// Empty reports whether c constrains nothing.
func Empty(c Cond) bool {
	switch v := c.(type) {
	case nil:
		return true
	case And:
		for _, inner := range v.Conds {
			if !Empty(inner) {
				return false
			}
		}
		return true
	case *And:
		if v == nil {
			return true
		}
		return Empty(*v)
	default:
		return false
	}
}

// FromMap builds an And of Eq conditions, one per key, in sorted key order.
func FromMap(m map[string]any) Cond {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	conds := make([]Cond, 0, len(keys))
	for _, k := range keys {
		conds = append(conds, Eq{Field: k, Value: m[k]})
	}
	return And{Conds: conds}
}

// Conj joins conditions with AND, dropping empty ones.
// Returns nil when nothing remains and the single condition when only one does.
func Conj(conds ...Cond) Cond {
	var kept []Cond
	for _, c := range conds {
		if Empty(c) {
			continue
		}
		if a, ok := c.(And); ok {
			kept = append(kept, a.Conds...)
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Conds: kept}
	}
}

// Fields returns every field name referenced by c, in order of appearance.
func Fields(c Cond) []string {
	var out []string
	walk(c, func(field string, _ []any) {
		if !slices.Contains(out, field) {
			out = append(out, field)
		}
	})
	return out
}

// Matches evaluates c against a row using equal to compare values.
// Fields absent from row never match.
func Matches(c Cond, row map[string]any, equal func(a, b any) bool) bool {
	switch v := c.(type) {
	case nil:
		return true
	case Eq:
		got, ok := row[v.Field]
		return ok && equal(got, v.Value)
	case In:
		got, ok := row[v.Field]
		if !ok {
			return false
		}
		for _, want := range v.Values {
			if equal(got, want) {
				return true
			}
		}
		return false
	case And:
		for _, inner := range v.Conds {
			if !Matches(inner, row, equal) {
				return false
			}
		}
		return true
	case *And:
		return v == nil || Matches(*v, row, equal)
	default:
		return false
	}
}

// String renders c for logs. It is not valid SQL.
func String(c Cond) string {
	switch v := c.(type) {
	case nil:
		return "<all>"
	case Eq:
		return fmt.Sprintf("%s = %v", v.Field, v.Value)
	case In:
		return fmt.Sprintf("%s IN %v", v.Field, v.Values)
	case And:
		if len(v.Conds) == 0 {
			return "<all>"
		}
		parts := make([]string, len(v.Conds))
		for i, inner := range v.Conds {
			parts[i] = String(inner)
		}
		return strings.Join(parts, " AND ")
	case *And:
		if v == nil {
			return "<all>"
		}
		return String(*v)
	default:
		return fmt.Sprintf("%T", c)
	}
}

func walk(c Cond, fn func(field string, values []any)) {
	switch v := c.(type) {
	case Eq:
		fn(v.Field, []any{v.Value})
	case In:
		fn(v.Field, v.Values)
	case And:
		for _, inner := range v.Conds {
			walk(inner, fn)
		}
	case *And:
		if v != nil {
			walk(*v, fn)
		}
	}
}
