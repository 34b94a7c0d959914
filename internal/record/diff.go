package record

import (
	"github.com/roach88/rowkit/internal/coerce"
	"github.com/roach88/rowkit/internal/ordered"
)

// ChangedData returns the attributes that differ from origin, in current
// order. With Force on, every attribute is returned. Readonly fields are
// always removed.
func (r *Record) ChangedData() *ordered.Map {
	var out *ordered.Map
	if r.force {
		out = r.data.Clone()
	} else {
		out = ordered.New()
		r.data.Range(func(k string, v any) bool {
			if old, ok := r.origin.Get(k); !ok || valueChanged(v, old) {
				out.Set(k, v)
			}
			return true
		})
	}
	for _, f := range r.readonlyFields() {
		out.Delete(f)
	}
	return out
}

// valueChanged compares a current value with its origin.
//
// When either side is empty the two must be strictly identical, so 0, ""
// and nil all differ from each other. Otherwise objects always count as
// changed and everything else compares loosely ("1" equals 1).
func valueChanged(current, origin any) bool {
	if (coerce.Empty(current) || coerce.Empty(origin)) && !coerce.StrictEqual(current, origin) {
		return true
	}
	return coerce.IsObject(current) || !coerce.LooseEqual(current, origin)
}
