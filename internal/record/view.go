package record

import "context"

// View is an indexable adapter over a record's Get, Set and Unset, for
// callers that address attributes by key.
type View struct {
	ctx context.Context
	r   *Record
}

// View returns an indexable adapter bound to ctx.
func (r *Record) View(ctx context.Context) View {
	return View{ctx: ctx, r: r}
}

// Index reads key through Get. Missing attributes report false; any other
// failure is returned.
func (v View) Index(key string) (any, bool, error) {
	val, err := v.r.Get(v.ctx, key)
	if IsAttributeNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// SetIndex writes key through Set.
func (v View) SetIndex(key string, value any) error {
	return v.r.Set(key, value)
}

// Isset reports whether key reads as a non-nil value.
func (v View) Isset(key string) bool {
	val, ok, err := v.Index(key)
	return err == nil && ok && val != nil
}

// Unset removes key from the record's attributes.
func (v View) Unset(key string) {
	v.r.Unset(key)
}
