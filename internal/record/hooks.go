package record

import (
	"context"
	"fmt"
	"slices"
)

// Hook names a lifecycle point.
type Hook string

const (
	BeforeWrite  Hook = "before_write"
	AfterWrite   Hook = "after_write"
	BeforeInsert Hook = "before_insert"
	AfterInsert  Hook = "after_insert"
	BeforeUpdate Hook = "before_update"
	AfterUpdate  Hook = "after_update"
	BeforeDelete Hook = "before_delete"
	AfterDelete  Hook = "after_delete"
)

// AllHooks lists every hook in firing order.
var AllHooks = []Hook{
	BeforeWrite, BeforeInsert, AfterInsert, BeforeUpdate, AfterUpdate, AfterWrite,
	BeforeDelete, AfterDelete,
}

// Valid reports whether h is a known hook.
func (h Hook) Valid() bool {
	return slices.Contains(AllHooks, h)
}

// Callback runs at a hook point. Returning false vetoes the operation
// (only meaningful for before_* hooks; after_* results are ignored).
type Callback func(ctx context.Context, r *Record) bool

// Hooks holds callbacks per hook, in registration order.
//
// Register callbacks during setup. Hooks are read concurrently by records
// and must not be modified while records are in use.
type Hooks struct {
	callbacks map[Hook][]Callback
}

// On registers cb at h.
func (hs *Hooks) On(h Hook, cb Callback) error {
	if !h.Valid() {
		return fmt.Errorf("unknown hook %q", h)
	}
	if hs.callbacks == nil {
		hs.callbacks = make(map[Hook][]Callback)
	}
	hs.callbacks[h] = append(hs.callbacks[h], cb)
	return nil
}

// Len returns the number of callbacks at h.
func (hs *Hooks) Len(h Hook) int {
	return len(hs.callbacks[h])
}

// fire runs the callbacks at h in order. It stops at the first veto and
// returns false.
func (hs *Hooks) fire(ctx context.Context, h Hook, r *Record) bool {
	for _, cb := range hs.callbacks[h] {
		if !cb(ctx, r) {
			return false
		}
	}
	return true
}
