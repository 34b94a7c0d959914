package testutil

import (
	"fmt"
	"sync"
)

// SequentialKeys generates predictable string keys: "<prefix>-1",
// "<prefix>-2", and so on.
//
// Its Next method value fits record.AutoField.Value, standing in for a
// UUID generator so golden output stays byte-identical between runs.
//
// Thread-safety: Next is safe for concurrent use.
type SequentialKeys struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialKeys creates a generator. An empty prefix uses "key".
func NewSequentialKeys(prefix string) *SequentialKeys {
	if prefix == "" {
		prefix = "key"
	}
	return &SequentialKeys{prefix: prefix}
}

// Next returns the next key.
func (k *SequentialKeys) Next() any {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.n++
	return fmt.Sprintf("%s-%d", k.prefix, k.n)
}
