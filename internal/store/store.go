package store

import "errors"

// ErrQuotaExceeded is returned by Set when the write would push the store
// past its configured byte ceiling. Callers distinguish it with errors.Is.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// Store is a synchronous string-keyed store with a capacity ceiling.
// Every operation completes before returning; there is no background I/O.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error

	// Keys returns every stored key with the given prefix, in no
	// particular order. An empty prefix returns all keys.
	Keys(prefix string) ([]string, error)

	Close() error
}

// size is the quota accounting rule: a key costs its own bytes plus the
// value's. Both backends use the same rule so quota behavior is identical.
func size(key, value string) int64 {
	return int64(len(key) + len(value))
}
