// Package store implements the pluggable persistence abstraction (component B):
// a keyed mapping per collection, with FileBackend (one blob per collection) and
// DirectoryBackend (one file per key) implementations.
//
// Grounded in napixd.store.backends.file (original_source/napixd/store/backends/file.py).
// The original pickles a Python object graph; per SPEC_FULL §4.B this port uses
// JSON, documented here as the chosen on-disk format.
package store

import "errors"

// ErrNotSupported is returned by Incr when the backend cannot implement it
// (spec §3: "incr(key, by) is optional and may fail with not-supported").
var ErrNotSupported = errors.New("operation not supported by this backend")

// ErrNotFound is returned by Get when the key is absent (the Go analogue of a
// KeyError on __getitem__).
var ErrNotFound = errors.New("key not found")

// Store is a keyed persistent mapping for one collection (spec §3, "Store").
type Store interface {
	// Get decodes the value stored at key into target (a pointer). Returns
	// ErrNotFound if key is absent.
	Get(key string, target any) error
	// Set encodes value and stores it at key.
	Set(key string, value any) error
	// Delete removes key. Returns ErrNotFound if it was absent.
	Delete(key string) error
	// Contains reports whether key is present.
	Contains(key string) bool
	// Keys lists all keys currently in the collection.
	Keys() []string
	// Save flushes pending writes to durable storage; it is the commit point
	// (spec §5: "A cancelled request MUST NOT leave a Store in an inconsistent
	// state; save() is the commit point").
	Save() error
	// Drop removes the entire collection, in-memory and on disk.
	Drop() error
	// Incr atomically increments a numeric counter stored at key by `by` and
	// returns the new value. Optional: backends that can't support it return
	// ErrNotSupported.
	Incr(key string, by int) (int, error)
}

// Backend is a factory that opens Stores by collection name (spec §3:
// "Supported ops: get, set, delete, keys, save, drop").
type Backend interface {
	// Keys lists the names of the collections this backend currently knows about.
	Keys() ([]string, error)
	// Open returns the Store for collection, creating it on first write.
	Open(collection string) (Store, error)
}
