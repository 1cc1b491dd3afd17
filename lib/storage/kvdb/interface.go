package kvdb

import "errors"

// ErrNotFound is returned by Get for a missing key, whatever the engine.
var ErrNotFound = errors.New("kvdb: not found")

// Database the kv store an engine must provide
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	NewBatch() Batch
	// NewIteratorWithPrefix walks keys starting with prefix in ascending order.
	NewIteratorWithPrefix(prefix []byte) Iterator
	Close() error
}

// Batch buffers writes until Write applies them atomically.
type Batch interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	ValueSize() int
	Write() error
	Reset()
}

// Iterator is positioned before the first entry until Next is called.
// Key and Value are only valid until the next call to Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}
