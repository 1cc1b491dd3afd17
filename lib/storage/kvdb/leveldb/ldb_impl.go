package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/xuperchain/xregister/lib/storage/kvdb"
)

func init() {
	kvdb.Register(kvdb.KVEngineTypeLDB, NewKVDBInstance)
}

// LDBDatabase define data structure of storage
type LDBDatabase struct {
	fn string
	db *leveldb.DB
}

// NewKVDBInstance opens leveldb on disk, or on in-memory storage for
// StorageTypeMemory.
func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	ldb := &LDBDatabase{}
	if err := ldb.Open(param); err != nil {
		return nil, err
	}
	return ldb, nil
}

// Open opens an instance of LDB with parameters (ldb path and other options)
func (ldb *LDBDatabase) Open(param *kvdb.KVParameter) error {
	cache := param.GetMemCacheSize()
	o := &opt.Options{
		OpenFilesCacheCapacity: param.GetFileHandlersCacheSize(),
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // Two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	}

	var (
		db  *leveldb.DB
		err error
	)
	if param.IsMemory() {
		db, err = leveldb.Open(storage.NewMemStorage(), o)
	} else {
		db, err = leveldb.OpenFile(param.GetDBPath(), o)
		if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
			db, err = leveldb.RecoverFile(param.GetDBPath(), nil)
		}
	}
	// (Re)check for errors and abort if opening of the db failed
	if err != nil {
		return err
	}
	ldb.fn = param.GetDBPath()
	ldb.db = db
	return nil
}

// Path returns the path to the database directory.
func (ldb *LDBDatabase) Path() string {
	return ldb.fn
}

// Put puts the given key / value to the queue
func (ldb *LDBDatabase) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Has if the given key exists
func (ldb *LDBDatabase) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Get returns the given key if it's present.
func (ldb *LDBDatabase) Get(key []byte) ([]byte, error) {
	dat, err := ldb.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dat, nil
}

// Delete deletes the key from the queue and database
func (ldb *LDBDatabase) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// NewIteratorWithPrefix returns a iterator with prefix
func (ldb *LDBDatabase) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	return &ldbIterator{Iterator: ldb.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

// Close close database instance
func (ldb *LDBDatabase) Close() error {
	return ldb.db.Close()
}

// NewBatch new a batch for writing
func (ldb *LDBDatabase) NewBatch() kvdb.Batch {
	return &LDBBatch{db: ldb.db, b: new(leveldb.Batch)}
}

// LDBBatch define batch data structure
type LDBBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

// Put put batch data into db
func (b *LDBBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

// Delete delete batch data
func (b *LDBBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

// Write write batch data into db
func (b *LDBBatch) Write() error {
	return b.db.Write(b.b, nil)
}

// ValueSize return value size
func (b *LDBBatch) ValueSize() int {
	return b.size
}

// Reset reset batch data
func (b *LDBBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

type ldbIterator struct {
	iterator.Iterator
}

func (it *ldbIterator) Error() error {
	return it.Iterator.Error()
}
