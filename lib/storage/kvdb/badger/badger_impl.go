package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/xuperchain/xregister/lib/storage/kvdb"
)

func init() {
	kvdb.Register(kvdb.KVEngineTypeBadger, NewKVDBInstance)
}

// BadgerDatabase wraps a badger instance as a kvdb.Database
type BadgerDatabase struct {
	path string
	db   *badger.DB
}

func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	opts := badger.DefaultOptions(param.GetDBPath()).
		WithLogger(nil).
		WithBlockCacheSize(int64(param.GetMemCacheSize()) << 20)
	if param.IsMemory() {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDatabase{path: param.GetDBPath(), db: db}, nil
}

func (bdb *BadgerDatabase) Path() string {
	return bdb.path
}

func (bdb *BadgerDatabase) Put(key []byte, value []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bdb *BadgerDatabase) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bdb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, kvdb.ErrNotFound
	}
	return value, err
}

func (bdb *BadgerDatabase) Has(key []byte) (bool, error) {
	_, err := bdb.Get(key)
	if err == kvdb.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (bdb *BadgerDatabase) Delete(key []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bdb *BadgerDatabase) Close() error {
	return bdb.db.Close()
}

func (bdb *BadgerDatabase) NewBatch() kvdb.Batch {
	return &BadgerBatch{db: bdb.db}
}

func (bdb *BadgerDatabase) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	txn := bdb.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	return &badgerIterator{txn: txn, it: it, prefix: prefix}
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// BadgerBatch buffers operations and applies them in one transaction.
type BadgerBatch struct {
	db   *badger.DB
	ops  []batchOp
	size int
}

func (b *BadgerBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(value)
	return nil
}

func (b *BadgerBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), del: true})
	b.size += len(key)
	return nil
}

func (b *BadgerBatch) ValueSize() int {
	return b.size
}

// Write applies the batch atomically. Batches too large for a single
// badger transaction fail with badger.ErrTxnTooBig.
func (b *BadgerBatch) Write() error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			var err error
			if op.del {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
	key     []byte
	value   []byte
	err     error
}

func (bi *badgerIterator) Next() bool {
	if bi.err != nil {
		return false
	}
	if !bi.started {
		bi.it.Seek(bi.prefix)
		bi.started = true
	} else {
		bi.it.Next()
	}
	if !bi.it.ValidForPrefix(bi.prefix) {
		return false
	}

	item := bi.it.Item()
	bi.key = item.KeyCopy(bi.key[:0])
	bi.value, bi.err = item.ValueCopy(bi.value[:0])
	return bi.err == nil
}

func (bi *badgerIterator) Key() []byte {
	return bi.key
}

func (bi *badgerIterator) Value() []byte {
	return bi.value
}

func (bi *badgerIterator) Error() error {
	return bi.err
}

func (bi *badgerIterator) Release() {
	bi.it.Close()
	bi.txn.Discard()
}
