package kvdb

// Table prefixes every key of a Database, so several logical stores
// share one instance.
type Table struct {
	db     Database
	prefix []byte
}

// NewTable returns a Database view whose keys are prefixed by prefix.
func NewTable(db Database, prefix string) Database {
	return &Table{
		db:     db,
		prefix: []byte(prefix),
	}
}

func (t *Table) key(key []byte) []byte {
	k := make([]byte, 0, len(t.prefix)+len(key))
	k = append(k, t.prefix...)
	return append(k, key...)
}

func (t *Table) Put(key []byte, value []byte) error {
	return t.db.Put(t.key(key), value)
}

func (t *Table) Get(key []byte) ([]byte, error) {
	return t.db.Get(t.key(key))
}

func (t *Table) Has(key []byte) (bool, error) {
	return t.db.Has(t.key(key))
}

func (t *Table) Delete(key []byte) error {
	return t.db.Delete(t.key(key))
}

func (t *Table) NewIteratorWithPrefix(prefix []byte) Iterator {
	return &tableIterator{
		Iterator: t.db.NewIteratorWithPrefix(t.key(prefix)),
		strip:    len(t.prefix),
	}
}

// Close leaves the shared instance open.
func (t *Table) Close() error {
	return nil
}

func (t *Table) NewBatch() Batch {
	return &tableBatch{batch: t.db.NewBatch(), table: t}
}

type tableBatch struct {
	batch Batch
	table *Table
}

func (tb *tableBatch) Put(key, value []byte) error {
	return tb.batch.Put(tb.table.key(key), value)
}

func (tb *tableBatch) Delete(key []byte) error {
	return tb.batch.Delete(tb.table.key(key))
}

func (tb *tableBatch) ValueSize() int {
	return tb.batch.ValueSize()
}

func (tb *tableBatch) Write() error {
	return tb.batch.Write()
}

func (tb *tableBatch) Reset() {
	tb.batch.Reset()
}

type tableIterator struct {
	Iterator
	strip int
}

func (ti *tableIterator) Key() []byte {
	k := ti.Iterator.Key()
	if len(k) < ti.strip {
		return nil
	}
	return k[ti.strip:]
}
