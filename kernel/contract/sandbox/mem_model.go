package sandbox

import (
	"bytes"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// Entry is one cached record. A nil Value records an absent key.
type Entry struct {
	Bucket string
	Key    []byte
	Value  []byte
}

// MemModel is an ordered in-memory bucket/key store. Iteration follows key
// order so write sets are applied deterministically.
type MemModel struct {
	tree *redblacktree.Tree
}

func NewMemModel() *MemModel {
	return &MemModel{
		tree: redblacktree.NewWith(treeCompare),
	}
}

// 读取一个key的值
func (m *MemModel) Get(bucket string, key []byte) (*Entry, error) {
	v, ok := m.tree.Get(makeRawKey(bucket, key))
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Entry), nil
}

func (m *MemModel) Put(bucket string, key []byte, value []byte) {
	m.tree.Put(makeRawKey(bucket, key), &Entry{
		Bucket: bucket,
		Key:    append([]byte(nil), key...),
		Value:  value,
	})
}

func (m *MemModel) Len() int {
	return m.tree.Size()
}

// Range calls f for every entry of bucket in key order until f returns false.
func (m *MemModel) Range(bucket string, f func(e *Entry) bool) {
	iter := m.tree.Iterator()
	for iter.Next() {
		e := iter.Value().(*Entry)
		if bucket != "" && e.Bucket != bucket {
			continue
		}
		if !f(e) {
			return
		}
	}
}

func treeCompare(a, b interface{}) int {
	return bytes.Compare(a.([]byte), b.([]byte))
}
