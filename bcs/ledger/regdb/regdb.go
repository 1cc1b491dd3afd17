// Package regdb is the persistent register store. States, spent proofs and
// the contract index share one kvdb instance under separate tables.
package regdb

import (
	"encoding/binary"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/xuperchain/xregister/kernel/common/xconfig"
	"github.com/xuperchain/xregister/kernel/common/xcontext"
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract"
	"github.com/xuperchain/xregister/kernel/contract/sandbox"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/logs"
	"github.com/xuperchain/xregister/lib/metrics"
	"github.com/xuperchain/xregister/lib/storage/kvdb"
	"github.com/xuperchain/xregister/lib/wideint"

	// 注册存储引擎
	_ "github.com/xuperchain/xregister/lib/storage/kvdb/badger"
	_ "github.com/xuperchain/xregister/lib/storage/kvdb/leveldb"
)

const (
	StateTablePrefix    = "S"
	ProofTablePrefix    = "P"
	ContractTablePrefix = "C"
)

// EngineMemory keeps the whole store in a leveldb memory instance.
const EngineMemory = "memory"

// contract record encodings
const (
	recordPlain  byte = 0
	recordSnappy byte = 1
)

const (
	cacheState = "state"
	cacheHit   = "hit"
	cacheMiss  = "miss"
)

var proofMark = []byte{1}

var (
	_ ledger.RegisterStore   = (*RegDB)(nil)
	_ contract.ContractIndex = (*RegDB)(nil)
)

type RegDBCtx struct {
	xcontext.BaseCtx
	Conf *xconfig.StorageConf
	// root of relative storage paths
	DataDir string
}

type RegDB struct {
	log       logs.Logger
	conf      *xconfig.StorageConf
	baseDB    kvdb.Database
	states    kvdb.Database
	proofs    kvdb.Database
	contracts kvdb.Database
	// address -> serialized state, nil when disabled
	cache *lru.Cache
	// cacheMu guards gen; a read fills the cache only if no commit
	// landed since it started
	cacheMu sync.Mutex
	gen     uint64
	// serializes commits
	mutex sync.Mutex
}

// OpenRegDB opens the database described by ctx.Conf.
func OpenRegDB(ctx *RegDBCtx) (*RegDB, error) {
	if ctx == nil || ctx.Conf == nil {
		return nil, xerror.ErrStorage.More("storage config not set")
	}
	param, err := kvParam(ctx.Conf, ctx.DataDir)
	if err != nil {
		return nil, xerror.ErrStorage.Wrap(err)
	}
	db, err := kvdb.CreateKVInstance(param)
	if err != nil {
		return nil, xerror.ErrStorage.Wrap(errors.Wrapf(err, "open %s register db", ctx.Conf.Engine))
	}
	t, err := NewRegDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

func kvParam(conf *xconfig.StorageConf, dataDir string) (*kvdb.KVParameter, error) {
	size, err := conf.CacheBytes()
	if err != nil {
		return nil, err
	}
	param := &kvdb.KVParameter{
		DBPath:                filepath.Join(dataDir, conf.Path),
		KVEngineType:          conf.Engine,
		StorageType:           kvdb.StorageTypeSingle,
		MemCacheSize:          int(size >> 20),
		FileHandlersCacheSize: 64,
	}
	if conf.Engine == EngineMemory {
		param.KVEngineType = kvdb.KVEngineTypeLDB
		param.StorageType = kvdb.StorageTypeMemory
	}
	return param, nil
}

// NewRegDB builds the store over an open database. Closing the store closes db.
func NewRegDB(ctx *RegDBCtx, db kvdb.Database) (*RegDB, error) {
	if ctx == nil || ctx.Conf == nil || db == nil {
		return nil, xerror.ErrStorage.More("register db not configured")
	}
	t := &RegDB{
		log:       ctx.GetLog().With("engine", ctx.Conf.Engine),
		conf:      ctx.Conf,
		baseDB:    db,
		states:    kvdb.NewTable(db, StateTablePrefix),
		proofs:    kvdb.NewTable(db, ProofTablePrefix),
		contracts: kvdb.NewTable(db, ContractTablePrefix),
	}
	if ctx.Conf.StateCacheEntries > 0 {
		c, err := lru.New(ctx.Conf.StateCacheEntries)
		if err != nil {
			return nil, xerror.ErrStorage.Wrap(err)
		}
		t.cache = c
	}
	return t, nil
}

func (t *RegDB) Close() error {
	return t.baseDB.Close()
}

func (t *RegDB) ReadState(addr register.Address) (*register.State, error) {
	raw, err := t.readRaw(addr)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, xerror.ErrRegisterNotFound.More("%x", addr[:])
	}
	return register.ParseState(raw)
}

// readRaw returns nil for an absent register.
func (t *RegDB) readRaw(addr register.Address) ([]byte, error) {
	if t.cache != nil {
		if v, ok := t.cache.Get(addr); ok {
			metrics.CacheCounter.WithLabelValues(cacheState, cacheHit).Inc()
			return v.([]byte), nil
		}
		metrics.CacheCounter.WithLabelValues(cacheState, cacheMiss).Inc()
	}

	gen := t.generation()
	raw, err := t.states.Get(addr[:])
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, xerror.ErrStorage.Wrap(errors.Wrapf(err, "read state %x", addr[:8]))
	}
	t.fill(addr, raw, gen)
	return raw, nil
}

func (t *RegDB) generation() uint64 {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	return t.gen
}

// fill caches raw as read at generation gen. A value read before a later
// commit may be stale and is dropped.
func (t *RegDB) fill(addr register.Address, raw []byte, gen uint64) {
	if t.cache == nil {
		return
	}
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	if t.gen == gen {
		t.cache.Add(addr, raw)
	}
}

// readCommitted is the VerifyReads view of the store.
func (t *RegDB) readCommitted(addr register.Address) (*register.State, error) {
	raw, err := t.readRaw(addr)
	if err != nil || raw == nil {
		return nil, err
	}
	return register.ParseState(raw)
}

func (t *RegDB) HasProof(key ledger.ProofKey) (bool, error) {
	ok, err := t.proofs.Has(sandbox.ProofKeyBytes(key))
	if err != nil {
		return false, xerror.ErrStorage.Wrap(errors.Wrap(err, "read proof"))
	}
	return ok, nil
}

func (t *RegDB) TxnBegin(mode ledger.ScopeMode) (ledger.Scope, error) {
	return sandbox.NewScope(t, mode), nil
}

// TxnCommit validates the scope's read set against committed state and
// writes states and proofs in one batch.
func (t *RegDB) TxnCommit(scope ledger.Scope) error {
	return t.commit(scope, nil)
}

// CommitContracts is TxnCommit with the contracts of txs indexed in the
// same batch.
func (t *RegDB) CommitContracts(scope ledger.Scope, txs ...*contract.Transaction) error {
	return t.commit(scope, txs)
}

func (t *RegDB) commit(scope ledger.Scope, txs []*contract.Transaction) error {
	s, err := sandbox.CastScope(scope)
	if err != nil {
		return err
	}
	if s.Mode() == ledger.ModeSpeculative {
		s.Close()
		return xerror.ErrSpeculativeCommit
	}
	rw, err := s.Close()
	if err != nil {
		return err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	if err := sandbox.VerifyReads(rw, t.readCommitted, t.HasProof); err != nil {
		t.log.Warn("register scope conflict", "err", err)
		return err
	}

	batch := t.baseDB.NewBatch()
	written := make(map[register.Address][]byte, len(rw.Writes))
	for _, w := range rw.Writes {
		raw := w.State.Serialize()
		if err := batch.Put(tableKey(StateTablePrefix, w.Address[:]), raw); err != nil {
			return xerror.ErrStorage.Wrap(err)
		}
		written[w.Address] = raw
	}
	for _, p := range rw.ProofWrites {
		if err := batch.Put(tableKey(ProofTablePrefix, sandbox.ProofKeyBytes(p)), proofMark); err != nil {
			return xerror.ErrStorage.Wrap(err)
		}
	}
	n := 0
	for _, tx := range txs {
		for _, c := range tx.Contracts {
			key := tableKey(ContractTablePrefix, contractKey(c.Txid, c.Index))
			if err := batch.Put(key, t.encodeRecord(contract.EncodeIndexed(c))); err != nil {
				return xerror.ErrStorage.Wrap(err)
			}
			n++
		}
	}
	if err := batch.Write(); err != nil {
		return xerror.ErrStorage.Wrap(errors.Wrap(err, "commit scope"))
	}

	if t.cache != nil {
		t.cacheMu.Lock()
		t.gen++
		for addr, raw := range written {
			t.cache.Add(addr, raw)
		}
		t.cacheMu.Unlock()
	}
	t.log.Debug("register scope committed", "states", len(rw.Writes), "proofs", len(rw.ProofWrites),
		"contracts", n)
	return nil
}

func (t *RegDB) TxnAbort(scope ledger.Scope) error {
	s, err := sandbox.CastScope(scope)
	if err != nil {
		return err
	}
	_, err = s.Close()
	return err
}

// HasTransaction reports whether the contracts of txid are indexed. Every
// transaction has a contract at position 0.
func (t *RegDB) HasTransaction(txid wideint.U512) (bool, error) {
	ok, err := t.contracts.Has(contractKey(txid, 0))
	if err != nil {
		return false, xerror.ErrStorage.Wrap(errors.Wrap(err, "read contract"))
	}
	return ok, nil
}

func (t *RegDB) ReadContract(txid wideint.U512, index uint32) (*contract.Contract, error) {
	raw, err := t.contracts.Get(contractKey(txid, index))
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, xerror.ErrInvalidReference.More("contract %x:%d not indexed", txid[:8], index)
	}
	if err != nil {
		return nil, xerror.ErrStorage.Wrap(errors.Wrap(err, "read contract"))
	}
	data, err := decodeRecord(raw)
	if err != nil {
		return nil, err
	}
	return contract.DecodeIndexed(txid, index, data)
}

// Contracts returns the indexed contracts of txid in order.
func (t *RegDB) Contracts(txid wideint.U512) ([]*contract.Contract, error) {
	it := t.contracts.NewIteratorWithPrefix(txid[:])
	defer it.Release()

	var out []*contract.Contract
	for it.Next() {
		key := it.Key()
		if len(key) != wideint.Size512+4 {
			continue
		}
		data, err := decodeRecord(it.Value())
		if err != nil {
			return nil, err
		}
		c, err := contract.DecodeIndexed(txid, binary.BigEndian.Uint32(key[wideint.Size512:]), data)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := it.Error(); err != nil {
		return nil, xerror.ErrStorage.Wrap(errors.Wrap(err, "iterate contracts"))
	}
	return out, nil
}

func (t *RegDB) encodeRecord(data []byte) []byte {
	if !t.conf.Compress {
		return append([]byte{recordPlain}, data...)
	}
	return append([]byte{recordSnappy}, snappy.Encode(nil, data)...)
}

func decodeRecord(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, xerror.ErrTruncated.More("empty contract record")
	}
	switch raw[0] {
	case recordPlain:
		return raw[1:], nil
	case recordSnappy:
		data, err := snappy.Decode(nil, raw[1:])
		if err != nil {
			return nil, xerror.ErrTruncated.Wrap(err)
		}
		return data, nil
	}
	return nil, xerror.ErrTruncated.More("unknown record encoding %d", raw[0])
}

// contractKey sorts the contracts of one transaction by position.
func contractKey(txid wideint.U512, index uint32) []byte {
	key := make([]byte, 0, wideint.Size512+4)
	key = append(key, txid[:]...)
	return binary.BigEndian.AppendUint32(key, index)
}

func tableKey(prefix string, key []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(key))
	k = append(k, prefix...)
	return append(k, key...)
}
