package regdb

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xregister/kernel/common/xconfig"
	"github.com/xuperchain/xregister/kernel/common/xcontext"
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/logs"
	"github.com/xuperchain/xregister/lib/storage/kvdb"
	"github.com/xuperchain/xregister/lib/timer"
)

type chain struct{}

func (chain) Height() uint64    { return 1 }
func (chain) Supply() uint64    { return 1e9 }
func (chain) Timestamp() uint64 { return 1000 }

func testConf(engine string) *xconfig.StorageConf {
	conf := xconfig.GetDefEngineConf().Storage
	conf.Engine = engine
	conf.CacheSize = "16MB"
	conf.StateCacheEntries = 16
	return &conf
}

// memoryDBs opens one in-memory store per kv engine.
func memoryDBs(t *testing.T) map[string]*RegDB {
	out := make(map[string]*RegDB)

	ldb, err := OpenRegDB(&RegDBCtx{Conf: testConf(EngineMemory)})
	require.NoError(t, err)
	out[kvdb.KVEngineTypeLDB] = ldb

	bdb, err := kvdb.CreateKVInstance(&kvdb.KVParameter{
		DBPath:       t.TempDir(),
		KVEngineType: kvdb.KVEngineTypeBadger,
		StorageType:  kvdb.StorageTypeMemory,
	})
	require.NoError(t, err)
	conf := testConf(kvdb.KVEngineTypeBadger)
	conf.Compress = false
	badger, err := NewRegDB(&RegDBCtx{Conf: conf}, bdb)
	require.NoError(t, err)
	out[kvdb.KVEngineTypeBadger] = badger

	t.Cleanup(func() {
		for _, db := range out {
			db.Close()
		}
	})
	return out
}

func rawState(t *testing.T, payload string) (register.Address, *register.State) {
	addr, err := register.Random(register.AddrRaw)
	require.NoError(t, err)
	s := register.NewState(register.StateRaw)
	s.Owner = addr
	s.Created, s.Modified = 1, 1
	s.SetState([]byte(payload))
	s.SetChecksum()
	return addr, s
}

func commit(t *testing.T, db *RegDB, addr register.Address, s *register.State) {
	scope, err := db.TxnBegin(ledger.ModeConnect)
	require.NoError(t, err)
	require.NoError(t, scope.WriteState(addr, s))
	require.NoError(t, db.TxnCommit(scope))
}

func TestOpenRegDB(t *testing.T) {
	_, err := OpenRegDB(nil)
	assert.ErrorIs(t, err, xerror.ErrStorage)

	_, err = OpenRegDB(&RegDBCtx{Conf: testConf("rocksdb")})
	assert.ErrorIs(t, err, xerror.ErrStorage)

	conf := testConf(kvdb.KVEngineTypeLDB)
	conf.CacheSize = "lots"
	_, err = OpenRegDB(&RegDBCtx{Conf: conf, DataDir: t.TempDir()})
	assert.ErrorIs(t, err, xerror.ErrStorage)

	conf = testConf(kvdb.KVEngineTypeLDB)
	conf.StateCacheEntries = 0
	db, err := OpenRegDB(&RegDBCtx{Conf: conf, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer db.Close()
	assert.Nil(t, db.cache)
}

func TestCommitRead(t *testing.T) {
	for name, db := range memoryDBs(t) {
		t.Run(name, func(t *testing.T) {
			addr, s := rawState(t, "v1")
			_, err := db.ReadState(addr)
			assert.ErrorIs(t, err, xerror.ErrRegisterNotFound)

			key := ledger.ProofKey{Register: addr, Contract: 3}
			scope, err := db.TxnBegin(ledger.ModeConnect)
			require.NoError(t, err)
			require.NoError(t, scope.WriteState(addr, s))
			require.NoError(t, scope.WriteProof(key))
			require.NoError(t, db.TxnCommit(scope))

			for i := 0; i < 2; i++ {
				got, err := db.ReadState(addr)
				require.NoError(t, err)
				assert.True(t, got.Equal(s))
			}
			spent, err := db.HasProof(key)
			require.NoError(t, err)
			assert.True(t, spent)
			spent, _ = db.HasProof(ledger.ProofKey{Register: addr})
			assert.False(t, spent)

			assert.ErrorIs(t, db.TxnCommit(scope), xerror.ErrScopeClosed)
		})
	}
}

func TestAbortSpeculative(t *testing.T) {
	for name, db := range memoryDBs(t) {
		t.Run(name, func(t *testing.T) {
			addr, s := rawState(t, "v1")

			scope, _ := db.TxnBegin(ledger.ModeConnect)
			require.NoError(t, scope.WriteState(addr, s))
			require.NoError(t, db.TxnAbort(scope))
			assert.ErrorIs(t, db.TxnAbort(scope), xerror.ErrScopeClosed)

			scope, _ = db.TxnBegin(ledger.ModeSpeculative)
			require.NoError(t, scope.WriteState(addr, s))
			assert.ErrorIs(t, db.TxnCommit(scope), xerror.ErrSpeculativeCommit)

			_, err := db.ReadState(addr)
			assert.ErrorIs(t, err, xerror.ErrRegisterNotFound)
		})
	}
}

func TestCommitConflict(t *testing.T) {
	for name, db := range memoryDBs(t) {
		t.Run(name, func(t *testing.T) {
			addr, s := rawState(t, "v1")
			commit(t, db, addr, s)

			next := s.Clone()
			next.SetState([]byte("v2"))
			next.Modified = 2
			next.SetChecksum()

			a, _ := db.TxnBegin(ledger.ModeConnect)
			b, _ := db.TxnBegin(ledger.ModeConnect)
			require.NoError(t, a.WriteState(addr, next))
			_, err := b.ReadState(addr)
			require.NoError(t, err)
			require.NoError(t, b.WriteState(addr, next))

			require.NoError(t, db.TxnCommit(a))
			err = db.TxnCommit(b)
			assert.ErrorIs(t, err, xerror.ErrConflict)
			assert.True(t, xerror.IsRetryable(err))

			got, err := db.ReadState(addr)
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got.Data())

			// a spent proof read by a scope also conflicts
			key := ledger.ProofKey{Register: addr}
			c, _ := db.TxnBegin(ledger.ModeConnect)
			d, _ := db.TxnBegin(ledger.ModeConnect)
			require.NoError(t, c.WriteProof(key))
			require.NoError(t, d.WriteProof(key))
			require.NoError(t, db.TxnCommit(c))
			assert.ErrorIs(t, db.TxnCommit(d), xerror.ErrConflict)
		})
	}
}

func TestContractIndex(t *testing.T) {
	for name, db := range memoryDBs(t) {
		t.Run(name, func(t *testing.T) {
			owner, err := register.Random(register.AddrObject)
			require.NoError(t, err)
			addr, _ := register.Random(register.AddrRaw)
			tx := contract.NewTransaction(owner, 42,
				contract.NewCreate(addr, register.StateRaw, []byte("hello")),
				contract.NewAppend(addr, []byte(" world")),
			)
			ok, err := db.HasTransaction(tx.Txid())
			require.NoError(t, err)
			assert.False(t, ok)

			scope, _ := db.TxnBegin(ledger.ModeConnect)
			require.NoError(t, db.CommitContracts(scope, tx))
			ok, err = db.HasTransaction(tx.Txid())
			require.NoError(t, err)
			assert.True(t, ok)

			c, err := db.ReadContract(tx.Txid(), 1)
			require.NoError(t, err)
			assert.Equal(t, owner, c.Caller)
			assert.Equal(t, uint64(42), c.Timestamp)
			assert.Equal(t, tx.Contracts[1].Ops(), c.Ops())

			all, err := db.Contracts(tx.Txid())
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, uint32(0), all[0].Index)
			assert.Equal(t, tx.Contracts[0].Serialize(), all[0].Serialize())

			_, err = db.ReadContract(tx.Txid(), 2)
			assert.ErrorIs(t, err, xerror.ErrInvalidReference)
		})
	}
}

// Contracts and states land in one batch: a rejected scope indexes nothing.
func TestCommitContractsAtomic(t *testing.T) {
	for name, db := range memoryDBs(t) {
		t.Run(name, func(t *testing.T) {
			addr, s := rawState(t, "v1")
			commit(t, db, addr, s)
			next := s.Clone()
			next.SetState([]byte("v2"))
			next.SetChecksum()

			owner, _ := register.Random(register.AddrObject)
			tx := contract.NewTransaction(owner, 7, contract.NewWrite(addr, []byte("v2")))

			stale, _ := db.TxnBegin(ledger.ModeConnect)
			_, err := stale.ReadState(addr)
			require.NoError(t, err)
			require.NoError(t, stale.WriteState(addr, next))
			commit(t, db, addr, next)
			assert.ErrorIs(t, db.CommitContracts(stale, tx), xerror.ErrConflict)

			spec, _ := db.TxnBegin(ledger.ModeSpeculative)
			assert.ErrorIs(t, db.CommitContracts(spec, tx), xerror.ErrSpeculativeCommit)

			ok, err := db.HasTransaction(tx.Txid())
			require.NoError(t, err)
			assert.False(t, ok)
			_, err = db.ReadContract(tx.Txid(), 0)
			assert.ErrorIs(t, err, xerror.ErrInvalidReference)
		})
	}
}

// A read that started before a commit must not cache what it read.
func TestStaleCacheFill(t *testing.T) {
	db := memoryDBs(t)[kvdb.KVEngineTypeLDB]
	addr, s := rawState(t, "v1")
	commit(t, db, addr, s)
	db.cache.Purge()

	gen := db.generation()
	old, err := db.states.Get(addr[:])
	require.NoError(t, err)

	next := s.Clone()
	next.SetState([]byte("v2"))
	next.SetChecksum()
	commit(t, db, addr, next)
	db.cache.Purge()

	db.fill(addr, old, gen)
	assert.False(t, db.cache.Contains(addr))
	got, err := db.ReadState(addr)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got.Data())
	assert.True(t, db.cache.Contains(addr))
}

func TestConcurrentReadCommit(t *testing.T) {
	db := memoryDBs(t)[kvdb.KVEngineTypeLDB]
	addr, s := rawState(t, "0")
	commit(t, db, addr, s)

	const rounds = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds*4; i++ {
			db.cache.Remove(addr)
			_, err := db.ReadState(addr)
			assert.NoError(t, err)
		}
	}()
	cur := s
	for i := 1; i <= rounds; i++ {
		next := cur.Clone()
		next.SetState([]byte(strconv.Itoa(i)))
		next.SetChecksum()
		commit(t, db, addr, next)
		cur = next
	}
	<-done

	got, err := db.ReadState(addr)
	require.NoError(t, err)
	assert.True(t, got.Equal(cur))
}

func TestDecodeRecord(t *testing.T) {
	_, err := decodeRecord(nil)
	assert.ErrorIs(t, err, xerror.ErrTruncated)
	_, err = decodeRecord([]byte{9, 1})
	assert.ErrorIs(t, err, xerror.ErrTruncated)
	_, err = decodeRecord([]byte{recordSnappy, 0xff, 0xff})
	assert.ErrorIs(t, err, xerror.ErrTruncated)

	db := &RegDB{conf: testConf(EngineMemory)}
	data := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	enc := db.encodeRecord(data)
	assert.Equal(t, recordSnappy, enc[0])
	assert.Less(t, len(enc), len(data))
	got, err := decodeRecord(enc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func newEngine(t *testing.T, db *RegDB) *contract.Engine {
	e, err := contract.NewEngine(&contract.EngineCtx{
		BaseCtx:   xcontext.BaseCtx{XLog: logs.NewNopLogger(), Timer: timer.NewXTimer()},
		Conf:      xconfig.GetDefEngineConf(),
		Store:     db,
		Contracts: db,
		Chain:     chain{},
	})
	require.NoError(t, err)
	return e
}

func balance(t *testing.T, db *RegDB, addr register.Address) uint64 {
	s, err := db.ReadState(addr)
	require.NoError(t, err)
	o, err := register.ParseObject(s)
	require.NoError(t, err)
	return o.GetU64("balance")
}

// A debit connected before a restart is credited after it.
func TestEngineRestart(t *testing.T) {
	dir := t.TempDir()
	conf := testConf(kvdb.KVEngineTypeLDB)
	ctx := &RegDBCtx{Conf: conf, DataDir: dir}
	alice, _ := register.Random(register.AddrObject)
	bob, _ := register.Random(register.AddrObject)
	tok, _ := register.Random(register.AddrToken)
	acct, _ := register.Random(register.AddrAccount)

	db, err := OpenRegDB(ctx)
	require.NoError(t, err)
	e := newEngine(t, db)
	clock := uint64(1000)
	connect := func(e *contract.Engine, caller register.Address, cs ...*contract.Contract) (*contract.Transaction, error) {
		clock++
		tx := contract.NewTransaction(caller, clock, cs...)
		return tx, e.Connect(context.Background(), tx)
	}

	_, err = connect(e, alice, contract.NewCreate(tok, register.StateObject, register.CreateToken(500, 0)))
	require.NoError(t, err)
	_, err = connect(e, bob, contract.NewCreate(acct, register.StateObject, register.CreateAccount(tok.U256())))
	require.NoError(t, err)
	dtx, err := connect(e, alice, contract.NewDebit(tok, acct, 120, 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(380), balance(t, db, tok))
	require.NoError(t, db.Close())

	db, err = OpenRegDB(ctx)
	require.NoError(t, err)
	defer db.Close()
	e = newEngine(t, db)
	_, err = connect(e, bob, contract.NewCredit(dtx.Txid(), 0, acct, tok, 120))
	require.NoError(t, err)
	assert.Equal(t, uint64(120), balance(t, db, acct))

	_, err = connect(e, bob, contract.NewCredit(dtx.Txid(), 0, acct, tok, 120))
	assert.ErrorIs(t, err, xerror.ErrProofSpent)

	// the handled window starts empty after a restart, the index does not
	assert.ErrorIs(t, e.Connect(context.Background(), dtx), xerror.ErrTxHandled)
	assert.Equal(t, uint64(380), balance(t, db, tok))
}
