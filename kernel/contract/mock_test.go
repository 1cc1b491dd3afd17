package contract

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xregister/kernel/common/xconfig"
	"github.com/xuperchain/xregister/kernel/common/xcontext"
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract/sandbox"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/logs"
	"github.com/xuperchain/xregister/lib/timer"
	"github.com/xuperchain/xregister/lib/wideint"
)

type fakeChain struct {
	height, supply, timestamp uint64
}

func (c *fakeChain) Height() uint64    { return c.height }
func (c *fakeChain) Supply() uint64    { return c.supply }
func (c *fakeChain) Timestamp() uint64 { return c.timestamp }

// fakeIndex stores contracts in their indexed encoding so lookups see
// what a persistent index would return. Commits go to store; failNext
// makes the next commit fail as a whole.
type fakeIndex struct {
	mu       sync.Mutex
	store    *sandbox.MemStore
	records  map[ref][]byte
	failNext error
}

func newFakeIndex(store *sandbox.MemStore) *fakeIndex {
	return &fakeIndex{store: store, records: make(map[ref][]byte)}
}

func (f *fakeIndex) CommitContracts(scope ledger.Scope, txs ...*Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		f.store.TxnAbort(scope)
		return xerror.ErrStorage.Wrap(err)
	}
	if err := f.store.TxnCommit(scope); err != nil {
		return err
	}
	for _, tx := range txs {
		for _, c := range tx.Contracts {
			f.records[ref{c.Txid, c.Index}] = EncodeIndexed(c)
		}
	}
	return nil
}

func (f *fakeIndex) HasTransaction(txid wideint.U512) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[ref{txid, 0}]
	return ok, nil
}

func (f *fakeIndex) ReadContract(txid wideint.U512, index uint32) (*Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.records[ref{txid, index}]
	if !ok {
		return nil, xerror.ErrInvalidReference.More("no contract %d", index)
	}
	return DecodeIndexed(txid, index, raw)
}

type legacyOutput struct {
	keyHash wideint.U256
	amount  uint64
}

type fakeLegacy struct {
	outputs map[wideint.U512]legacyOutput
}

func (f *fakeLegacy) ConfirmMigration(txid wideint.U512, keyHash wideint.U256, amount uint64) error {
	out, ok := f.outputs[txid]
	if !ok || out.keyHash != keyHash || out.amount != amount {
		return xerror.ErrInvalidReference.More("no legacy output")
	}
	return nil
}

type fixture struct {
	t      *testing.T
	engine *Engine
	store  *sandbox.MemStore
	index  *fakeIndex
	legacy *fakeLegacy
	clock  uint64
}

func newFixture(t *testing.T) *fixture {
	store := sandbox.NewMemStore()
	f := &fixture{
		t:      t,
		store:  store,
		index:  newFakeIndex(store),
		legacy: &fakeLegacy{outputs: make(map[wideint.U512]legacyOutput)},
		clock:  1000,
	}
	e, err := NewEngine(&EngineCtx{
		BaseCtx:   xcontext.BaseCtx{XLog: logs.NewNopLogger(), Timer: timer.NewXTimer()},
		Conf:      xconfig.GetDefEngineConf(),
		Store:     f.store,
		Contracts: f.index,
		Legacy:    f.legacy,
		Chain:     &fakeChain{height: 10, supply: 1e9, timestamp: 1000},
	})
	require.NoError(t, err)
	f.engine = e
	return f
}

func (f *fixture) genesis() register.Address {
	a, err := register.Random(register.AddrObject)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) random(typ uint8) register.Address {
	a, err := register.Random(typ)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) tx(caller register.Address, contracts ...*Contract) *Transaction {
	f.clock++
	return NewTransaction(caller, f.clock, contracts...)
}

func (f *fixture) connect(caller register.Address, contracts ...*Contract) (*Transaction, error) {
	tx := f.tx(caller, contracts...)
	return tx, f.engine.Connect(context.Background(), tx)
}

func (f *fixture) mustConnect(caller register.Address, contracts ...*Contract) *Transaction {
	tx, err := f.connect(caller, contracts...)
	require.NoError(f.t, err)
	return tx
}

func (f *fixture) state(addr register.Address) *register.State {
	s, err := f.store.ReadState(addr)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) object(addr register.Address) *register.Object {
	o, err := register.ParseObject(f.state(addr))
	require.NoError(f.t, err)
	return o
}

func (f *fixture) balance(addr register.Address) uint64 {
	return f.object(addr).GetU64("balance")
}

// seedAccount puts a funded account straight into the store.
func (f *fixture) seedAccount(owner register.Address, token wideint.U256, balance uint64) register.Address {
	addr := f.random(register.AddrAccount)
	payload := register.NewObjectBuilder().
		Mutable("balance", register.U64(balance)).
		Immutable("identifier", register.U256(token)).
		MustBytes()
	f.store.Put(addr, register.NewObjectState(owner, 0, payload))
	return addr
}

func (f *fixture) createAccount(owner register.Address, token wideint.U256) register.Address {
	addr := f.random(register.AddrAccount)
	f.mustConnect(owner, NewCreate(addr, register.StateObject, register.CreateAccount(token)))
	return addr
}

func (f *fixture) createToken(owner register.Address, supply uint64) register.Address {
	addr := f.random(register.AddrToken)
	f.mustConnect(owner, NewCreate(addr, register.StateObject, register.CreateToken(supply, 2)))
	return addr
}

func (f *fixture) createRaw(owner register.Address, data string) register.Address {
	addr := f.random(register.AddrRaw)
	f.mustConnect(owner, NewCreate(addr, register.StateRaw, []byte(data)))
	return addr
}
