package contract

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract/condition"
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/wideint"
)

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, xerror.ErrStorage)
	_, err = NewEngine(&EngineCtx{})
	assert.ErrorIs(t, err, xerror.ErrStorage)
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()

	addr := f.random(register.AddrAccount)
	payload := register.NewObjectBuilder().
		Mutable("balance", register.U64(0)).
		Immutable("identifier", register.U32(0)).
		MustBytes()
	tx := f.mustConnect(alice, NewCreate(addr, register.StateObject, payload))

	s := f.state(addr)
	assert.Equal(t, alice, s.Owner)
	assert.Equal(t, tx.Timestamp, s.Created)
	assert.Equal(t, register.StandardAccount, f.object(addr).Standard())

	c := tx.Contracts[0]
	assert.Equal(t, PhaseVerified, c.Phase())
	pre, err := c.PreState()
	require.NoError(t, err)
	assert.Nil(t, pre)

	_, err = f.connect(alice, NewCreate(addr, register.StateObject, payload))
	assert.ErrorIs(t, err, xerror.ErrRegisterExists)
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()
	zero := wideint.U256{}

	cases := []struct {
		name string
		c    *Contract
		want error
	}{
		{"system type", NewCreate(f.random(register.AddrRaw), register.StateSystem, []byte("x")), xerror.ErrRegisterType},
		{"reserved type", NewCreate(f.random(register.AddrRaw), register.StateReserved, []byte("x")), xerror.ErrRegisterType},
		{"oversize", NewCreate(f.random(register.AddrRaw), register.StateRaw, make([]byte, register.MaxRegisterSize+1)), xerror.ErrRegisterSize},
		{"address type", NewCreate(f.random(register.AddrRaw), register.StateObject, register.CreateAccount(zero)), xerror.ErrInvalidAddress},
		{"raw under append", NewCreate(f.random(register.AddrAppend), register.StateRaw, []byte("x")), xerror.ErrInvalidAddress},
		{"funded account", NewCreate(f.random(register.AddrAccount), register.StateObject, register.NewObjectBuilder().
			Mutable("balance", register.U64(5)).
			Immutable("identifier", register.U256(zero)).
			MustBytes()), xerror.ErrStandard},
		{"unknown token", NewCreate(f.random(register.AddrAccount), register.StateObject,
			register.CreateAccount(wideint.U256FromUint64(0xdead))), xerror.ErrInvalidReference},
		{"foreign trust", NewCreate(TrustAddress(f.genesis()), register.StateObject, register.CreateTrust()), xerror.ErrInvalidAddress},
	}
	for _, tc := range cases {
		_, err := f.connect(alice, tc.c)
		assert.ErrorIs(t, err, tc.want, tc.name)
	}
}

func TestWriteAppend(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.genesis(), f.genesis()

	raw := f.createRaw(alice, "hello")
	tx := f.mustConnect(alice, NewWrite(raw, []byte("world")))
	s := f.state(raw)
	assert.Equal(t, []byte("world"), s.Data())
	assert.Equal(t, tx.Timestamp, s.Modified)

	_, err := f.connect(bob, NewWrite(raw, []byte("mine")))
	assert.ErrorIs(t, err, xerror.ErrNotOwner)

	obj := f.random(register.AddrObject)
	f.mustConnect(alice, NewCreate(obj, register.StateObject, register.NewObjectBuilder().
		Mutable("count", register.U64(55)).
		Immutable("label", register.Str("box")).
		MustBytes()))
	f.mustConnect(alice, NewWrite(obj, register.EncodeWrites(
		[]string{"count"}, []register.Value{register.U64(98)})))
	assert.Equal(t, uint64(98), f.object(obj).GetU64("count"))

	_, err = f.connect(alice, NewWrite(obj, register.EncodeWrites(
		[]string{"count"}, []register.Value{register.Str("98")})))
	assert.ErrorIs(t, err, xerror.ErrFieldTypeMismatch)
	_, err = f.connect(alice, NewWrite(obj, register.EncodeWrites(
		[]string{"label"}, []register.Value{register.Str("bag")})))
	assert.ErrorIs(t, err, xerror.ErrFieldImmutable)

	// balances only move through primitives
	acct := f.createAccount(alice, wideint.U256{})
	_, err = f.connect(alice, NewWrite(acct, register.EncodeWrites(
		[]string{"balance"}, []register.Value{register.U64(5)})))
	assert.ErrorIs(t, err, xerror.ErrStandard)

	app := f.random(register.AddrAppend)
	f.mustConnect(alice, NewCreate(app, register.StateAppend, []byte("a")))
	f.mustConnect(alice, NewAppend(app, []byte("b")))
	assert.Equal(t, []byte("ab"), f.state(app).Data())

	_, err = f.connect(alice, NewAppend(raw, []byte("!")))
	assert.ErrorIs(t, err, xerror.ErrRegisterType)
	_, err = f.connect(alice, NewWrite(app, []byte("c")))
	assert.ErrorIs(t, err, xerror.ErrRegisterType)

	ro := f.random(register.AddrReadonly)
	f.mustConnect(alice, NewCreate(ro, register.StateReadonly, []byte("fixed")))
	_, err = f.connect(alice, NewWrite(ro, []byte("moved")))
	assert.ErrorIs(t, err, xerror.ErrRegisterType)
}

func TestConditionalDebit(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.genesis(), f.genesis()
	native := wideint.U256{}
	an := f.seedAccount(alice, native, 1000)
	bn := f.seedAccount(bob, native, 1000)

	// alice offers 100 to whoever pays her 50 in the same transaction
	want := NewDebit(bn, an, 50, 0).Primitive()
	cond := condition.NewBuilder().
		Op(op.CallerOperations, op.Contains).
		Bytes(want).
		Program()
	offer := f.mustConnect(alice, NewDebit(an, register.Wildcard, 100, 0).WithCondition(cond))
	assert.Equal(t, uint64(900), f.balance(an))

	short, err := f.connect(bob,
		NewDebit(bn, an, 51, 0),
		NewCredit(offer.Txid(), 0, bn, an, 100))
	assert.ErrorIs(t, err, xerror.ErrConditionFalse)
	assert.Equal(t, PhaseVerified, short.Contracts[0].Phase())
	assert.Equal(t, PhaseFailed, short.Contracts[1].Phase())
	// the whole transaction rolled back
	assert.Equal(t, uint64(1000), f.balance(bn))

	pay := f.mustConnect(bob,
		NewDebit(bn, an, 50, 0),
		NewCredit(offer.Txid(), 0, bn, an, 100))
	assert.Equal(t, uint64(1050), f.balance(bn))

	f.mustConnect(alice, NewCredit(pay.Txid(), 0, an, bn, 50))
	assert.Equal(t, uint64(950), f.balance(an))
}

func TestBuildMissingRegister(t *testing.T) {
	f := newFixture(t)
	tx := f.tx(f.genesis(), NewWrite(f.random(register.AddrRaw), []byte("x")))
	c := tx.Contracts[0]

	scope, err := f.store.TxnBegin(ledger.ModeSpeculative)
	require.NoError(t, err)
	defer f.store.TxnAbort(scope)

	err = f.engine.Build(scope, c)
	assert.ErrorIs(t, err, xerror.ErrRegisterNotFound)
	assert.Equal(t, xerror.KindMalformed, xerror.KindOf(err))
	assert.Equal(t, PhaseUnbuilt, c.Phase())
	assert.ErrorIs(t, f.engine.Execute(scope, c), xerror.ErrBadPhase)
}

func TestSequentialContracts(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()
	raw := f.random(register.AddrRaw)
	tx := f.tx(alice,
		NewCreate(raw, register.StateRaw, []byte("first")),
		NewWrite(raw, []byte("second")))

	scope, err := f.store.TxnBegin(ledger.ModeConnect)
	require.NoError(t, err)
	require.NoError(t, f.engine.Process(scope, tx))

	_, err = f.store.ReadState(raw)
	assert.ErrorIs(t, err, xerror.ErrRegisterNotFound)
	pre, err := tx.Contracts[1].PreState()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), pre.Data())
	s, err := scope.ReadState(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), s.Data())

	require.NoError(t, f.store.TxnCommit(scope))
	assert.Equal(t, []byte("second"), f.state(raw).Data())
}

func TestPhases(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()
	raw := f.createRaw(alice, "v1")

	c := f.tx(alice, NewWrite(raw, []byte("v2"))).Contracts[0]
	scope, err := f.store.TxnBegin(ledger.ModeConnect)
	require.NoError(t, err)
	require.NoError(t, f.engine.Build(scope, c))
	first := append([]byte(nil), c.Registers()...)
	require.NoError(t, f.engine.Build(scope, c))
	assert.Equal(t, first, c.Registers())
	assert.Equal(t, PhaseBuilt, c.Phase())
	assert.ErrorIs(t, f.engine.Verify(scope, c), xerror.ErrBadPhase)

	require.NoError(t, f.engine.Execute(scope, c))
	assert.Equal(t, PhaseExecuted, c.Phase())
	assert.ErrorIs(t, f.engine.Build(scope, c), xerror.ErrBadPhase)
	assert.ErrorIs(t, f.engine.Execute(scope, c), xerror.ErrBadPhase)
	require.NoError(t, f.engine.Verify(scope, c))
	assert.Equal(t, PhaseVerified, c.Phase())
	require.NoError(t, f.store.TxnCommit(scope))
	assert.Equal(t, []byte("v2"), f.state(raw).Data())

	// the register moves on between build and execute
	stale := f.tx(alice, NewWrite(raw, []byte("v3"))).Contracts[0]
	s1, err := f.store.TxnBegin(ledger.ModeSpeculative)
	require.NoError(t, err)
	require.NoError(t, f.engine.Build(s1, stale))
	require.NoError(t, f.store.TxnAbort(s1))
	f.mustConnect(alice, NewWrite(raw, []byte("v4")))
	s2, err := f.store.TxnBegin(ledger.ModeSpeculative)
	require.NoError(t, err)
	err = f.engine.Execute(s2, stale)
	assert.ErrorIs(t, err, xerror.ErrPreState)
	assert.True(t, xerror.IsConsensus(err))
	require.NoError(t, f.store.TxnAbort(s2))

	// a recorded checksum that the primitive does not produce
	forged := f.tx(alice, NewWrite(raw, []byte("v5"))).Contracts[0]
	s3, err := f.store.TxnBegin(ledger.ModeSpeculative)
	require.NoError(t, err)
	require.NoError(t, f.engine.Build(s3, forged))
	pre, err := forged.PreState()
	require.NoError(t, err)
	bogus := pre.Clone()
	bogus.SetState([]byte("other"))
	bogus.SetChecksum()
	forged.registers = encodeRecord(pre, bogus)
	assert.ErrorIs(t, f.engine.Execute(s3, forged), xerror.ErrPostState)
	require.NoError(t, f.store.TxnAbort(s3))
}

func TestTransferClaim(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.genesis(), f.genesis(), f.genesis()

	raw := f.createRaw(alice, "deed")
	ttx := f.mustConnect(alice, NewTransfer(raw, bob, op.TransferClaim))
	assert.Equal(t, PendingOwner(alice), f.state(raw).Owner)

	_, err := f.connect(alice, NewWrite(raw, []byte("x")))
	assert.ErrorIs(t, err, xerror.ErrNotOwner)
	_, err = f.connect(carol, NewClaim(ttx.Txid(), 0, raw))
	assert.ErrorIs(t, err, xerror.ErrNotRecipient)
	f.mustConnect(bob, NewClaim(ttx.Txid(), 0, raw))
	assert.Equal(t, bob, f.state(raw).Owner)
	_, err = f.connect(bob, NewClaim(ttx.Txid(), 0, raw))
	assert.ErrorIs(t, err, xerror.ErrInvalidReference)

	// the sender may take it back while it is pending
	back := f.createRaw(alice, "back")
	btx := f.mustConnect(alice, NewTransfer(back, bob, op.TransferClaim))
	f.mustConnect(alice, NewClaim(btx.Txid(), 0, back))
	assert.Equal(t, alice, f.state(back).Owner)

	forced := f.createRaw(alice, "forced")
	ftx := f.mustConnect(alice, NewTransfer(forced, bob, op.TransferForce))
	assert.Equal(t, bob, f.state(forced).Owner)
	_, err = f.connect(bob, NewClaim(ftx.Txid(), 0, forced))
	assert.ErrorIs(t, err, xerror.ErrInvalidReference)

	// a condition replaces the recipient check
	cond := condition.NewBuilder().
		Op(op.CallerGenesis, op.Equals).
		U256(carol.U256()).
		Program()
	gated := f.createRaw(alice, "gated")
	gtx := f.mustConnect(alice, NewTransfer(gated, bob, op.TransferClaim).WithCondition(cond))
	_, err = f.connect(bob, NewClaim(gtx.Txid(), 0, gated))
	assert.ErrorIs(t, err, xerror.ErrConditionFalse)
	f.mustConnect(carol, NewClaim(gtx.Txid(), 0, gated))
	assert.Equal(t, carol, f.state(gated).Owner)

	tok := f.createToken(alice, 1000)
	held := f.createRaw(alice, "held")
	f.mustConnect(alice, NewTransfer(held, tok, op.TransferClaim))
	assert.Equal(t, tok, f.state(held).Owner)

	trust := TrustAddress(alice)
	f.mustConnect(alice, NewCreate(trust, register.StateObject, register.CreateTrust()))
	_, err = f.connect(alice, NewTransfer(trust, bob, op.TransferForce))
	assert.ErrorIs(t, err, xerror.ErrNotTransferable)

	_, err = f.connect(alice, NewTransfer(f.createRaw(alice, "z"), register.Address{}, op.TransferClaim))
	assert.ErrorIs(t, err, xerror.ErrInvalidOperand)
}

func TestDebitCredit(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.genesis(), f.genesis(), f.genesis()

	tok := f.createToken(alice, 1000)
	ba := f.createAccount(bob, tok.U256())

	dtx := f.mustConnect(alice, NewDebit(tok, ba, 100, 7))
	assert.Equal(t, uint64(900), f.balance(tok))
	f.mustConnect(bob, NewCredit(dtx.Txid(), 0, ba, tok, 100))
	assert.Equal(t, uint64(100), f.balance(ba))
	_, err := f.connect(bob, NewCredit(dtx.Txid(), 0, ba, tok, 100))
	assert.ErrorIs(t, err, xerror.ErrProofSpent)

	dtx2 := f.mustConnect(alice, NewDebit(tok, ba, 50, 0))
	_, err = f.connect(bob, NewCredit(dtx2.Txid(), 0, ba, tok, 49))
	assert.ErrorIs(t, err, xerror.ErrInvalidOperand)
	_, err = f.connect(carol, NewCredit(dtx2.Txid(), 0, ba, tok, 50))
	assert.ErrorIs(t, err, xerror.ErrNotOwner)

	// the debitor reclaims an uncredited debit
	f.mustConnect(alice, NewCredit(dtx2.Txid(), 0, tok, tok, 50))
	assert.Equal(t, uint64(900), f.balance(tok))
	_, err = f.connect(bob, NewCredit(dtx2.Txid(), 0, ba, tok, 50))
	assert.ErrorIs(t, err, xerror.ErrProofSpent)

	wtx := f.mustConnect(alice, NewWrite(f.createRaw(alice, "r"), []byte("s")))
	other := f.createToken(alice, 10)
	oa := f.createAccount(bob, other.U256())
	cases := []struct {
		name   string
		caller register.Address
		c      *Contract
		want   error
	}{
		{"token mismatch", alice, NewDebit(tok, oa, 5, 0), xerror.ErrTokenMismatch},
		{"insufficient", alice, NewDebit(tok, ba, 10000, 0), xerror.ErrInsufficient},
		{"not owner", bob, NewDebit(tok, ba, 1, 0), xerror.ErrNotOwner},
		{"self", alice, NewDebit(tok, tok, 1, 0), xerror.ErrInvalidOperand},
		{"zero", alice, NewDebit(tok, ba, 0, 0), xerror.ErrInvalidOperand},
		{"missing destination", alice, NewDebit(tok, f.random(register.AddrAccount), 1, 0), xerror.ErrInvalidReference},
		{"unknown reference", bob, NewCredit(wideint.U512FromUint64(1), 0, ba, tok, 1), xerror.ErrInvalidReference},
		{"not a debit", bob, NewCredit(wtx.Txid(), 0, ba, tok, 1), xerror.ErrInvalidReference},
	}
	for _, tc := range cases {
		_, err := f.connect(tc.caller, tc.c)
		assert.ErrorIs(t, err, tc.want, tc.name)
	}
}

func TestPartialCredit(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.genesis(), f.genesis(), f.genesis()
	native := wideint.U256{}

	tok := f.createToken(alice, 1000)
	holding := f.seedAccount(bob, tok.U256(), 250)
	an := f.seedAccount(alice, native, 400)
	bn := f.createAccount(bob, native)

	// a dividend paid to the token: every holder takes its share
	dtx := f.mustConnect(alice, NewDebit(an, tok, 400, 0))

	_, err := f.connect(bob, NewCredit(dtx.Txid(), 0, bn, holding, 99))
	assert.ErrorIs(t, err, xerror.ErrInvalidOperand)
	cn := f.createAccount(carol, native)
	_, err = f.connect(carol, NewCredit(dtx.Txid(), 0, cn, holding, 100))
	assert.ErrorIs(t, err, xerror.ErrNotOwner)

	f.mustConnect(bob, NewCredit(dtx.Txid(), 0, bn, holding, 100))
	assert.Equal(t, uint64(100), f.balance(bn))
	_, err = f.connect(bob, NewCredit(dtx.Txid(), 0, bn, holding, 100))
	assert.ErrorIs(t, err, xerror.ErrProofSpent)
}

func TestGenesisTrust(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.genesis(), f.genesis()

	trust := TrustAddress(alice)
	f.store.Put(trust, register.NewObjectState(alice, 0, register.NewObjectBuilder().
		Mutable("balance", register.U64(500)).
		Immutable("identifier", register.U256(wideint.U256{})).
		Mutable("trust", register.U64(0)).
		Mutable("stake", register.U64(0)).
		MustBytes()))

	_, err := f.connect(alice, NewTrust(wideint.U512{}, 1, 0, 0))
	assert.ErrorIs(t, err, xerror.ErrStandard)

	f.mustConnect(alice, NewGenesis(trust, 10))
	obj := f.object(trust)
	assert.Equal(t, uint64(500), obj.GetU64("stake"))
	assert.Equal(t, uint64(10), obj.GetU64("balance"))

	_, err = f.connect(alice, NewGenesis(trust, 10))
	assert.ErrorIs(t, err, xerror.ErrStandard)
	_, err = f.connect(bob, NewGenesis(trust, 10))
	assert.ErrorIs(t, err, xerror.ErrNotOwner)

	f.mustConnect(alice, NewTrust(wideint.U512{}, 100, 5, 3))
	obj = f.object(trust)
	assert.Equal(t, uint64(505), obj.GetU64("stake"))
	assert.Equal(t, uint64(8), obj.GetU64("balance"))
	assert.Equal(t, uint64(100), obj.GetU64("trust"))

	f.mustConnect(alice, NewTrust(wideint.U512{}, 200, -105, 0))
	obj = f.object(trust)
	assert.Equal(t, uint64(400), obj.GetU64("stake"))
	assert.Equal(t, uint64(113), obj.GetU64("balance"))

	_, err = f.connect(alice, NewTrust(wideint.U512{}, 300, math.MinInt64, 0))
	assert.ErrorIs(t, err, xerror.ErrInsufficient)
	_, err = f.connect(alice, NewTrust(wideint.U512{}, MaxTrustScore+1, 0, 0))
	assert.ErrorIs(t, err, xerror.ErrInvalidOperand)
	_, err = f.connect(bob, NewTrust(wideint.U512{}, 1, 0, 0))
	assert.ErrorIs(t, err, xerror.ErrRegisterNotFound)
}

func TestMigrate(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()
	trust := TrustAddress(alice)
	f.mustConnect(alice, NewCreate(trust, register.StateObject, register.CreateTrust()))

	ltx := wideint.U512FromUint64(42)
	keyHash := wideint.U256FromUint64(7)
	f.legacy.outputs[ltx] = legacyOutput{keyHash: keyHash, amount: 5000}

	_, err := f.connect(alice, NewMigrate(ltx, trust, keyHash, 4000, 10, wideint.U512{}))
	assert.ErrorIs(t, err, xerror.ErrInvalidReference)

	f.mustConnect(alice, NewMigrate(ltx, trust, keyHash, 5000, 10, wideint.U512{}))
	obj := f.object(trust)
	assert.Equal(t, uint64(5000), obj.GetU64("stake"))
	assert.Equal(t, uint64(10), obj.GetU64("trust"))

	_, err = f.connect(alice, NewMigrate(ltx, trust, keyHash, 5000, 10, wideint.U512{}))
	assert.ErrorIs(t, err, xerror.ErrProofSpent)
}

func TestNames(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.genesis(), f.genesis()
	target := f.random(register.AddrAccount)

	acme, err := register.FromName("acme", register.AddrNamespace)
	require.NoError(t, err)
	f.mustConnect(alice, NewCreate(acme, register.StateObject, register.CreateNamespace("acme")))

	global, err := register.FromName(GlobalNamespace, register.AddrNamespace)
	require.NoError(t, err)
	_, err = f.connect(alice, NewCreate(global, register.StateObject, register.CreateNamespace(GlobalNamespace)))
	assert.ErrorIs(t, err, xerror.ErrReservedName)

	shop := register.MustFromKey("shop", acme, register.AddrName)
	_, err = f.connect(bob, NewCreate(shop, register.StateObject, register.CreateName("acme", "shop", target)))
	assert.ErrorIs(t, err, xerror.ErrNotOwner)
	f.mustConnect(alice, NewCreate(shop, register.StateObject, register.CreateName("acme", "shop", target)))
	assert.Equal(t, register.StandardName, f.object(shop).Standard())

	home := register.MustFromKey("home", alice, register.AddrName)
	f.mustConnect(alice, NewCreate(home, register.StateObject, register.CreateName("", "home", target)))
	_, err = f.connect(alice, NewCreate(register.MustFromKey("work", alice, register.AddrName),
		register.StateObject, register.CreateName("", "other", target)))
	assert.ErrorIs(t, err, xerror.ErrInvalidAddress)

	bad := register.MustFromKey("a:b", global, register.AddrName)
	_, err = f.connect(alice, NewCreate(bad, register.StateObject, register.CreateName(GlobalNamespace, "a:b", target)))
	assert.ErrorIs(t, err, xerror.ErrStandard)
	pub := register.MustFromKey("bob", global, register.AddrName)
	f.mustConnect(bob, NewCreate(pub, register.StateObject, register.CreateName(GlobalNamespace, "bob", target)))
}

func TestAcceptAndBlocks(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.genesis(), f.genesis()
	ctx := context.Background()
	raw := f.createRaw(alice, "a")

	tx := f.tx(alice, NewWrite(raw, []byte("b")))
	require.NoError(t, f.engine.Accept(tx))
	assert.Equal(t, []byte("a"), f.state(raw).Data())
	assert.Equal(t, PhaseBuilt, tx.Contracts[0].Phase())

	require.NoError(t, f.engine.Connect(ctx, tx))
	assert.Equal(t, []byte("b"), f.state(raw).Data())
	assert.ErrorIs(t, f.engine.Accept(tx), xerror.ErrTxHandled)
	assert.ErrorIs(t, f.engine.Connect(ctx, tx), xerror.ErrTxHandled)

	// one bad transaction rejects the block
	good := f.tx(alice, NewWrite(raw, []byte("c")))
	bad := f.tx(bob, NewWrite(raw, []byte("d")))
	err := f.engine.ConnectBlock(ctx, []*Transaction{good, bad})
	assert.ErrorIs(t, err, xerror.ErrNotOwner)
	assert.Equal(t, []byte("b"), f.state(raw).Data())

	dup := f.tx(alice, NewWrite(raw, []byte("e")))
	assert.ErrorIs(t, f.engine.ConnectBlock(ctx, []*Transaction{dup, dup}), xerror.ErrTxHandled)

	empty := NewTransaction(alice, 1)
	assert.ErrorIs(t, f.engine.ConnectBlock(ctx, []*Transaction{empty}), xerror.ErrInvalidOperand)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	late := f.tx(alice, NewWrite(raw, []byte("f")))
	assert.ErrorIs(t, f.engine.ConnectBlock(cancelled, []*Transaction{late}), context.Canceled)
	assert.Equal(t, []byte("b"), f.state(raw).Data())
}

func TestBuildTransaction(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()

	// APPEND needs an APPEND register
	raw := f.random(register.AddrRaw)
	bad := f.tx(alice,
		NewCreate(raw, register.StateRaw, []byte("one")),
		NewAppend(raw, []byte("two")))
	assert.ErrorIs(t, f.engine.BuildTransaction(bad), xerror.ErrRegisterType)

	app := f.random(register.AddrAppend)
	tx := f.tx(alice,
		NewCreate(app, register.StateAppend, []byte("one")),
		NewAppend(app, []byte("two")))
	require.NoError(t, f.engine.BuildTransaction(tx))
	for _, c := range tx.Contracts {
		assert.Equal(t, PhaseBuilt, c.Phase())
		assert.NotEmpty(t, c.Registers())
	}
	_, err := f.store.ReadState(app)
	assert.ErrorIs(t, err, xerror.ErrRegisterNotFound)

	require.NoError(t, f.engine.Connect(context.Background(), tx))
	assert.Equal(t, []byte("onetwo"), f.state(app).Data())
}

func TestLegacyAndFee(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()
	an := f.seedAccount(alice, wideint.U256{}, 100)

	f.mustConnect(alice, NewLegacy(an, 30, []byte{0x76, 0xa9, 0x14}))
	assert.Equal(t, uint64(70), f.balance(an))
	_, err := f.connect(alice, NewLegacy(an, 30, nil))
	assert.ErrorIs(t, err, xerror.ErrInvalidOperand)

	f.mustConnect(alice, NewFee(an, 20))
	assert.Equal(t, uint64(50), f.balance(an))
	_, err = f.connect(alice, NewFee(an, 51))
	assert.ErrorIs(t, err, xerror.ErrInsufficient)
	_, err = f.connect(alice, NewFee(an, 0))
	assert.ErrorIs(t, err, xerror.ErrInvalidOperand)
}

func decodeTx(t *testing.T, wire []byte) *Transaction {
	tx, err := DecodeTransaction(wire)
	require.NoError(t, err)
	return tx
}

func TestRelayedTransaction(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()
	ctx := context.Background()
	raw := f.createRaw(alice, "v1")

	tx := f.tx(alice, NewWrite(raw, []byte("v2")))
	require.NoError(t, f.engine.BuildTransaction(tx))
	got := decodeTx(t, tx.Serialize())
	assert.Equal(t, tx.Txid(), got.Txid())
	assert.Equal(t, PhaseBuilt, got.Contracts[0].Phase())
	require.NoError(t, f.engine.Connect(ctx, got))
	assert.Equal(t, PhaseVerified, got.Contracts[0].Phase())
	assert.Equal(t, []byte("v2"), f.state(raw).Data())

	// the last byte of the wire form belongs to the post-state checksum
	tampered := f.tx(alice, NewWrite(raw, []byte("v3")))
	require.NoError(t, f.engine.BuildTransaction(tampered))
	wire := tampered.Serialize()
	wire[len(wire)-1] ^= 0xff
	err := f.engine.Accept(decodeTx(t, wire))
	assert.ErrorIs(t, err, xerror.ErrPostState)
	err = f.engine.Connect(ctx, decodeTx(t, wire))
	assert.ErrorIs(t, err, xerror.ErrPostState)
	assert.True(t, xerror.IsConsensus(err))
	assert.Equal(t, []byte("v2"), f.state(raw).Data())

	// built against v2, relayed after the register moved on
	stale := f.tx(alice, NewWrite(raw, []byte("v4")))
	require.NoError(t, f.engine.BuildTransaction(stale))
	wire = stale.Serialize()
	f.mustConnect(alice, NewWrite(raw, []byte("v5")))
	err = f.engine.Connect(ctx, decodeTx(t, wire))
	assert.ErrorIs(t, err, xerror.ErrPreState)
	assert.True(t, xerror.IsConsensus(err))
	assert.Equal(t, []byte("v5"), f.state(raw).Data())

	// a CREATE record carrying a pre-state
	created := f.random(register.AddrRaw)
	odd := f.tx(alice, NewCreate(created, register.StateRaw, []byte("x")))
	require.NoError(t, f.engine.BuildTransaction(odd))
	c := odd.Contracts[0]
	c.registers = encodeRecord(f.state(raw), f.state(raw))
	err = f.engine.Connect(ctx, decodeTx(t, odd.Serialize()))
	assert.ErrorIs(t, err, xerror.ErrPreState)
}

func TestRelayedBlock(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.genesis(), f.genesis()
	ctx := context.Background()
	a := f.createRaw(alice, "a")
	b := f.createRaw(bob, "b")

	ta := f.tx(alice, NewWrite(a, []byte("a2")))
	tb := f.tx(bob, NewWrite(b, []byte("b2")))
	require.NoError(t, f.engine.BuildTransaction(ta))
	require.NoError(t, f.engine.BuildTransaction(tb))

	bad := tb.Serialize()
	bad[len(bad)-1] ^= 0x01
	err := f.engine.ConnectBlock(ctx, []*Transaction{decodeTx(t, ta.Serialize()), decodeTx(t, bad)})
	assert.ErrorIs(t, err, xerror.ErrPostState)
	assert.Equal(t, []byte("a"), f.state(a).Data())

	require.NoError(t, f.engine.ConnectBlock(ctx, []*Transaction{
		decodeTx(t, ta.Serialize()), decodeTx(t, tb.Serialize()),
	}))
	assert.Equal(t, []byte("a2"), f.state(a).Data())
	assert.Equal(t, []byte("b2"), f.state(b).Data())
}

func TestExecuteDeterministic(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.genesis(), f.genesis()
	tok := f.createToken(alice, 1000)
	ba := f.createAccount(bob, tok.U256())
	obj := f.random(register.AddrObject)
	f.mustConnect(alice, NewCreate(obj, register.StateObject, register.NewObjectBuilder().
		Mutable("count", register.U64(1)).
		MustBytes()))

	tx := f.tx(alice,
		NewDebit(tok, ba, 25, 0),
		NewWrite(obj, register.EncodeWrites([]string{"count"}, []register.Value{register.U64(7)})))
	require.NoError(t, f.engine.BuildTransaction(tx))
	wire := tx.Serialize()

	var posts [2][][]byte
	for i := range posts {
		scope, err := f.store.TxnBegin(ledger.ModeSpeculative)
		require.NoError(t, err)
		for _, c := range decodeTx(t, wire).Contracts {
			require.NoError(t, f.engine.Execute(scope, c))
			addr, err := c.Target()
			require.NoError(t, err)
			s, err := scope.ReadState(addr)
			require.NoError(t, err)
			posts[i] = append(posts[i], s.Serialize())
		}
		require.NoError(t, f.store.TxnAbort(scope))
	}
	require.Len(t, posts[0], 2)
	assert.Equal(t, posts[0], posts[1])
	assert.Equal(t, uint64(1000), f.balance(tok))
}

func TestCommitFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.genesis()
	ctx := context.Background()
	app := f.random(register.AddrAppend)
	f.mustConnect(alice, NewCreate(app, register.StateAppend, []byte("a")))

	tx := f.tx(alice, NewAppend(app, []byte("b")))
	f.index.failNext = errors.New("disk full")
	err := f.engine.Connect(ctx, tx)
	assert.ErrorIs(t, err, xerror.ErrStorage)
	assert.True(t, xerror.IsRetryable(err))
	assert.Equal(t, []byte("a"), f.state(app).Data())

	require.NoError(t, f.engine.Connect(ctx, tx))
	assert.Equal(t, []byte("ab"), f.state(app).Data())
	assert.ErrorIs(t, f.engine.Connect(ctx, tx), xerror.ErrTxHandled)

	// a fresh engine has an empty handled window but sees the index
	e, err := NewEngine(&EngineCtx{Store: f.store, Contracts: f.index})
	require.NoError(t, err)
	assert.ErrorIs(t, e.Connect(ctx, decodeTx(t, tx.Serialize())), xerror.ErrTxHandled)
	assert.ErrorIs(t, e.Accept(decodeTx(t, tx.Serialize())), xerror.ErrTxHandled)
	assert.Equal(t, []byte("ab"), f.state(app).Data())
}
