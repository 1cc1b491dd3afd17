package contract

import (
	"errors"
	"math/bits"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/wideint"
)

// MaxTrustScore caps the trust score carried by TRUST and MIGRATE.
const MaxTrustScore = 60 * 60 * 24 * 28 * 13

// GlobalNamespace holds names readable without an owner.
const GlobalNamespace = "global"

var reservedNamespaces = map[string]bool{
	GlobalNamespace: true,
	"system":        true,
	"legacy":        true,
}

// balance-like fields only primitives may change
var reservedFields = []string{"balance", "trust", "stake", "supply"}

// PendingOwner is the owner of a register waiting for a CLAIM. The genesis
// type byte is dropped, so one store must only hold one network's chains.
func PendingOwner(genesis register.Address) register.Address {
	genesis[0] = register.AddrSystem
	return genesis
}

// TrustAddress is the trust account of a signature chain.
func TrustAddress(genesis register.Address) register.Address {
	return register.MustFromKey("trust", genesis, register.AddrTrust)
}

// apply computes the post-state of c from pre. It only reads other
// registers, so replaying it is deterministic.
func (r *run) apply(c *Contract, o *Operation, pre *register.State) (*register.State, error) {
	if o.Code == op.Create {
		return r.create(c, o)
	}
	if pre == nil {
		return nil, xerror.ErrInvalidOperand.More("%s needs a pre-state", o.Code)
	}

	post := pre.Clone()
	post.Modified = c.Timestamp
	var err error
	switch o.Code {
	case op.Write:
		err = write(post, o)
	case op.Append:
		err = appendData(post, o)
	case op.Transfer:
		err = r.transfer(c, post, o)
	case op.Claim:
		post.Owner = c.Caller
	case op.Debit:
		err = r.debit(post, o)
	case op.Credit:
		err = r.credit(post, o, pre)
	case op.Genesis:
		err = genesis(c, post, o)
	case op.Trust:
		err = trust(post, o)
	case op.Fee:
		_, err = withdraw(post, o.Address, o.Amount, true)
	case op.Migrate:
		err = migrate(c, post, o)
	case op.Legacy:
		if len(o.Data) == 0 {
			return nil, xerror.ErrInvalidOperand.More("empty legacy script")
		}
		_, err = withdraw(post, o.Address, o.Amount, true)
	default:
		err = xerror.ErrUnknownOpcode.More("%s", o.Code)
	}
	if err != nil {
		return nil, err
	}
	post.SetChecksum()
	return post, nil
}

// authorize checks the caller may run c against pre. With spend set the
// claim and credit proofs are recorded in the scope.
func (r *run) authorize(c *Contract, o *Operation, pre *register.State, spend bool) error {
	switch o.Code {
	case op.Create:
		return nil
	case op.Claim:
		return r.authorizeClaim(c, o, pre, spend)
	}

	if pre.Owner != c.Caller {
		return xerror.ErrNotOwner.More("%s owned by %s", o.Address, pre.Owner)
	}
	switch o.Code {
	case op.Credit:
		return r.authorizeCredit(c, o, pre, spend)
	case op.Migrate:
		return r.authorizeMigrate(c, o, spend)
	}
	return nil
}

func (r *run) spendProof(key ledger.ProofKey, spend bool) error {
	if spend {
		return r.scope.WriteProof(key)
	}
	spent, err := r.scope.HasProof(key)
	if err != nil {
		return err
	}
	if spent {
		return xerror.ErrProofSpent.More("%s", key.Register)
	}
	return nil
}

func (r *run) create(c *Contract, o *Operation) (*register.State, error) {
	if !register.ValidStateType(o.Type) || o.Type == register.StateSystem {
		return nil, xerror.ErrRegisterType.More("create type %#x", o.Type)
	}
	if len(o.Data) > register.MaxRegisterSize {
		return nil, xerror.ErrRegisterSize.More("%d bytes", len(o.Data))
	}
	if !o.Address.IsValid() || o.Address.IsLegacy() {
		return nil, xerror.ErrInvalidAddress.More("%s", o.Address)
	}

	post := register.NewState(o.Type)
	post.Owner = c.Caller
	post.Created = c.Timestamp
	post.Modified = c.Timestamp
	post.SetState(o.Data)

	var want uint8
	switch o.Type {
	case register.StateReadonly:
		want = register.AddrReadonly
	case register.StateAppend:
		want = register.AddrAppend
	case register.StateRaw:
		want = register.AddrRaw
	case register.StateObject:
		obj, err := register.ParseObject(post)
		if err != nil {
			return nil, err
		}
		std := obj.Standard()
		if err := obj.Validate(); err != nil {
			return nil, err
		}
		if err := r.createStandard(c, o, obj, std); err != nil {
			return nil, err
		}
		want = std.AddressType()
	}
	if o.Address.Type() != want {
		return nil, xerror.ErrInvalidAddress.More("address type %#x, want %#x", o.Address.Type(), want)
	}

	post.SetChecksum()
	return post, nil
}

func (r *run) createStandard(c *Contract, o *Operation, obj *register.Object, std register.Standard) error {
	switch std {
	case register.StandardAccount:
		token := obj.GetInteger("identifier")
		if token.IsZero() {
			return nil
		}
		ts, err := r.readReference(register.Address(token))
		if err != nil {
			return err
		}
		tobj, err := register.ParseObject(ts)
		if err != nil || tobj.Standard() != register.StandardToken {
			return xerror.ErrInvalidReference.More("%s is not a token", register.Address(token))
		}
	case register.StandardTrust:
		if o.Address != TrustAddress(c.Caller) {
			return xerror.ErrInvalidAddress.More("trust account must be derived from the caller")
		}
	case register.StandardCrypto:
		if o.Address != register.MustFromKey("crypto", c.Caller, register.AddrCrypto) {
			return xerror.ErrInvalidAddress.More("crypto register must be derived from the caller")
		}
	case register.StandardNamespace:
		ns := obj.GetString("namespace")
		if ns == "" {
			return xerror.ErrStandard.More("empty namespace")
		}
		if reservedNamespaces[ns] {
			return xerror.ErrReservedName.More("%s", ns)
		}
		want, err := register.FromName(ns, register.AddrNamespace)
		if err != nil {
			return err
		}
		if o.Address != want {
			return xerror.ErrInvalidAddress.More("namespace %s", ns)
		}
	case register.StandardName:
		want, err := r.nameAddress(c, obj)
		if err != nil {
			return err
		}
		if o.Address != want {
			return xerror.ErrInvalidAddress.More("name %s", obj.GetString("name"))
		}
	}
	return nil
}

func (r *run) nameAddress(c *Contract, obj *register.Object) (register.Address, error) {
	ns, name := obj.GetString("namespace"), obj.GetString("name")
	if name == "" {
		return register.Address{}, xerror.ErrStandard.More("empty name")
	}

	switch ns {
	case "":
		return register.FromKey(name, c.Caller, register.AddrName)
	case GlobalNamespace:
		if strings.Contains(name, ":") {
			return register.Address{}, xerror.ErrStandard.More("global name %q contains ':'", name)
		}
	}

	nsAddr, err := register.FromName(ns, register.AddrNamespace)
	if err != nil {
		return register.Address{}, err
	}
	if ns != GlobalNamespace {
		nsState, err := r.readReference(nsAddr)
		if err != nil {
			return register.Address{}, err
		}
		if nsState.Owner != c.Caller {
			return register.Address{}, xerror.ErrNotOwner.More("namespace %s", ns)
		}
		nsObj, err := register.ParseObject(nsState)
		if err != nil || nsObj.Standard() != register.StandardNamespace {
			return register.Address{}, xerror.ErrInvalidReference.More("%s is not a namespace", ns)
		}
	}
	return register.FromKey(name, nsAddr, register.AddrName)
}

func write(post *register.State, o *Operation) error {
	if len(o.Data) == 0 {
		return xerror.ErrInvalidOperand.More("empty write")
	}
	switch post.Type {
	case register.StateRaw:
		if len(o.Data) > register.MaxRegisterSize {
			return xerror.ErrRegisterSize.More("%d bytes", len(o.Data))
		}
		post.SetState(o.Data)
		return nil
	case register.StateObject:
	default:
		return xerror.ErrRegisterType.More("cannot write type %#x", post.Type)
	}

	obj, err := register.ParseObject(post)
	if err != nil {
		return err
	}
	before := make(map[string]register.Value)
	for _, name := range reservedFields {
		if v, err := obj.Read(name); err == nil {
			before[name] = v
		}
	}
	if err := obj.ApplyWrites(o.Data); err != nil {
		return err
	}
	for name, v := range before {
		if after, _ := obj.Read(name); !after.Equal(v) {
			return xerror.ErrStandard.More("field %s is reserved", name)
		}
	}
	return nil
}

func appendData(post *register.State, o *Operation) error {
	if post.Type != register.StateAppend {
		return xerror.ErrRegisterType.More("cannot append to type %#x", post.Type)
	}
	if len(o.Data) == 0 {
		return xerror.ErrInvalidOperand.More("empty append")
	}
	if post.Size()+len(o.Data) > register.MaxRegisterSize {
		return xerror.ErrRegisterSize.More("%d bytes", post.Size()+len(o.Data))
	}
	post.Append(o.Data)
	return nil
}

func (r *run) transfer(c *Contract, post *register.State, o *Operation) error {
	switch post.Type {
	case register.StateSystem, register.StateReserved:
		return xerror.ErrRegisterType.More("cannot transfer type %#x", post.Type)
	case register.StateObject:
		obj, err := register.ParseObject(post)
		if err != nil {
			return err
		}
		switch std := obj.Standard(); std {
		case register.StandardTrust, register.StandardName, register.StandardCrypto:
			return xerror.ErrNotTransferable.More("%s register", std)
		}
	}
	if o.Recipient.IsZero() || o.Recipient == c.Caller {
		return xerror.ErrInvalidOperand.More("recipient %s", o.Recipient)
	}

	if o.Recipient.Type() == register.AddrToken {
		ts, err := r.readReference(o.Recipient)
		if err != nil {
			return err
		}
		tobj, err := register.ParseObject(ts)
		if err != nil || tobj.Standard() != register.StandardToken {
			return xerror.ErrInvalidReference.More("%s is not a token", o.Recipient)
		}
		post.Owner = o.Recipient
		return nil
	}
	if o.Flag == op.TransferForce {
		post.Owner = o.Recipient
		return nil
	}
	post.Owner = PendingOwner(c.Caller)
	return nil
}

func (r *run) authorizeClaim(c *Contract, o *Operation, pre *register.State, spend bool) error {
	t, to, err := r.reference(o, op.Transfer)
	if err != nil {
		return err
	}
	if to.Address != o.Address {
		return xerror.ErrInvalidReference.More("transfer of %s, claim of %s", to.Address, o.Address)
	}
	if to.Flag == op.TransferForce || to.Recipient.Type() == register.AddrToken {
		return xerror.ErrInvalidReference.More("forced transfer cannot be claimed")
	}
	if pre.Owner != PendingOwner(t.Caller) {
		return xerror.ErrInvalidReference.More("%s is not pending", o.Address)
	}

	switch {
	case c.Caller == t.Caller:
	case len(to.Condition) > 0:
		if err := r.evaluate(t, to, c, pre); err != nil {
			return err
		}
	case c.Caller != to.Recipient:
		return xerror.ErrNotRecipient.More("%s", c.Caller)
	}
	return r.spendProof(ledger.ProofKey{Register: o.Address, Txid: o.Txid, Contract: o.Contract}, spend)
}

// withdraw takes amount from the account held in post.
func withdraw(post *register.State, self register.Address, amount uint64, native bool) (*register.Object, error) {
	obj, err := accountObject(post)
	if err != nil {
		return nil, err
	}
	if native {
		token, err := obj.Token(self)
		if err != nil {
			return nil, err
		}
		if !token.IsZero() {
			return nil, xerror.ErrTokenMismatch.More("native coin required")
		}
	}
	if amount == 0 {
		return nil, xerror.ErrInvalidOperand.More("zero amount")
	}
	balance := obj.GetU64("balance")
	if balance < amount {
		return nil, xerror.ErrInsufficient.More("balance %d < %d", balance, amount)
	}
	return obj, obj.Write("balance", register.U64(balance-amount))
}

func accountObject(s *register.State) (*register.Object, error) {
	if s.Type != register.StateObject {
		return nil, xerror.ErrRegisterType.More("not an object")
	}
	obj, err := register.ParseObject(s)
	if err != nil {
		return nil, err
	}
	if obj.Base() != register.StandardAccount {
		return nil, xerror.ErrStandard.More("%s is not an account", obj.Standard())
	}
	return obj, nil
}

func (r *run) debit(post *register.State, o *Operation) error {
	if o.Address == o.Recipient {
		return xerror.ErrInvalidOperand.More("debit to itself")
	}
	if !o.Recipient.IsWildcard() && !o.Recipient.IsValid() {
		return xerror.ErrInvalidAddress.More("%s", o.Recipient)
	}
	obj, err := withdraw(post, o.Address, o.Amount, false)
	if err != nil {
		return err
	}
	if o.Recipient.IsWildcard() {
		return nil
	}

	to, err := r.readReference(o.Recipient)
	if err != nil {
		return err
	}
	tobj, err := accountObject(to)
	if err != nil {
		return xerror.ErrInvalidReference.More("%s is not an account", o.Recipient)
	}
	// any token may be paid to token holders
	if tobj.Standard() == register.StandardToken {
		return nil
	}
	from, _ := obj.Token(o.Address)
	dest, err := tobj.Token(o.Recipient)
	if err != nil {
		return err
	}
	if from != dest {
		return xerror.ErrTokenMismatch.More("%s != %s", from, dest)
	}
	return nil
}

type creditCase int

const (
	creditReturn creditCase = iota
	creditDirect
	creditWildcard
	creditPartial
)

func classifyCredit(o, do *Operation) (creditCase, error) {
	switch {
	case o.Address == do.Address:
		return creditReturn, nil
	case o.Address == do.Recipient:
		return creditDirect, nil
	case do.Recipient.IsWildcard():
		return creditWildcard, nil
	case do.Recipient.Type() == register.AddrToken:
		return creditPartial, nil
	}
	return 0, xerror.ErrInvalidReference.More("debit to %s cannot credit %s", do.Recipient, o.Address)
}

func (r *run) authorizeCredit(c *Contract, o *Operation, pre *register.State, spend bool) error {
	d, do, err := r.reference(o, op.Debit)
	if err != nil {
		return err
	}
	kind, err := classifyCredit(o, do)
	if err != nil {
		return err
	}

	switch kind {
	case creditReturn:
		if c.Caller != d.Caller {
			return xerror.ErrNotOwner.More("only the debitor may reclaim")
		}
	case creditWildcard:
		if len(do.Condition) == 0 {
			return xerror.ErrInvalidReference.More("wildcard debit without condition")
		}
	case creditPartial:
		ps := pre
		if o.Proof != o.Address {
			if ps, err = r.readReference(o.Proof); err != nil {
				return err
			}
		}
		if ps.Owner != c.Caller {
			return xerror.ErrNotOwner.More("proof %s", o.Proof)
		}
		if ps.Modified > d.Timestamp {
			return xerror.ErrInvalidReference.More("proof modified after debit")
		}
	}
	if kind != creditPartial && o.Proof != do.Address {
		return xerror.ErrInvalidOperand.More("proof must be the debited account")
	}
	if kind != creditReturn && len(do.Condition) > 0 {
		if err := r.evaluate(d, do, c, pre); err != nil {
			return err
		}
	}
	return r.spendProof(ledger.ProofKey{Register: o.Proof, Txid: o.Txid, Contract: o.Contract}, spend)
}

func (r *run) credit(post *register.State, o *Operation, pre *register.State) error {
	d, do, err := r.reference(o, op.Debit)
	if err != nil {
		return err
	}
	kind, err := classifyCredit(o, do)
	if err != nil {
		return err
	}

	obj, err := accountObject(post)
	if err != nil {
		return err
	}
	token, err := obj.Token(o.Address)
	if err != nil {
		return err
	}
	source, err := debitToken(d, do)
	if err != nil {
		return err
	}
	if token != source {
		return xerror.ErrTokenMismatch.More("%s != %s", token, source)
	}

	expected := do.Amount
	if kind == creditPartial {
		if expected, err = r.partialAmount(o, do, pre); err != nil {
			return err
		}
	}
	if o.Amount != expected {
		return xerror.ErrInvalidOperand.More("credit %d, expected %d", o.Amount, expected)
	}

	balance, overflow := math.SafeAdd(obj.GetU64("balance"), o.Amount)
	if overflow {
		return xerror.ErrOverflow.More("balance")
	}
	return obj.Write("balance", register.U64(balance))
}

// debitToken is the token the debited account held before the debit.
func debitToken(d *Contract, do *Operation) (wideint.U256, error) {
	pre, err := d.PreState()
	if err != nil {
		return wideint.U256{}, err
	}
	obj, err := accountObject(pre.Clone())
	if err != nil {
		return wideint.U256{}, err
	}
	return obj.Token(do.Address)
}

// partialAmount is proof balance * amount / supply, rounded down.
func (r *run) partialAmount(o, do *Operation, pre *register.State) (uint64, error) {
	ps := pre
	if o.Proof != o.Address {
		var err error
		if ps, err = r.readReference(o.Proof); err != nil {
			return 0, err
		}
	}
	pobj, err := accountObject(ps.Clone())
	if err != nil {
		return 0, err
	}
	ptok, err := pobj.Token(o.Proof)
	if err != nil {
		return 0, err
	}
	if ptok != do.Recipient.U256() {
		return 0, xerror.ErrTokenMismatch.More("proof holds %s", ptok)
	}

	ts, err := r.readReference(do.Recipient)
	if err != nil {
		return 0, err
	}
	tobj, err := register.ParseObject(ts)
	if err != nil || tobj.Standard() != register.StandardToken {
		return 0, xerror.ErrInvalidReference.More("%s is not a token", do.Recipient)
	}
	supply := tobj.GetU64("supply")
	if supply == 0 {
		return 0, xerror.ErrStandard.More("token without supply")
	}

	hi, lo := bits.Mul64(pobj.GetU64("balance"), do.Amount)
	if hi >= supply {
		return 0, xerror.ErrOverflow.More("partial credit")
	}
	q, _ := bits.Div64(hi, lo, supply)
	return q, nil
}

func genesis(c *Contract, post *register.State, o *Operation) error {
	if o.Address != TrustAddress(c.Caller) {
		return xerror.ErrInvalidReference.More("genesis needs the caller trust account")
	}
	obj, err := trustObject(post)
	if err != nil {
		return err
	}
	if obj.GetU64("stake") != 0 {
		return xerror.ErrStandard.More("trust account already staked")
	}
	balance := obj.GetU64("balance")
	if balance == 0 {
		return xerror.ErrInsufficient.More("nothing to stake")
	}
	if err := obj.Write("stake", register.U64(balance)); err != nil {
		return err
	}
	return obj.Write("balance", register.U64(o.Reward))
}

func trust(post *register.State, o *Operation) error {
	obj, err := trustObject(post)
	if err != nil {
		return err
	}
	if o.Score > MaxTrustScore {
		return xerror.ErrInvalidOperand.More("trust score %d", o.Score)
	}
	stake, balance := obj.GetU64("stake"), obj.GetU64("balance")
	if stake == 0 {
		return xerror.ErrStandard.More("trust account not staked")
	}

	var overflow bool
	switch {
	case o.StakeChange > 0:
		add := uint64(o.StakeChange)
		if balance < add {
			return xerror.ErrInsufficient.More("stake %d from balance %d", add, balance)
		}
		balance -= add
		stake, overflow = math.SafeAdd(stake, add)
	case o.StakeChange < 0:
		sub := uint64(-(o.StakeChange + 1)) + 1
		if stake < sub {
			return xerror.ErrInsufficient.More("unstake %d from stake %d", sub, stake)
		}
		stake -= sub
		balance, overflow = math.SafeAdd(balance, sub)
	}
	if overflow {
		return xerror.ErrOverflow.More("stake change")
	}
	if balance, overflow = math.SafeAdd(balance, o.Reward); overflow {
		return xerror.ErrOverflow.More("reward")
	}

	if err := obj.Write("trust", register.U64(o.Score)); err != nil {
		return err
	}
	if err := obj.Write("stake", register.U64(stake)); err != nil {
		return err
	}
	return obj.Write("balance", register.U64(balance))
}

func migrate(c *Contract, post *register.State, o *Operation) error {
	if o.Address != TrustAddress(c.Caller) {
		return xerror.ErrInvalidReference.More("migrate needs the caller trust account")
	}
	obj, err := trustObject(post)
	if err != nil {
		return err
	}
	if obj.GetU64("stake") != 0 || obj.GetU64("trust") != 0 {
		return xerror.ErrStandard.More("trust account already in use")
	}
	if o.Amount == 0 {
		return xerror.ErrInvalidOperand.More("zero amount")
	}
	if o.Score > MaxTrustScore {
		return xerror.ErrInvalidOperand.More("trust score %d", o.Score)
	}
	if err := obj.Write("stake", register.U64(o.Amount)); err != nil {
		return err
	}
	return obj.Write("trust", register.U64(o.Score))
}

func (r *run) authorizeMigrate(c *Contract, o *Operation, spend bool) error {
	if r.e.legacy == nil {
		return xerror.ErrInvalidReference.More("no legacy ledger")
	}
	if err := r.e.legacy.ConfirmMigration(o.Txid, o.KeyHash, o.Amount); err != nil {
		var xe *xerror.Error
		if errors.As(err, &xe) {
			return xe
		}
		return xerror.ErrInvalidReference.Wrap(err)
	}
	return r.spendProof(ledger.ProofKey{Txid: o.Txid}, spend)
}

func trustObject(s *register.State) (*register.Object, error) {
	obj, err := accountObject(s)
	if err != nil {
		return nil, err
	}
	if obj.Standard() != register.StandardTrust {
		return nil, xerror.ErrStandard.More("%s is not a trust account", obj.Standard())
	}
	return obj, nil
}
