package contract

import (
	"fmt"
	"strings"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract/condition"
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

// Operation is the decoded primitive of a contract. Only the fields of the
// primitive's operand layout are set.
type Operation struct {
	Code op.Opcode

	// Address is the register the primitive works on. For DEBIT, FEE and
	// LEGACY it is the debited account, for CREDIT the credited one.
	Address register.Address
	// TRANSFER new owner, DEBIT destination.
	Recipient register.Address
	// CREDIT proof account.
	Proof register.Address

	Data []byte
	Type uint8
	Flag uint8

	// CLAIM, CREDIT and MIGRATE reference.
	Txid     wideint.U512
	Contract uint32

	Amount      uint64
	Reference   uint64
	Reward      uint64
	Score       uint64
	StakeChange int64
	Last        wideint.U512
	KeyHash     wideint.U256

	// Condition is the program following the CONDITION delimiter.
	Condition []byte
}

// DecodeOperation parses a contract operation stream. The second result is
// the length of the primitive section, condition excluded.
func DecodeOperation(ops []byte) (*Operation, int, error) {
	r := stream.NewReader(ops)
	if r.EOF() {
		return nil, 0, xerror.ErrTruncated.More("empty operation stream")
	}

	o := &Operation{Code: op.Opcode(r.U8())}
	addr := func() register.Address { return register.Address(r.U256()) }
	switch o.Code {
	case op.Write, op.Append:
		o.Address = addr()
		o.Data = r.VarBytes()
	case op.Create:
		o.Address = addr()
		o.Type = r.U8()
		o.Data = r.VarBytes()
	case op.Transfer:
		o.Address = addr()
		o.Recipient = addr()
		o.Flag = r.U8()
	case op.Claim:
		o.Txid = r.U512()
		o.Contract = r.U32()
		o.Address = addr()
	case op.Debit:
		o.Address = addr()
		o.Recipient = addr()
		o.Amount = r.U64()
		o.Reference = r.U64()
	case op.Credit:
		o.Txid = r.U512()
		o.Contract = r.U32()
		o.Address = addr()
		o.Proof = addr()
		o.Amount = r.U64()
	case op.Genesis:
		o.Address = addr()
		o.Reward = r.U64()
	case op.Trust:
		o.Last = r.U512()
		o.Score = r.U64()
		o.StakeChange = int64(r.U64())
		o.Reward = r.U64()
	case op.Fee:
		o.Address = addr()
		o.Amount = r.U64()
	case op.Migrate:
		o.Txid = r.U512()
		o.Address = addr()
		o.KeyHash = r.U256()
		o.Amount = r.U64()
		o.Score = uint64(r.U32())
		o.Last = r.U512()
	case op.Legacy:
		o.Address = addr()
		o.Amount = r.U64()
		o.Data = r.VarBytes()
	case op.Coinbase:
		return nil, 0, xerror.ErrUnknownOpcode.More("%s is reserved", o.Code)
	default:
		return nil, 0, xerror.ErrUnknownOpcode.More("%s cannot lead a contract", o.Code)
	}
	if r.Err() != nil {
		return nil, 0, xerror.ErrTruncated.More("%s operands", o.Code)
	}
	if o.Code == op.Transfer && o.Flag != op.TransferClaim && o.Flag != op.TransferForce {
		return nil, 0, xerror.ErrInvalidOperand.More("transfer flag %#x", o.Flag)
	}

	end := r.Pos()
	if r.EOF() {
		return o, end, nil
	}

	next := op.Opcode(r.U8())
	switch {
	case next == op.Condition:
	case next.IsPrimitive():
		return nil, 0, xerror.ErrSecondPrimitive.More("%s after %s", next, o.Code)
	default:
		return nil, 0, xerror.ErrUnknownOpcode.More("%s after %s", next, o.Code)
	}
	if !o.Code.Conditional() {
		return nil, 0, xerror.ErrInvalidOperand.More("%s takes no condition", o.Code)
	}
	o.Condition = append([]byte(nil), r.Rest()...)
	if len(o.Condition) == 0 {
		return nil, 0, xerror.ErrConditionMalformed.More("empty condition")
	}
	if len(o.Condition) > condition.MaxConditionSize {
		return nil, 0, xerror.ErrConditionMalformed.More("condition size %d", len(o.Condition))
	}
	return o, end, nil
}

// Bytes encodes the operation, condition included.
func (o *Operation) Bytes() []byte {
	w := stream.NewWriter()
	w.U8(uint8(o.Code))
	addr := func(a register.Address) { w.U256(a.U256()) }
	switch o.Code {
	case op.Write, op.Append:
		addr(o.Address)
		w.VarBytes(o.Data)
	case op.Create:
		addr(o.Address)
		w.U8(o.Type).VarBytes(o.Data)
	case op.Transfer:
		addr(o.Address)
		addr(o.Recipient)
		w.U8(o.Flag)
	case op.Claim:
		w.U512(o.Txid).U32(o.Contract)
		addr(o.Address)
	case op.Debit:
		addr(o.Address)
		addr(o.Recipient)
		w.U64(o.Amount).U64(o.Reference)
	case op.Credit:
		w.U512(o.Txid).U32(o.Contract)
		addr(o.Address)
		addr(o.Proof)
		w.U64(o.Amount)
	case op.Genesis:
		addr(o.Address)
		w.U64(o.Reward)
	case op.Trust:
		w.U512(o.Last).U64(o.Score).U64(uint64(o.StakeChange)).U64(o.Reward)
	case op.Fee:
		addr(o.Address)
		w.U64(o.Amount)
	case op.Migrate:
		w.U512(o.Txid)
		addr(o.Address)
		w.U256(o.KeyHash).U64(o.Amount).U32(uint32(o.Score)).U512(o.Last)
	case op.Legacy:
		addr(o.Address)
		w.U64(o.Amount).VarBytes(o.Data)
	}
	if len(o.Condition) > 0 {
		w.U8(uint8(op.Condition)).Raw(o.Condition)
	}
	return w.Bytes()
}

// String renders the primitive in mnemonic form, condition excluded.
func (o *Operation) String() string {
	parts := []string{o.Code.String()}
	kv := func(k string, v interface{}) { parts = append(parts, fmt.Sprintf("%s=%v", k, v)) }
	switch o.Code {
	case op.Write, op.Append:
		kv("address", o.Address)
		kv("data", fmt.Sprintf("0x%x", o.Data))
	case op.Create:
		kv("address", o.Address)
		kv("type", o.Type)
		kv("data", fmt.Sprintf("0x%x", o.Data))
	case op.Transfer:
		kv("address", o.Address)
		kv("recipient", o.Recipient)
		if o.Flag == op.TransferForce {
			kv("flag", "FORCE")
		} else {
			kv("flag", "CLAIM")
		}
	case op.Claim:
		kv("txid", o.Txid)
		kv("contract", o.Contract)
		kv("address", o.Address)
	case op.Debit:
		kv("from", o.Address)
		kv("to", o.Recipient)
		kv("amount", o.Amount)
		kv("reference", o.Reference)
	case op.Credit:
		kv("txid", o.Txid)
		kv("contract", o.Contract)
		kv("to", o.Address)
		kv("proof", o.Proof)
		kv("amount", o.Amount)
	case op.Genesis:
		kv("address", o.Address)
		kv("reward", o.Reward)
	case op.Trust:
		kv("last", o.Last)
		kv("score", o.Score)
		kv("stake", o.StakeChange)
		kv("reward", o.Reward)
	case op.Fee:
		kv("account", o.Address)
		kv("amount", o.Amount)
	case op.Migrate:
		kv("txid", o.Txid)
		kv("address", o.Address)
		kv("keyhash", o.KeyHash)
		kv("amount", o.Amount)
		kv("score", o.Score)
		kv("last", o.Last)
	case op.Legacy:
		kv("from", o.Address)
		kv("amount", o.Amount)
		kv("script", fmt.Sprintf("0x%x", o.Data))
	}
	return strings.Join(parts, " ")
}

// Disassemble renders an operation stream: the primitive, and the
// condition program when present.
func Disassemble(ops []byte) (string, error) {
	o, _, err := DecodeOperation(ops)
	if err != nil {
		return "", err
	}
	if len(o.Condition) == 0 {
		return o.String(), nil
	}
	cond, err := condition.Disassemble(o.Condition)
	if err != nil {
		return "", err
	}
	return o.String() + " " + op.Condition.String() + " " + cond, nil
}
