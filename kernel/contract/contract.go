package contract

import (
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

type Phase uint8

const (
	PhaseUnbuilt Phase = iota
	PhaseBuilt
	PhaseExecuted
	PhaseVerified
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnbuilt:
		return "unbuilt"
	case PhaseBuilt:
		return "built"
	case PhaseExecuted:
		return "executed"
	case PhaseVerified:
		return "verified"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Contract is one primitive, its optional condition and the register
// stream recorded by Build. Caller, Timestamp, Txid and Index are assigned
// by the transaction holding it.
type Contract struct {
	ops       []byte
	registers []byte

	Caller    register.Address
	Timestamp uint64
	Txid      wideint.U512
	Index     uint32
	// primitive streams of the whole transaction
	txOps []byte

	phase     Phase
	operation *Operation
	primEnd   int
}

// NewContract wraps an operation stream. The stream is decoded lazily.
func NewContract(ops []byte) *Contract {
	return &Contract{ops: append([]byte(nil), ops...)}
}

// WithCondition attaches a condition program to an unbuilt contract,
// replacing any previous one.
func (c *Contract) WithCondition(program []byte) *Contract {
	base := c.ops
	if _, end, err := DecodeOperation(c.ops); err == nil {
		base = c.ops[:end]
	}
	ops := make([]byte, 0, len(base)+1+len(program))
	ops = append(ops, base...)
	ops = append(ops, uint8(op.Condition))
	c.ops = append(ops, program...)
	c.operation = nil
	return c
}

func (c *Contract) Ops() []byte { return c.ops }

// Registers is the register stream, empty before Build.
func (c *Contract) Registers() []byte { return c.registers }

func (c *Contract) Phase() Phase { return c.phase }

func (c *Contract) fail() { c.phase = PhaseFailed }

// Operation decodes the operation stream once.
func (c *Contract) Operation() (*Operation, error) {
	if c.operation != nil {
		return c.operation, nil
	}
	o, end, err := DecodeOperation(c.ops)
	if err != nil {
		return nil, err
	}
	c.operation, c.primEnd = o, end
	return o, nil
}

// Primitive is the operation stream without the condition.
func (c *Contract) Primitive() []byte {
	if _, err := c.Operation(); err != nil {
		return c.ops
	}
	return c.ops[:c.primEnd]
}

// Target is the register the contract mutates.
func (c *Contract) Target() (register.Address, error) {
	o, err := c.Operation()
	if err != nil {
		return register.Address{}, err
	}
	if o.Code == op.Trust {
		return register.FromKey("trust", c.Caller, register.AddrTrust)
	}
	return o.Address, nil
}

// record is the decoded register stream.
type record struct {
	pre      *register.State
	checksum uint64
}

func encodeRecord(pre *register.State, post *register.State) []byte {
	w := stream.NewWriter()
	if pre != nil {
		w.U8(op.Prestate).Raw(pre.Serialize())
	}
	w.U8(op.Poststate).U64(post.Checksum)
	return w.Bytes()
}

func decodeRecord(raw []byte) (*record, error) {
	r := stream.NewReader(raw)
	rec := &record{}
	tag := r.U8()
	if tag == op.Prestate {
		pre, err := register.DecodeState(r)
		if err != nil {
			return nil, err
		}
		rec.pre = pre
		tag = r.U8()
	}
	if tag != op.Poststate {
		return nil, xerror.ErrInvalidOperand.More("register stream tag %#x", tag)
	}
	rec.checksum = r.U64()
	if r.Err() != nil {
		return nil, xerror.ErrTruncated.More("register stream")
	}
	if !r.EOF() {
		return nil, xerror.ErrTruncated.More("%d trailing register bytes", r.Len())
	}
	return rec, nil
}

// PreState returns the recorded pre-state, nil for CREATE.
func (c *Contract) PreState() (*register.State, error) {
	if len(c.registers) == 0 {
		return nil, xerror.ErrBadPhase.More("contract %d not built", c.Index)
	}
	rec, err := decodeRecord(c.registers)
	if err != nil {
		return nil, err
	}
	return rec.pre, nil
}

// Serialize is the stored form: ops and register stream. The caller
// context is not included.
func (c *Contract) Serialize() []byte {
	return stream.NewWriter().VarBytes(c.ops).VarBytes(c.registers).Bytes()
}

func decodeContract(r *stream.Reader) (*Contract, error) {
	ops := r.VarBytes()
	regs := r.VarBytes()
	if r.Err() != nil {
		return nil, xerror.ErrTruncated.More("contract")
	}
	c := NewContract(ops)
	if len(regs) > 0 {
		if _, err := decodeRecord(regs); err != nil {
			return nil, err
		}
		c.registers = append([]byte(nil), regs...)
		c.phase = PhaseBuilt
	}
	return c, nil
}
