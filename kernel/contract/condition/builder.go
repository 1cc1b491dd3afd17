package condition

import (
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

// Builder writes condition programs.
type Builder struct {
	w *stream.Writer
}

func NewBuilder() *Builder {
	return &Builder{w: stream.NewWriter()}
}

func (b *Builder) Op(codes ...op.Opcode) *Builder {
	for _, c := range codes {
		b.w.U8(uint8(c))
	}
	return b
}

func (b *Builder) U8(v uint8) *Builder {
	b.Op(op.Uint8).w.U8(v)
	return b
}

func (b *Builder) U32(v uint32) *Builder {
	b.Op(op.Uint32).w.U32(v)
	return b
}

func (b *Builder) U64(v uint64) *Builder {
	b.Op(op.Uint64).w.U64(v)
	return b
}

func (b *Builder) U256(v wideint.U256) *Builder {
	b.Op(op.Uint256).w.U256(v)
	return b
}

func (b *Builder) Bytes(v []byte) *Builder {
	b.Op(op.Bytes).w.VarBytes(v)
	return b
}

func (b *Builder) String(s string) *Builder {
	b.Op(op.String).w.VarString(s)
	return b
}

// Register emits a register reference opcode with its address operand.
func (b *Builder) Register(o op.Opcode, addr register.Address) *Builder {
	b.Op(o).w.U256(addr.U256())
	return b
}

// RegisterValue emits REGISTER::VALUE for one field of addr.
func (b *Builder) RegisterValue(addr register.Address, name string) *Builder {
	b.Op(op.RegisterValue).w.U256(addr.U256()).VarString(name)
	return b
}

// PrestateValue emits CALLER::PRESTATE::VALUE for one field.
func (b *Builder) PrestateValue(name string) *Builder {
	b.Op(op.CallerPrestateValue).w.VarString(name)
	return b
}

func (b *Builder) Subdata(begin, size uint16) *Builder {
	b.Op(op.Subdata).w.U16(begin).U16(size)
	return b
}

func (b *Builder) Program() []byte {
	return append([]byte(nil), b.w.Bytes()...)
}
