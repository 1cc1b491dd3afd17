package condition

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/crypto/hash"
	"github.com/xuperchain/xregister/lib/wideint"
)

// kindMissing stands for a reference that could not be resolved; it compares
// false against anything.
const kindMissing kind = 0xff

var missing = value{kind: kindMissing}

// value reads a primary value followed by its modifiers.
func (m *machine) value() (value, error) {
	v, err := m.primary()
	if err != nil {
		return value{}, err
	}
	for {
		code, ok := m.r.Peek()
		if !ok || !op.Opcode(code).IsModifier() {
			return v, nil
		}
		if v, err = m.modify(m.next(), v); err != nil {
			return value{}, err
		}
	}
}

func (m *machine) primary() (value, error) {
	o := m.next()
	if m.r.Err() != nil {
		return value{}, malformed("truncated value")
	}

	var (
		v   value
		err error
	)
	switch o {
	case op.Uint8:
		v = intValue(uint64(m.r.U8()))
	case op.Uint16:
		v = intValue(uint64(m.r.U16()))
	case op.Uint32:
		v = intValue(uint64(m.r.U32()))
	case op.Uint64:
		v = intValue(m.r.U64())
	case op.Uint256:
		v = wideValue(m.r.Bytes(wideint.Size256))
	case op.Uint512:
		v = wideValue(m.r.Bytes(wideint.Size512))
	case op.Uint1024:
		v = wideValue(m.r.Bytes(wideint.Size1024))
	case op.String, op.Bytes:
		b := m.r.VarBytes()
		if m.r.Err() == nil && len(b) == 0 {
			return value{}, malformed("empty %s literal", o)
		}
		v = bytesValue(b)

	case op.RegisterCreated, op.RegisterModified, op.RegisterOwner, op.RegisterType, op.RegisterState:
		addr := register.Address(m.r.U256())
		if m.r.Err() != nil {
			break
		}
		var s *register.State
		if s, err = m.readState(addr); err != nil {
			return value{}, err
		}
		v = meta(o, s)
	case op.RegisterValue:
		addr := register.Address(m.r.U256())
		name := m.r.VarString()
		if m.r.Err() != nil {
			break
		}
		var s *register.State
		if s, err = m.readState(addr); err != nil {
			return value{}, err
		}
		v = m.field(s, name)

	case op.CallerGenesis:
		v = wideValue(m.env.Caller.Genesis[:])
	case op.CallerTimestamp:
		v = intValue(m.env.Caller.Timestamp)
	case op.CallerOperations:
		v = bytesValue(m.env.Caller.Operations)
	case op.CallerPrestateCreated, op.CallerPrestateModified, op.CallerPrestateOwner,
		op.CallerPrestateType, op.CallerPrestateState:
		s := m.env.Caller.PreState
		if s == nil {
			m.warn(WarnUnavailable)
		}
		v = meta(o, s)
	case op.CallerPrestateValue:
		name := m.r.VarString()
		if m.r.Err() != nil {
			break
		}
		s := m.env.Caller.PreState
		if s == nil {
			m.warn(WarnUnavailable)
		}
		v = m.field(s, name)

	case op.ContractGenesis:
		v = wideValue(m.env.Contract.Genesis[:])
	case op.ContractTimestamp:
		v = intValue(m.env.Contract.Timestamp)
	case op.ContractOperations:
		v = bytesValue(m.env.Contract.Operations)

	case op.LedgerHeight, op.LedgerSupply, op.LedgerTimestamp:
		v = m.ledger(o)

	case op.CryptoSK256, op.CryptoSK512:
		inner, err := m.value()
		if err != nil {
			return value{}, err
		}
		if inner.kind == kindMissing {
			return missing, nil
		}
		if o == op.CryptoSK256 {
			h := hash.Hash256(inner.raw())
			return wideValue(h[:]), nil
		}
		h := hash.Hash512(inner.raw())
		return wideValue(h[:]), nil

	default:
		return value{}, malformed("unknown opcode %s", o)
	}

	if m.r.Err() != nil {
		return value{}, malformed("truncated %s", o)
	}
	return v, nil
}

func meta(o op.Opcode, s *register.State) value {
	if s == nil {
		return missing
	}
	switch o {
	case op.RegisterCreated, op.CallerPrestateCreated:
		return intValue(s.Created)
	case op.RegisterModified, op.CallerPrestateModified:
		return intValue(s.Modified)
	case op.RegisterOwner, op.CallerPrestateOwner:
		return wideValue(s.Owner[:])
	case op.RegisterType, op.CallerPrestateType:
		return intValue(uint64(s.Type))
	default:
		return bytesValue(s.Data())
	}
}

func (m *machine) field(s *register.State, name string) value {
	if s == nil {
		return missing
	}
	obj, err := register.ParseObject(s.Clone())
	if err != nil {
		m.warn(WarnNotFound)
		return missing
	}
	fv, err := obj.Read(name)
	if err != nil {
		m.warn(WarnNotFound)
		return missing
	}
	return fieldValue(fv)
}

func (m *machine) ledger(o op.Opcode) value {
	c := m.env.Chain
	if c == nil {
		m.warn(WarnUnavailable)
		return missing
	}
	switch o {
	case op.LedgerHeight:
		return intValue(c.Height())
	case op.LedgerSupply:
		return intValue(c.Supply())
	default:
		return intValue(c.Timestamp())
	}
}

func (m *machine) modify(o op.Opcode, v value) (value, error) {
	switch o {
	case op.Inc, op.Dec:
		if v.kind == kindMissing {
			return v, nil
		}
		if v.kind != kindInt {
			return value{}, malformed("%s on non 64 bit value", o)
		}
		var overflow bool
		if o == op.Inc {
			v.n, overflow = math.SafeAdd(v.n, 1)
		} else {
			v.n, overflow = math.SafeSub(v.n, 1)
		}
		if overflow {
			m.warn(WarnOverflow)
		}
		return v, nil

	case op.Add, op.Sub, op.Mul, op.Div, op.Mod, op.Exp:
		arg, err := m.primary()
		if err != nil {
			return value{}, err
		}
		if v.kind == kindMissing || arg.kind == kindMissing {
			return missing, nil
		}
		if v.kind != kindInt || arg.kind != kindInt {
			return value{}, malformed("%s on non 64 bit value", o)
		}
		return m.arith(o, v.n, arg.n)

	case op.Subdata:
		begin, size := int(m.r.U16()), int(m.r.U16())
		if m.r.Err() != nil {
			return value{}, malformed("truncated %s", o)
		}
		if v.kind == kindMissing {
			return v, nil
		}
		if v.kind == kindInt {
			return value{}, malformed("%s on integer", o)
		}
		if begin+size > len(v.data) {
			return value{}, malformed("%s range %d+%d beyond %d", o, begin, size, len(v.data))
		}
		return value{kind: kindBytes, data: append([]byte(nil), v.data[begin:begin+size]...)}, nil

	case op.Cat:
		arg, err := m.primary()
		if err != nil {
			return value{}, err
		}
		if v.kind == kindMissing || arg.kind == kindMissing {
			return missing, nil
		}
		if v.kind != kindBytes {
			return value{}, malformed("%s on non byte value", o)
		}
		out := append(append([]byte(nil), v.data...), arg.raw()...)
		if len(out) > MaxMemory {
			return value{}, malformed("%s exceeds %d bytes", o, MaxMemory)
		}
		return value{kind: kindBytes, data: out}, nil
	}
	return value{}, malformed("unknown modifier %s", o)
}

// arith is 64 bit only; overflow is a warning and division by zero is malformed.
func (m *machine) arith(o op.Opcode, a, b uint64) (value, error) {
	var (
		r        uint64
		overflow bool
	)
	switch o {
	case op.Add:
		r, overflow = math.SafeAdd(a, b)
	case op.Sub:
		r, overflow = math.SafeSub(a, b)
	case op.Mul:
		r, overflow = math.SafeMul(a, b)
	case op.Div, op.Mod:
		if b == 0 {
			return value{}, malformed("%s by zero", o)
		}
		if o == op.Div {
			r = a / b
		} else {
			r = a % b
		}
	case op.Exp:
		r, overflow = pow(a, b)
	}
	if overflow {
		m.warn(WarnOverflow)
	}
	return intValue(r), nil
}

func pow(base, exp uint64) (uint64, bool) {
	result := uint64(1)
	overflow := false
	for exp > 0 {
		var o bool
		if exp&1 == 1 {
			result, o = math.SafeMul(result, base)
			overflow = overflow || o
		}
		exp >>= 1
		if exp > 0 {
			base, o = math.SafeMul(base, base)
			overflow = overflow || o
		}
	}
	return result, overflow
}

func compare(cmp op.Opcode, lhs, rhs value) (bool, error) {
	if lhs.kind == kindMissing || rhs.kind == kindMissing {
		return false, nil
	}
	if cmp == op.Contains {
		if lhs.kind != kindBytes || rhs.kind != kindBytes {
			return false, malformed("%s on non byte values", cmp)
		}
		return bytes.Contains(lhs.data, rhs.data), nil
	}

	var c int
	switch {
	case lhs.numeric() && rhs.numeric():
		c = compareNumeric(lhs, rhs)
	case lhs.kind == kindBytes && rhs.kind == kindBytes:
		c = bytes.Compare(lhs.data, rhs.data)
	default:
		return false, malformed("%s between integer and bytes", cmp)
	}

	switch cmp {
	case op.Equals:
		return c == 0, nil
	case op.NotEquals:
		return c != 0, nil
	case op.LessThan:
		return c < 0, nil
	case op.GreaterThan:
		return c > 0, nil
	case op.LessEquals:
		return c <= 0, nil
	default:
		return c >= 0, nil
	}
}
