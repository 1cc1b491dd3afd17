package condition

import (
	"bytes"
	"encoding/binary"

	"github.com/xuperchain/xregister/kernel/register"
)

type kind uint8

const (
	kindInt kind = iota + 1
	kindWide
	kindBytes
)

// value is one operand on the evaluation stack. Integers up to 64 bits are
// held in n, wider integers as big-endian bytes.
type value struct {
	kind kind
	n    uint64
	data []byte
}

func intValue(n uint64) value { return value{kind: kindInt, n: n} }

func wideValue(b []byte) value { return value{kind: kindWide, data: append([]byte(nil), b...)} }

func bytesValue(b []byte) value { return value{kind: kindBytes, data: append([]byte(nil), b...)} }

func (v value) numeric() bool { return v.kind == kindInt || v.kind == kindWide }

// size is the memory the operand occupies.
func (v value) size() int {
	if v.kind == kindInt {
		return 8
	}
	return len(v.data)
}

// raw is the canonical byte form hashed by the crypto opcodes.
func (v value) raw() []byte {
	if v.kind == kindInt {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v.n)
		return b[:]
	}
	return v.data
}

// bigEndian renders a numeric value left padded to width bytes.
func (v value) bigEndian(width int) []byte {
	out := make([]byte, width)
	if v.kind == kindInt {
		binary.BigEndian.PutUint64(out[width-8:], v.n)
		return out
	}
	copy(out[width-len(v.data):], v.data)
	return out
}

// compareNumeric orders two numeric values regardless of width.
func compareNumeric(a, b value) int {
	width := 8
	if a.kind == kindWide && len(a.data) > width {
		width = len(a.data)
	}
	if b.kind == kindWide && len(b.data) > width {
		width = len(b.data)
	}
	return bytes.Compare(a.bigEndian(width), b.bigEndian(width))
}

// fieldValue projects an object field onto the stack model.
func fieldValue(v register.Value) value {
	switch v.Type {
	case register.TypeUint8, register.TypeUint16, register.TypeUint32, register.TypeUint64:
		n, _ := v.Uint64()
		return intValue(n)
	case register.TypeUint256, register.TypeUint512, register.TypeUint1024:
		return wideValue(v.Bytes())
	default:
		if v.Type == register.TypeString {
			return bytesValue([]byte(v.Text()))
		}
		return bytesValue(v.Bytes())
	}
}
