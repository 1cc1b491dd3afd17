package register

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

// FieldMutable precedes the type tag of a mutable field.
const FieldMutable uint8 = 0x01

type FieldType uint8

const (
	TypeUint8    FieldType = 0x02
	TypeUint16   FieldType = 0x03
	TypeUint32   FieldType = 0x04
	TypeUint64   FieldType = 0x05
	TypeUint256  FieldType = 0x06
	TypeUint512  FieldType = 0x07
	TypeUint1024 FieldType = 0x08
	TypeString   FieldType = 0x09
	TypeBytes    FieldType = 0x0a
)

func (t FieldType) String() string {
	switch t {
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint32:
		return "uint32"
	case TypeUint64:
		return "uint64"
	case TypeUint256:
		return "uint256"
	case TypeUint512:
		return "uint512"
	case TypeUint1024:
		return "uint1024"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	}
	return fmt.Sprintf("unknown(%#x)", uint8(t))
}

// Width returns the encoded size of a fixed width type, 0 for length
// prefixed types and -1 for unknown tags.
func (t FieldType) Width() int {
	switch t {
	case TypeUint8:
		return 1
	case TypeUint16:
		return 2
	case TypeUint32:
		return 4
	case TypeUint64:
		return 8
	case TypeUint256:
		return wideint.Size256
	case TypeUint512:
		return wideint.Size512
	case TypeUint1024:
		return wideint.Size1024
	case TypeString, TypeBytes:
		return 0
	}
	return -1
}

func (t FieldType) Valid() bool { return t.Width() >= 0 }

func (t FieldType) IsInteger() bool { return t.Width() > 0 }

// Value is a typed field value holding its encoded bytes: little-endian up to
// 64 bits, big-endian for wide integers, verbatim for strings and bytes.
type Value struct {
	Type FieldType
	raw  []byte
}

func U8(v uint8) Value { return Value{TypeUint8, []byte{v}} }

func U16(v uint16) Value {
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, v)
	return Value{TypeUint16, raw}
}

func U32(v uint32) Value {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, v)
	return Value{TypeUint32, raw}
}

func U64(v uint64) Value {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, v)
	return Value{TypeUint64, raw}
}

func U256(v wideint.U256) Value { return Value{TypeUint256, append([]byte(nil), v[:]...)} }

func U512(v wideint.U512) Value { return Value{TypeUint512, append([]byte(nil), v[:]...)} }

func U1024(v wideint.U1024) Value { return Value{TypeUint1024, append([]byte(nil), v[:]...)} }

func Str(s string) Value { return Value{TypeString, []byte(s)} }

func Raw(b []byte) Value { return Value{TypeBytes, append([]byte(nil), b...)} }

// Bytes returns the encoded value bytes.
func (v Value) Bytes() []byte { return v.raw }

// Uint64 converts any integer value that fits in 64 bits.
func (v Value) Uint64() (uint64, bool) {
	switch v.Type {
	case TypeUint8:
		return uint64(v.raw[0]), true
	case TypeUint16:
		return uint64(binary.LittleEndian.Uint16(v.raw)), true
	case TypeUint32:
		return uint64(binary.LittleEndian.Uint32(v.raw)), true
	case TypeUint64:
		return binary.LittleEndian.Uint64(v.raw), true
	case TypeUint256, TypeUint512, TypeUint1024:
		n := len(v.raw)
		if !allZero(v.raw[:n-8]) {
			return 0, false
		}
		return binary.BigEndian.Uint64(v.raw[n-8:]), true
	}
	return 0, false
}

// Uint256 converts any integer value that fits in 256 bits.
func (v Value) Uint256() (wideint.U256, bool) {
	switch v.Type {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		n, _ := v.Uint64()
		return wideint.U256FromUint64(n), true
	case TypeUint256, TypeUint512, TypeUint1024:
		n := len(v.raw)
		if !allZero(v.raw[:n-wideint.Size256]) {
			return wideint.U256{}, false
		}
		var u wideint.U256
		copy(u[:], v.raw[n-wideint.Size256:])
		return u, true
	}
	return wideint.U256{}, false
}

// Text returns a string value with its null padding removed.
func (v Value) Text() string {
	return string(bytes.TrimRight(v.raw, "\x00"))
}

func (v Value) Equal(o Value) bool {
	return v.Type == o.Type && bytes.Equal(v.raw, o.raw)
}

func (v Value) encode(w *stream.Writer) {
	w.U8(uint8(v.Type))
	if v.Type.Width() == 0 {
		w.VarBytes(v.raw)
		return
	}
	w.Raw(v.raw)
}

func (v Value) String() string {
	switch v.Type {
	case TypeString:
		return fmt.Sprintf("%q", v.Text())
	case TypeBytes:
		return fmt.Sprintf("%x", v.raw)
	}
	if n, ok := v.Uint64(); ok {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("0x%x", v.raw)
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
