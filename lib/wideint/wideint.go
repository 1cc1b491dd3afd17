// Package wideint provides the fixed width 256, 512 and 1024 bit unsigned
// values used for register addresses, transaction ids and digests.
//
// Values are stored big-endian: byte 0 is the most significant byte.
package wideint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	hex "github.com/tmthrgd/go-hex"
)

const (
	Size256  = 32
	Size512  = 64
	Size1024 = 128
)

type U256 [Size256]byte

type U512 [Size512]byte

type U1024 [Size1024]byte

// U256FromUint64 places v in the low order bytes.
func U256FromUint64(v uint64) U256 {
	var u U256
	binary.BigEndian.PutUint64(u[Size256-8:], v)
	return u
}

// U256FromBytes copies b right aligned. It fails if b is longer than 32 bytes.
func U256FromBytes(b []byte) (U256, error) {
	var u U256
	if len(b) > Size256 {
		return u, fmt.Errorf("wideint: %d bytes overflow uint256", len(b))
	}
	copy(u[Size256-len(b):], b)
	return u, nil
}

func U256FromHex(s string) (U256, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return U256{}, err
	}
	return U256FromBytes(raw)
}

func (u U256) Bytes() []byte { return u[:] }
func (u U256) IsZero() bool { return u == U256{} }
func (u U256) Hex() string { return hex.EncodeToString(u[:]) }
func (u U256) String() string { return u.Hex() }
func (u U256) Big() *big.Int { return new(big.Int).SetBytes(u[:]) }
func (u U256) Cmp(o U256) int { return bytes.Compare(u[:], o[:]) }
func (u U256) Type() uint8 { return u[0] }
func (u U256) FitsUint64() bool { return isZero(u[:Size256-8]) }

// Uint64 returns the low 64 bits.
func (u U256) Uint64() uint64 {
	return binary.BigEndian.Uint64(u[Size256-8:])
}

// WithType returns a copy of u with its most significant byte replaced.
func (u U256) WithType(t uint8) U256 {
	u[0] = t
	return u
}

func U512FromUint64(v uint64) U512 {
	var u U512
	binary.BigEndian.PutUint64(u[Size512-8:], v)
	return u
}

func U512FromBytes(b []byte) (U512, error) {
	var u U512
	if len(b) > Size512 {
		return u, fmt.Errorf("wideint: %d bytes overflow uint512", len(b))
	}
	copy(u[Size512-len(b):], b)
	return u, nil
}

func U512FromHex(s string) (U512, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return U512{}, err
	}
	return U512FromBytes(raw)
}

func (u U512) Bytes() []byte { return u[:] }
func (u U512) IsZero() bool { return u == U512{} }
func (u U512) Hex() string { return hex.EncodeToString(u[:]) }
func (u U512) String() string { return u.Hex() }
func (u U512) Big() *big.Int { return new(big.Int).SetBytes(u[:]) }
func (u U512) Cmp(o U512) int { return bytes.Compare(u[:], o[:]) }
func (u U512) FitsUint64() bool { return isZero(u[:Size512-8]) }
func (u U512) Uint64() uint64 { return binary.BigEndian.Uint64(u[Size512-8:]) }

func U1024FromUint64(v uint64) U1024 {
	var u U1024
	binary.BigEndian.PutUint64(u[Size1024-8:], v)
	return u
}

func U1024FromBytes(b []byte) (U1024, error) {
	var u U1024
	if len(b) > Size1024 {
		return u, fmt.Errorf("wideint: %d bytes overflow uint1024", len(b))
	}
	copy(u[Size1024-len(b):], b)
	return u, nil
}

func (u U1024) Bytes() []byte { return u[:] }
func (u U1024) IsZero() bool { return u == U1024{} }
func (u U1024) Hex() string { return hex.EncodeToString(u[:]) }
func (u U1024) String() string { return u.Hex() }
func (u U1024) Big() *big.Int { return new(big.Int).SetBytes(u[:]) }
func (u U1024) Cmp(o U1024) int { return bytes.Compare(u[:], o[:]) }
func (u U1024) FitsUint64() bool { return isZero(u[:Size1024-8]) }
func (u U1024) Uint64() uint64 { return binary.BigEndian.Uint64(u[Size1024-8:]) }

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
