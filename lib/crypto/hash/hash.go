// Package hash exposes the digest primitives used for register identity,
// address derivation and condition programs. Callers treat the results as
// opaque fixed width values.
package hash

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/xuperchain/xregister/lib/wideint"
)

// Hash256 returns the 256 bit keccak digest of the concatenated inputs.
func Hash256(data ...[]byte) wideint.U256 {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out wideint.U256
	h.Sum(out[:0])
	return out
}

// Hash512 returns the 512 bit keccak digest of the concatenated inputs.
func Hash512(data ...[]byte) wideint.U512 {
	h := sha3.NewLegacyKeccak512()
	for _, d := range data {
		h.Write(d)
	}
	var out wideint.U512
	h.Sum(out[:0])
	return out
}

// Hash64 folds Hash256 into 64 bits, used for register checksums.
func Hash64(data ...[]byte) uint64 {
	full := Hash256(data...)
	return binary.LittleEndian.Uint64(full[:8])
}
