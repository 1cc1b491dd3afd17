package sandbox

import (
	"encoding/binary"
	"errors"

	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/wideint"
)

const (
	// StateBucket holds register states keyed by address
	StateBucket = "R"
	// ProofBucket holds spent claim and credit references
	ProofBucket = "P"
)

// BucketSeperator separator between bucket and raw key
const BucketSeperator = "/"

// ErrNotFound is returned when key is not found
var ErrNotFound = errors.New("key not found")

const proofKeySize = wideint.Size256 + wideint.Size512 + 4

func makeRawKey(bucket string, key []byte) []byte {
	k := append([]byte(bucket), []byte(BucketSeperator)...)
	return append(k, key...)
}

// ProofKeyBytes is the storage key of a proof record.
func ProofKeyBytes(key ledger.ProofKey) []byte {
	out := make([]byte, 0, proofKeySize)
	out = append(out, key.Register[:]...)
	out = append(out, key.Txid[:]...)
	return binary.LittleEndian.AppendUint32(out, key.Contract)
}

func parseProofKey(raw []byte) (ledger.ProofKey, bool) {
	var key ledger.ProofKey
	if len(raw) != proofKeySize {
		return key, false
	}
	copy(key.Register[:], raw[:wideint.Size256])
	copy(key.Txid[:], raw[wideint.Size256:wideint.Size256+wideint.Size512])
	key.Contract = binary.LittleEndian.Uint32(raw[wideint.Size256+wideint.Size512:])
	return key, true
}

func addressOf(raw []byte) register.Address {
	var a register.Address
	copy(a[:], raw)
	return a
}
