package register

import (
	"crypto/rand"

	"github.com/btcsuite/btcutil/base58"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/lib/crypto/hash"
	"github.com/xuperchain/xregister/lib/wideint"
)

// address type tags, stored in the most significant byte
const (
	AddrSystem        uint8 = 0x00
	AddrLegacy        uint8 = 0x2a
	AddrLegacyTestnet uint8 = 0x6f
	AddrReserved1     uint8 = 0xa1
	AddrReserved2     uint8 = 0xa2
	AddrReadonly      uint8 = 0xd1
	AddrAppend        uint8 = 0xd2
	AddrRaw           uint8 = 0xd3
	AddrObject        uint8 = 0xd4
	AddrCrypto        uint8 = 0xd5
	AddrAccount       uint8 = 0xd6
	AddrToken         uint8 = 0xd7
	AddrTrust         uint8 = 0xd8
	AddrName          uint8 = 0xd9
	AddrNamespace     uint8 = 0xda
	AddrWildcard      uint8 = 0xff
)

// SystemLimit is the largest value reserved for system addresses.
const SystemLimit = 0xff

// Address is a typed 256 bit register identifier.
type Address wideint.U256

// Wildcard is the debit destination that any account holding a satisfying
// condition may credit from.
var Wildcard = Address{0: AddrWildcard}

// Random draws a random address of the given type.
func Random(typ uint8) (Address, error) {
	if !randomType(typ) {
		return Address{}, xerror.ErrInvalidAddress.More("type %#x cannot be random", typ)
	}
	for {
		var a Address
		if _, err := rand.Read(a[:]); err != nil {
			return Address{}, xerror.ErrUnknown.Wrap(err)
		}
		a[0] = typ
		if a.IsValid() {
			return a, nil
		}
	}
}

// FromName derives the address of a namespace from its name.
func FromName(name string, typ uint8) (Address, error) {
	if typ != AddrNamespace {
		return Address{}, xerror.ErrInvalidAddress.More("type %#x cannot derive from name", typ)
	}
	a := Address(hash.Hash256([]byte(name)))
	a[0] = typ
	return a, nil
}

// FromKey derives the address of key under owner. It lets any node locate, for
// example, the trust account of a signature chain without an index.
func FromKey(key string, owner Address, typ uint8) (Address, error) {
	switch typ {
	case AddrTrust, AddrName, AddrCrypto:
	default:
		return Address{}, xerror.ErrInvalidAddress.More("type %#x cannot derive from key", typ)
	}
	a := Address(hash.Hash256([]byte(key), owner[:]))
	a[0] = typ
	return a, nil
}

// MustFromKey panics on an unsupported type.
func MustFromKey(key string, owner Address, typ uint8) Address {
	a, err := FromKey(key, owner, typ)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) Type() uint8 { return a[0] }

func (a Address) Bytes() []byte { return a[:] }

func (a Address) U256() wideint.U256 { return wideint.U256(a) }

func (a Address) IsZero() bool { return a == Address{} }

// IsSystem reports whether the value falls in the reserved system range.
func (a Address) IsSystem() bool {
	u := wideint.U256(a)
	return u.FitsUint64() && u.Uint64() <= SystemLimit
}

func (a Address) IsWildcard() bool { return a[0] == AddrWildcard }

func (a Address) IsLegacy() bool {
	return a[0] == AddrLegacy || a[0] == AddrLegacyTestnet
}

// IsValid reports whether the address lies above the system range and
// carries a recognised type, or is a legacy address.
func (a Address) IsValid() bool {
	if a.IsSystem() {
		return false
	}
	if a.IsLegacy() {
		return true
	}
	switch a[0] {
	case AddrReadonly, AddrAppend, AddrRaw, AddrObject, AddrCrypto, AddrAccount,
		AddrToken, AddrTrust, AddrName, AddrNamespace, AddrWildcard:
		return true
	}
	return false
}

// String renders the base58 check encoding with the type byte as version.
func (a Address) String() string {
	return base58.CheckEncode(a[:], a[0])
}

// ParseAddress decodes the text form. Strings led by a legacy marker are
// decoded as legacy key hashes first.
func ParseAddress(s string) (Address, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, xerror.ErrInvalidAddress.Wrap(err)
	}
	if len(payload) != wideint.Size256 {
		return Address{}, xerror.ErrInvalidAddress.More("payload length %d", len(payload))
	}

	var a Address
	copy(a[:], payload)
	if isLegacyMarker(s) {
		if version != AddrLegacy && version != AddrLegacyTestnet {
			return Address{}, xerror.ErrInvalidAddress.More("legacy version %#x", version)
		}
		a[0] = version
		return a, nil
	}

	if version != a[0] || !a.IsValid() {
		return Address{}, xerror.ErrInvalidAddress.More("%s", s)
	}
	return a, nil
}

// LegacyFromKeyHash builds a legacy address from a key hash.
func LegacyFromKeyHash(keyHash wideint.U256, testnet bool) Address {
	a := Address(keyHash)
	a[0] = AddrLegacy
	if testnet {
		a[0] = AddrLegacyTestnet
	}
	return a
}

func isLegacyMarker(s string) bool {
	return len(s) > 0 && (s[0] == '2' || s[0] == '4')
}

func randomType(typ uint8) bool {
	switch typ {
	case AddrReadonly, AddrAppend, AddrRaw, AddrObject, AddrCrypto, AddrAccount,
		AddrToken, AddrTrust, AddrName, AddrNamespace:
		return true
	}
	return false
}
