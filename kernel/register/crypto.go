package register

import (
	"github.com/cloudflare/circl/sign/dilithium/mode3"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/lib/crypto/hash"
	"github.com/xuperchain/xregister/lib/wideint"
)

// signature schemes, stored in the top byte of a key slot
const (
	SchemeLattice uint8 = 0x01
	SchemeEC      uint8 = 0x02
)

const seedSize = 32

// Credentials derives the secret seed of a signature chain key slot.
type Credentials interface {
	Seed(slot, pin string) ([]byte, error)
}

// Crypto is the parsed view of a crypto register.
type Crypto struct {
	*Object
}

func ParseCrypto(s *State) (*Crypto, error) {
	o, err := ParseObject(s)
	if err != nil {
		return nil, err
	}
	if o.Standard() != StandardCrypto {
		return nil, xerror.ErrStandard.More("not a crypto register")
	}
	return &Crypto{o}, nil
}

// KeyHash is the slot value committing to pubkey under scheme.
func KeyHash(pubkey []byte, scheme uint8) wideint.U256 {
	h := hash.Hash256(pubkey)
	h[0] = scheme
	return h
}

func (c *Crypto) slot(name string) (wideint.U256, error) {
	known := false
	for _, s := range CryptoSlots {
		if s == name {
			known = true
			break
		}
	}
	if !known {
		return wideint.U256{}, xerror.ErrFieldNotFound.More("key slot %s", name)
	}
	v, err := c.ReadU256(name)
	if err != nil {
		return wideint.U256{}, err
	}
	if v.IsZero() {
		return wideint.U256{}, xerror.ErrSlotDisabled.More("%s", name)
	}
	return v, nil
}

// VerifySignature checks sig over data with pubkey against the hash stored in
// slot. Any mismatch yields false; a disabled slot yields ErrSlotDisabled.
func (c *Crypto) VerifySignature(slot string, data, pubkey, sig []byte) (bool, error) {
	stored, err := c.slot(slot)
	if err != nil {
		return false, err
	}
	scheme := stored[0]
	if KeyHash(pubkey, scheme) != stored {
		return false, nil
	}

	switch scheme {
	case SchemeLattice:
		return verifyLattice(data, pubkey, sig), nil
	case SchemeEC:
		return verifyEC(data, pubkey, sig), nil
	}
	return false, nil
}

// GenerateSignature derives the slot key from creds, checks it against the
// stored hash and signs data. It returns the public key with the signature.
func (c *Crypto) GenerateSignature(slot string, creds Credentials, pin string, data []byte) ([]byte, []byte, error) {
	stored, err := c.slot(slot)
	if err != nil {
		return nil, nil, err
	}
	seed, err := creds.Seed(slot, pin)
	if err != nil {
		return nil, nil, xerror.ErrKeyMismatch.Wrap(err)
	}
	if len(seed) != seedSize {
		return nil, nil, xerror.ErrKeyMismatch.More("seed size %d", len(seed))
	}

	var pub, sig []byte
	switch scheme := stored[0]; scheme {
	case SchemeLattice:
		pub, sig = signLattice(seed, data)
	case SchemeEC:
		pub, sig, err = signEC(seed, data)
		if err != nil {
			return nil, nil, xerror.ErrKeyMismatch.Wrap(err)
		}
	default:
		return nil, nil, xerror.ErrSignature.More("unknown scheme %#x", scheme)
	}

	if KeyHash(pub, stored[0]) != stored {
		return nil, nil, xerror.ErrKeyMismatch.More("%s", slot)
	}
	return pub, sig, nil
}

// DeriveKeyHash returns the slot value for the key derived from seed.
func DeriveKeyHash(seed []byte, scheme uint8) (wideint.U256, error) {
	if len(seed) != seedSize {
		return wideint.U256{}, xerror.ErrKeyMismatch.More("seed size %d", len(seed))
	}
	switch scheme {
	case SchemeLattice:
		pub, _ := latticeKey(seed)
		return KeyHash(pub.Bytes(), scheme), nil
	case SchemeEC:
		priv, err := ethcrypto.ToECDSA(seed)
		if err != nil {
			return wideint.U256{}, xerror.ErrKeyMismatch.Wrap(err)
		}
		return KeyHash(ethcrypto.FromECDSAPub(&priv.PublicKey), scheme), nil
	}
	return wideint.U256{}, xerror.ErrSignature.More("unknown scheme %#x", scheme)
}

func latticeKey(seed []byte) (*mode3.PublicKey, *mode3.PrivateKey) {
	var s [seedSize]byte
	copy(s[:], seed)
	return mode3.NewKeyFromSeed(&s)
}

func signLattice(seed, data []byte) ([]byte, []byte) {
	pk, sk := latticeKey(seed)
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(sk, data, sig)
	return pk.Bytes(), sig
}

func verifyLattice(data, pubkey, sig []byte) bool {
	if len(sig) != mode3.SignatureSize {
		return false
	}
	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(pubkey); err != nil {
		return false
	}
	return mode3.Verify(&pk, data, sig)
}

// the elliptic curve scheme signs the 256 bit digest of the data
func signEC(seed, data []byte) ([]byte, []byte, error) {
	priv, err := ethcrypto.ToECDSA(seed)
	if err != nil {
		return nil, nil, err
	}
	digest := hash.Hash256(data)
	sig, err := ethcrypto.Sign(digest[:], priv)
	if err != nil {
		return nil, nil, err
	}
	return ethcrypto.FromECDSAPub(&priv.PublicKey), sig, nil
}

func verifyEC(data, pubkey, sig []byte) bool {
	if len(sig) < 64 {
		return false
	}
	digest := hash.Hash256(data)
	return ethcrypto.VerifySignature(pubkey, digest[:], sig[:64])
}
