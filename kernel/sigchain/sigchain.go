// Package sigchain derives signature chain identities and key seeds from
// user credentials.
package sigchain

import (
	"encoding/binary"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/argon2"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/crypto/hash"
	"github.com/xuperchain/xregister/lib/wideint"
)

const (
	seedSize   = 32
	minSaltLen = 8
	genesisLen = 16
)

// Params are the argon2id costs. Memory is in KiB.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

var DefaultParams = Params{Time: 12, Memory: 1 << 16, Threads: 1}

func (p Params) valid() bool {
	return p.Time > 0 && p.Threads > 0 && p.Memory >= 8*uint32(p.Threads)
}

// SignatureChain holds the credentials of one user. It is safe for
// concurrent use.
type SignatureChain struct {
	username []byte
	password []byte
	genesis  register.Address
	params   Params

	mu    sync.Mutex
	seeds *lru.Cache
}

var _ register.Credentials = (*SignatureChain)(nil)

func New(username, password string, testnet bool, params Params) (*SignatureChain, error) {
	if username == "" || password == "" {
		return nil, xerror.ErrInvalidOperand.More("username and password required")
	}
	if !params.valid() {
		return nil, xerror.ErrInvalidOperand.More("argon2 params %+v", params)
	}
	seeds, err := lru.New(len(register.CryptoSlots))
	if err != nil {
		return nil, xerror.ErrUnknown.Wrap(err)
	}
	return &SignatureChain{
		username: []byte(username),
		password: []byte(password),
		genesis:  Genesis(username, testnet, params),
		params:   params,
		seeds:    seeds,
	}, nil
}

// Genesis is the identifier of the chain opened by username. The salt is
// fixed so anyone knowing the name can locate the chain.
func Genesis(username string, testnet bool, params Params) register.Address {
	var salt [genesisLen]byte
	key := argon2.IDKey([]byte(username), salt[:], params.Time, params.Memory, params.Threads, seedSize)
	var g register.Address
	copy(g[:], key)
	g[0] = register.AddrReserved1
	if testnet {
		g[0] = register.AddrReserved2
	}
	return g
}

func (s *SignatureChain) Genesis() register.Address { return s.genesis }

// Seed derives the 32 byte secret of a key slot. The username and slot
// salt the password; the pin is mixed in as secret input.
func (s *SignatureChain) Seed(slot, pin string) ([]byte, error) {
	if pin == "" {
		return nil, xerror.ErrKeyMismatch.More("pin required")
	}
	id := slotID(slot)
	if id < 0 {
		return nil, xerror.ErrFieldNotFound.More("key slot %s", slot)
	}
	key := cacheKey(slot, pin)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.password == nil {
		return nil, xerror.ErrKeyMismatch.More("credentials cleared")
	}
	if v, ok := s.seeds.Get(key); ok {
		return append([]byte(nil), v.([]byte)...), nil
	}

	var kid [4]byte
	binary.LittleEndian.PutUint32(kid[:], uint32(id))
	salt := append(append([]byte(nil), s.username...), kid[:]...)
	for len(salt) < minSaltLen {
		salt = append(salt, 0)
	}
	secret := make([]byte, 0, len(s.password)+len(pin)+len(slot)+8)
	secret = append(secret, s.password...)
	secret = append(secret, kid[:]...)
	secret = append(secret, pin...)
	secret = append(secret, kid[:]...)
	secret = append(secret, slot...)

	seed := argon2.IDKey(secret, salt, s.params.Time, s.params.Memory, s.params.Threads, seedSize)
	s.seeds.Add(key, seed)
	return append([]byte(nil), seed...), nil
}

// KeyHash is the crypto register value for slot under scheme.
func (s *SignatureChain) KeyHash(slot, pin string, scheme uint8) (wideint.U256, error) {
	seed, err := s.Seed(slot, pin)
	if err != nil {
		return wideint.U256{}, err
	}
	return register.DeriveKeyHash(seed, scheme)
}

// CryptoAddress is the crypto register of the chain.
func (s *SignatureChain) CryptoAddress() register.Address {
	return register.MustFromKey("crypto", s.genesis, register.AddrCrypto)
}

// CryptoPayload builds the crypto register payload with the given slots
// enabled. Slots not listed stay disabled.
func (s *SignatureChain) CryptoPayload(pin string, schemes map[string]uint8) ([]byte, error) {
	slots := make(map[string]wideint.U256, len(schemes))
	for slot, scheme := range schemes {
		h, err := s.KeyHash(slot, pin, scheme)
		if err != nil {
			return nil, err
		}
		slots[slot] = h
	}
	return register.CreateCrypto(slots), nil
}

// Clear wipes the password and cached seeds. Later Seed calls fail.
func (s *SignatureChain) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.password {
		s.password[i] = 0
	}
	s.password = nil
	s.seeds.Purge()
}

func slotID(slot string) int {
	for i, name := range register.CryptoSlots {
		if name == slot {
			return i
		}
	}
	return -1
}

// cached seeds are keyed by a digest so pins are not kept in memory
func cacheKey(slot, pin string) wideint.U256 {
	return hash.Hash256([]byte(slot), []byte{0}, []byte(pin))
}
