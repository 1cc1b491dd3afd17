package sandbox

import (
	"sync"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
)

var _ ledger.Scope = (*Scope)(nil)

// Scope is a storage transaction backed by a Cache. Stores create it in
// TxnBegin and settle it in TxnCommit or TxnAbort.
type Scope struct {
	cache *Cache
	mode  ledger.ScopeMode

	mu     sync.Mutex
	closed bool
}

func NewScope(model Reader, mode ledger.ScopeMode) *Scope {
	return &Scope{cache: NewCache(model), mode: mode}
}

func (s *Scope) Mode() ledger.ScopeMode { return s.mode }

func (s *Scope) ReadState(addr register.Address) (*register.State, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.cache.ReadState(addr)
}

func (s *Scope) WriteState(addr register.Address, state *register.State) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.cache.WriteState(addr, state)
}

func (s *Scope) HasProof(key ledger.ProofKey) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.cache.HasProof(key)
}

func (s *Scope) WriteProof(key ledger.ProofKey) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.cache.WriteProof(key)
}

// Close marks the scope settled and returns its read/write sets. Closing a
// settled scope fails.
func (s *Scope) Close() (*RWSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, xerror.ErrScopeClosed
	}
	s.closed = true
	return s.cache.RWSet()
}

func (s *Scope) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return xerror.ErrScopeClosed
	}
	return nil
}

// CastScope converts a ledger scope created by this package.
func CastScope(scope ledger.Scope) (*Scope, error) {
	s, ok := scope.(*Scope)
	if !ok || s == nil {
		return nil, xerror.ErrScopeClosed.More("foreign scope")
	}
	return s, nil
}
