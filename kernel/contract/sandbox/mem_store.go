package sandbox

import (
	"sync"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
)

var _ ledger.RegisterStore = (*MemStore)(nil)

// MemStore is an in-memory register store used by speculative tooling and
// tests. Commit validates the read set the same way the persistent store does.
type MemStore struct {
	mu    sync.RWMutex
	model *MemModel
}

func NewMemStore() *MemStore {
	return &MemStore{model: NewMemModel()}
}

func (m *MemStore) ReadState(addr register.Address) (*register.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, err := m.model.Get(StateBucket, addr[:])
	if err != nil {
		return nil, xerror.ErrRegisterNotFound.More("%x", addr[:])
	}
	return register.ParseState(e.Value)
}

func (m *MemStore) HasProof(key ledger.ProofKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.model.Get(ProofBucket, ProofKeyBytes(key))
	return err == nil, nil
}

// Put seeds a committed state directly.
func (m *MemStore) Put(addr register.Address, state *register.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model.Put(StateBucket, addr[:], state.Serialize())
}

func (m *MemStore) TxnBegin(mode ledger.ScopeMode) (ledger.Scope, error) {
	return NewScope(m, mode), nil
}

func (m *MemStore) TxnCommit(scope ledger.Scope) error {
	s, err := CastScope(scope)
	if err != nil {
		return err
	}
	if s.Mode() == ledger.ModeSpeculative {
		s.Close()
		return xerror.ErrSpeculativeCommit
	}
	rw, err := s.Close()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := VerifyReads(rw, m.readLocked, m.proofLocked); err != nil {
		return err
	}
	for _, w := range rw.Writes {
		m.model.Put(StateBucket, w.Address[:], w.State.Serialize())
	}
	for _, p := range rw.ProofWrites {
		m.model.Put(ProofBucket, ProofKeyBytes(p), proofMark)
	}
	return nil
}

func (m *MemStore) TxnAbort(scope ledger.Scope) error {
	s, err := CastScope(scope)
	if err != nil {
		return err
	}
	_, err = s.Close()
	return err
}

func (m *MemStore) readLocked(addr register.Address) (*register.State, error) {
	e, err := m.model.Get(StateBucket, addr[:])
	if err != nil {
		return nil, nil
	}
	return register.ParseState(e.Value)
}

func (m *MemStore) proofLocked(key ledger.ProofKey) (bool, error) {
	_, err := m.model.Get(ProofBucket, ProofKeyBytes(key))
	return err == nil, nil
}

// VerifyReads checks that nothing in the read set changed since the scope
// read it. read returns nil for an absent register.
func VerifyReads(rw *RWSet, read func(register.Address) (*register.State, error),
	proof func(ledger.ProofKey) (bool, error)) error {
	for _, r := range rw.Reads {
		cur, err := read(r.Address)
		if err != nil {
			return xerror.ErrStorage.Wrap(err)
		}
		if !cur.Equal(r.State) {
			return xerror.ErrConflict.More("register %x changed", r.Address[:8])
		}
	}
	for _, key := range rw.ProofReads {
		spent, err := proof(key)
		if err != nil {
			return xerror.ErrStorage.Wrap(err)
		}
		if spent {
			return xerror.ErrConflict.More("proof %x spent", key.Txid[:8])
		}
	}
	return nil
}
