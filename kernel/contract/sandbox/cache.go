package sandbox

import (
	"errors"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
)

// Reader is the committed view a cache falls back to.
type Reader interface {
	ledger.StateReader
	HasProof(key ledger.ProofKey) (bool, error)
}

var proofMark = []byte{1}

// Cache layers pending register writes over a committed reader.
//
// The inputs record the first committed value seen for every key (the read
// set, i.e. the pre-states); the outputs hold the pending writes (the write
// set). Reads look at outputs, then inputs, then the reader.
type Cache struct {
	inputs  *MemModel
	outputs *MemModel
	model   Reader
}

func NewCache(model Reader) *Cache {
	return &Cache{
		inputs:  NewMemModel(),
		outputs: NewMemModel(),
		model:   model,
	}
}

// ReadState returns a private copy of the latest state of addr.
func (c *Cache) ReadState(addr register.Address) (*register.State, error) {
	// Level1: pending writes
	if e, err := c.outputs.Get(StateBucket, addr[:]); err == nil {
		return register.ParseState(e.Value)
	}

	// Level2: read set, filled from the reader on first access
	e, err := c.getAndSetInput(addr)
	if err != nil {
		return nil, err
	}
	if e.Value == nil {
		return nil, xerror.ErrRegisterNotFound.More("%x", addr[:])
	}
	return register.ParseState(e.Value)
}

func (c *Cache) getAndSetInput(addr register.Address) (*Entry, error) {
	e, err := c.inputs.Get(StateBucket, addr[:])
	if err == nil {
		return e, nil
	}

	var raw []byte
	s, err := c.model.ReadState(addr)
	switch {
	case err == nil:
		raw = s.Serialize()
	case errors.Is(err, xerror.ErrRegisterNotFound):
	default:
		return nil, err
	}
	c.inputs.Put(StateBucket, addr[:], raw)
	return c.inputs.Get(StateBucket, addr[:])
}

// WriteState stages state for addr. The checksum must be current.
func (c *Cache) WriteState(addr register.Address, state *register.State) error {
	if state == nil || !state.IsValid() {
		return xerror.ErrPostState.More("checksum not set for %x", addr[:])
	}
	// pin the pre-state in the read set before the first write
	if _, err := c.getAndSetInput(addr); err != nil {
		return err
	}
	c.outputs.Put(StateBucket, addr[:], state.Serialize())
	return nil
}

func (c *Cache) HasProof(key ledger.ProofKey) (bool, error) {
	raw := ProofKeyBytes(key)
	if _, err := c.outputs.Get(ProofBucket, raw); err == nil {
		return true, nil
	}
	if e, err := c.inputs.Get(ProofBucket, raw); err == nil {
		return e.Value != nil, nil
	}

	spent, err := c.model.HasProof(key)
	if err != nil {
		return false, err
	}
	var mark []byte
	if spent {
		mark = proofMark
	}
	c.inputs.Put(ProofBucket, raw, mark)
	return spent, nil
}

func (c *Cache) WriteProof(key ledger.ProofKey) error {
	spent, err := c.HasProof(key)
	if err != nil {
		return err
	}
	if spent {
		return xerror.ErrProofSpent.More("%x", key.Txid[:8])
	}
	c.outputs.Put(ProofBucket, ProofKeyBytes(key), proofMark)
	return nil
}

// StateRead is one read set record; State is nil for an absent register.
type StateRead struct {
	Address register.Address
	State   *register.State
}

type StateWrite struct {
	Address register.Address
	State   *register.State
}

// RWSet is the outcome of a scope, each list in key order.
type RWSet struct {
	Reads       []StateRead
	ProofReads  []ledger.ProofKey
	Writes      []StateWrite
	ProofWrites []ledger.ProofKey
}

func (c *Cache) RWSet() (*RWSet, error) {
	rw := &RWSet{}
	var err error
	c.inputs.Range(StateBucket, func(e *Entry) bool {
		r := StateRead{Address: addressOf(e.Key)}
		if e.Value != nil {
			if r.State, err = register.ParseState(e.Value); err != nil {
				return false
			}
		}
		rw.Reads = append(rw.Reads, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	c.inputs.Range(ProofBucket, func(e *Entry) bool {
		// only unspent reads can be invalidated by a concurrent writer
		if key, ok := parseProofKey(e.Key); ok && e.Value == nil {
			rw.ProofReads = append(rw.ProofReads, key)
		}
		return true
	})
	c.outputs.Range(StateBucket, func(e *Entry) bool {
		w := StateWrite{Address: addressOf(e.Key)}
		if w.State, err = register.ParseState(e.Value); err != nil {
			return false
		}
		rw.Writes = append(rw.Writes, w)
		return true
	})
	if err != nil {
		return nil, err
	}
	c.outputs.Range(ProofBucket, func(e *Entry) bool {
		if key, ok := parseProofKey(e.Key); ok {
			rw.ProofWrites = append(rw.ProofWrites, key)
		}
		return true
	})
	return rw, nil
}
