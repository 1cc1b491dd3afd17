// Package condition evaluates the boolean programs attached to DEBIT and
// TRANSFER contracts.
//
// A program is a sequence of leaves "value comparison value" joined by AND/OR
// and bracketed by GROUP/UNGROUP. Operators fold left to right, grouping is
// the only precedence and both sides of AND/OR are always evaluated.
package condition

import (
	"errors"

	"github.com/gammazero/deque"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/stream"
)

const (
	MaxConditionSize = 1024
	// MaxMemory bounds the operands held by a single comparison.
	MaxMemory = 768
)

// warnings; any of them turns the result false
const (
	WarnOverflow uint32 = 1 << iota
	WarnNotFound
	WarnUnavailable
)

// Info describes one side of the evaluation.
type Info struct {
	Genesis   register.Address
	Timestamp uint64
	// Operations is the primitive stream of the contract. For the caller it
	// spans every contract of the calling transaction.
	Operations []byte
	// PreState is the first register state the contract recorded.
	PreState *register.State
}

type Env struct {
	// Contract carries the condition.
	Contract Info
	// Caller is the contract asking to satisfy it.
	Caller    Info
	Registers ledger.StateReader
	Chain     ledger.ChainReader
}

type Result struct {
	Value    bool
	Cost     uint64
	Warnings uint32
}

type frame struct {
	acc     bool
	has     bool
	pending op.Opcode
}

func (f *frame) expecting() bool { return !f.has || f.pending != 0 }

func (f *frame) complete() bool { return f.has && f.pending == 0 }

func (f *frame) push(b bool) {
	if !f.has {
		f.acc, f.has = b, true
		return
	}
	switch f.pending {
	case op.And:
		f.acc = f.acc && b
	case op.Or:
		f.acc = f.acc || b
	}
	f.pending = 0
}

type machine struct {
	r        *stream.Reader
	env      *Env
	cost     uint64
	warnings uint32
}

// Evaluate runs program against env. A malformed program is an error, never
// a false result.
func Evaluate(program []byte, env *Env) (Result, error) {
	if len(program) == 0 {
		return Result{}, malformed("empty program")
	}
	if len(program) > MaxConditionSize {
		return Result{}, malformed("program size %d", len(program))
	}
	if env == nil {
		env = &Env{}
	}

	m := &machine{r: stream.NewReader(program), env: env}
	var frames deque.Deque
	frames.PushBack(&frame{})
	for !m.r.EOF() {
		code, _ := m.r.Peek()
		top := frames.Back().(*frame)
		switch o := op.Opcode(code); o {
		case op.Group:
			m.next()
			if !top.expecting() {
				return Result{}, malformed("group without operator")
			}
			frames.PushBack(&frame{})
		case op.Ungroup:
			m.next()
			if frames.Len() == 1 {
				return Result{}, malformed("ungroup without group")
			}
			if !top.complete() {
				return Result{}, malformed("empty group or dangling operator")
			}
			frames.PopBack()
			frames.Back().(*frame).push(top.acc)
		case op.And, op.Or:
			m.next()
			if !top.complete() {
				return Result{}, malformed("dangling %s", o)
			}
			top.pending = o
		default:
			if !top.expecting() {
				return Result{}, malformed("missing operator before %s", o)
			}
			b, err := m.leaf()
			if err != nil {
				return Result{}, err
			}
			top.push(b)
		}
	}

	if frames.Len() != 1 {
		return Result{}, malformed("unbalanced group")
	}
	root := frames.Back().(*frame)
	if !root.complete() {
		return Result{}, malformed("incomplete expression")
	}
	return Result{
		Value:    root.acc && m.warnings == 0,
		Cost:     m.cost,
		Warnings: m.warnings,
	}, nil
}

func (m *machine) next() op.Opcode {
	m.cost++
	return op.Opcode(m.r.U8())
}

func (m *machine) warn(w uint32) {
	m.warnings |= w
}

func (m *machine) leaf() (bool, error) {
	lhs, err := m.value()
	if err != nil {
		return false, err
	}
	cmp := m.next()
	if m.r.Err() != nil {
		return false, malformed("truncated comparison")
	}
	if !cmp.IsComparison() {
		return false, malformed("expected comparison, got %s", cmp)
	}
	rhs, err := m.value()
	if err != nil {
		return false, err
	}
	if lhs.size()+rhs.size() > MaxMemory {
		return false, malformed("operands exceed %d bytes", MaxMemory)
	}
	m.cost += uint64(lhs.size() + rhs.size())
	return compare(cmp, lhs, rhs)
}

func malformed(format string, args ...interface{}) error {
	return xerror.ErrConditionMalformed.More(format, args...)
}

// readState resolves a register for a reference opcode. Missing registers and
// collaborators raise a warning and yield nil.
func (m *machine) readState(addr register.Address) (*register.State, error) {
	if m.env.Registers == nil {
		m.warn(WarnUnavailable)
		return nil, nil
	}
	s, err := m.env.Registers.ReadState(addr)
	if errors.Is(err, xerror.ErrRegisterNotFound) {
		m.warn(WarnNotFound)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
