// 寄存器账本约束接口定义
package ledger

import (
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/wideint"
)

type StateReader interface {
	// 读取寄存器最新状态，不存在时返回 xerror.ErrRegisterNotFound
	ReadState(addr register.Address) (*register.State, error)
}

type ScopeMode int

const (
	// 出块连接模式，成功后提交
	ModeConnect ScopeMode = iota
	// 交易池预执行模式，执行后总是回滚
	ModeSpeculative
)

func (m ScopeMode) String() string {
	if m == ModeSpeculative {
		return "speculative"
	}
	return "connect"
}

// ProofKey marks a spent claim or credit reference.
type ProofKey struct {
	Register register.Address
	Txid     wideint.U512
	Contract uint32
}

// Scope is one storage transaction. Reads observe pending writes of the same
// scope before committed state.
type Scope interface {
	StateReader
	WriteState(addr register.Address, state *register.State) error
	HasProof(key ProofKey) (bool, error)
	WriteProof(key ProofKey) error
	Mode() ScopeMode
}

type RegisterStore interface {
	StateReader
	TxnBegin(mode ScopeMode) (Scope, error)
	TxnCommit(scope Scope) error
	TxnAbort(scope Scope) error
}

// ChainReader exposes the best chain pointer, read only.
type ChainReader interface {
	Height() uint64
	Supply() uint64
	Timestamp() uint64
}
