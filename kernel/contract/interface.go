// 合约引擎依赖的外部协作者接口
package contract

import (
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/lib/wideint"
)

// ContractReader resolves the contracts CLAIM and CREDIT point at. A
// missing contract is xerror.ErrInvalidReference.
type ContractReader interface {
	ReadContract(txid wideint.U512, index uint32) (*Contract, error)
}

// ContractIndex records the contracts of connected transactions.
type ContractIndex interface {
	ContractReader
	// HasTransaction reports whether txid is already indexed.
	HasTransaction(txid wideint.U512) (bool, error)
	// CommitContracts commits a connect scope and indexes txs in the same
	// write. On error neither is applied.
	CommitContracts(scope ledger.Scope, txs ...*Transaction) error
}

// LegacyReader confirms legacy outputs for MIGRATE.
type LegacyReader interface {
	// ConfirmMigration checks that txid holds an unspent output of amount
	// paying keyHash.
	ConfirmMigration(txid wideint.U512, keyHash wideint.U256, amount uint64) error
}

// FeeCalculator prices a contract.
type FeeCalculator interface {
	Cost(c *Contract) (uint64, error)
}
