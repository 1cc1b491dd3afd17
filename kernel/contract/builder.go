package contract

import (
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/wideint"
)

func build(o *Operation) *Contract {
	return NewContract(o.Bytes())
}

func NewWrite(addr register.Address, data []byte) *Contract {
	return build(&Operation{Code: op.Write, Address: addr, Data: data})
}

func NewAppend(addr register.Address, data []byte) *Contract {
	return build(&Operation{Code: op.Append, Address: addr, Data: data})
}

func NewCreate(addr register.Address, typ uint8, data []byte) *Contract {
	return build(&Operation{Code: op.Create, Address: addr, Type: typ, Data: data})
}

// NewTransfer hands addr to recipient. With TransferClaim the recipient
// takes ownership through a CLAIM contract.
func NewTransfer(addr, recipient register.Address, flag uint8) *Contract {
	return build(&Operation{Code: op.Transfer, Address: addr, Recipient: recipient, Flag: flag})
}

func NewClaim(txid wideint.U512, index uint32, addr register.Address) *Contract {
	return build(&Operation{Code: op.Claim, Txid: txid, Contract: index, Address: addr})
}

func NewDebit(from, to register.Address, amount, reference uint64) *Contract {
	return build(&Operation{Code: op.Debit, Address: from, Recipient: to, Amount: amount, Reference: reference})
}

func NewCredit(txid wideint.U512, index uint32, to, proof register.Address, amount uint64) *Contract {
	return build(&Operation{Code: op.Credit, Txid: txid, Contract: index, Address: to, Proof: proof, Amount: amount})
}

func NewGenesis(trust register.Address, reward uint64) *Contract {
	return build(&Operation{Code: op.Genesis, Address: trust, Reward: reward})
}

func NewTrust(last wideint.U512, score uint64, stakeChange int64, reward uint64) *Contract {
	return build(&Operation{Code: op.Trust, Last: last, Score: score, StakeChange: stakeChange, Reward: reward})
}

func NewFee(account register.Address, amount uint64) *Contract {
	return build(&Operation{Code: op.Fee, Address: account, Amount: amount})
}

func NewMigrate(txid wideint.U512, trust register.Address, keyHash wideint.U256,
	amount uint64, score uint32, last wideint.U512) *Contract {
	return build(&Operation{Code: op.Migrate, Txid: txid, Address: trust, KeyHash: keyHash,
		Amount: amount, Score: uint64(score), Last: last})
}

func NewLegacy(from register.Address, amount uint64, script []byte) *Contract {
	return build(&Operation{Code: op.Legacy, Address: from, Amount: amount, Data: script})
}
