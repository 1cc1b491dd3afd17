// Package op enumerates the closed set of contract and condition opcodes.
package op

import "fmt"

type Opcode uint8

// primitives
const (
	Write    Opcode = 0x01
	Append   Opcode = 0x02
	Create   Opcode = 0x03
	Transfer Opcode = 0x04
	Claim    Opcode = 0x05
	Coinbase Opcode = 0x06
	Trust    Opcode = 0x07
	Genesis  Opcode = 0x08
	Debit    Opcode = 0x09
	Credit   Opcode = 0x0a
	Migrate  Opcode = 0x0b
	Fee      Opcode = 0x0c
	Legacy   Opcode = 0x0d

	// Condition separates the primitive from its condition program.
	Condition Opcode = 0x0e
)

// condition structure
const (
	Group   Opcode = 0x10
	Ungroup Opcode = 0x11
	And     Opcode = 0x12
	Or      Opcode = 0x13
)

// comparisons
const (
	Equals        Opcode = 0x20
	LessThan      Opcode = 0x21
	GreaterThan   Opcode = 0x22
	LessEquals    Opcode = 0x23
	GreaterEquals Opcode = 0x24
	NotEquals     Opcode = 0x25
	Contains      Opcode = 0x26
)

// value modifiers
const (
	Add     Opcode = 0x30
	Sub     Opcode = 0x31
	Inc     Opcode = 0x32
	Dec     Opcode = 0x33
	Div     Opcode = 0x34
	Mul     Opcode = 0x35
	Exp     Opcode = 0x36
	Mod     Opcode = 0x37
	Subdata Opcode = 0x38
	Cat     Opcode = 0x39
)

// literals
const (
	Uint8    Opcode = 0x40
	Uint16   Opcode = 0x41
	Uint32   Opcode = 0x42
	Uint64   Opcode = 0x43
	Uint256  Opcode = 0x44
	Uint512  Opcode = 0x45
	Uint1024 Opcode = 0x46
	String   Opcode = 0x47
	Bytes    Opcode = 0x48
)

// register references, each followed by an address
const (
	RegisterCreated  Opcode = 0x50
	RegisterModified Opcode = 0x51
	RegisterOwner    Opcode = 0x52
	RegisterType     Opcode = 0x53
	RegisterState    Opcode = 0x54
	RegisterValue    Opcode = 0x55
)

// caller references
const (
	CallerGenesis          Opcode = 0x60
	CallerTimestamp        Opcode = 0x61
	CallerOperations       Opcode = 0x62
	CallerPrestateCreated  Opcode = 0x63
	CallerPrestateModified Opcode = 0x64
	CallerPrestateOwner    Opcode = 0x65
	CallerPrestateType     Opcode = 0x66
	CallerPrestateState    Opcode = 0x67
	CallerPrestateValue    Opcode = 0x68
)

// contract references
const (
	ContractGenesis    Opcode = 0x70
	ContractTimestamp  Opcode = 0x71
	ContractOperations Opcode = 0x72
)

// chain references
const (
	LedgerHeight    Opcode = 0x80
	LedgerSupply    Opcode = 0x81
	LedgerTimestamp Opcode = 0x82
)

// digests of the following value
const (
	CryptoSK256 Opcode = 0x90
	CryptoSK512 Opcode = 0x91
)

// transfer flags
const (
	TransferClaim uint8 = 0x00
	TransferForce uint8 = 0x01
)

// register stream markers
const (
	Prestate  uint8 = 0x01
	Poststate uint8 = 0x02
)

var names = map[Opcode]string{
	Write: "WRITE", Append: "APPEND", Create: "CREATE", Transfer: "TRANSFER", Claim: "CLAIM",
	Coinbase: "COINBASE", Trust: "TRUST", Genesis: "GENESIS", Debit: "DEBIT", Credit: "CREDIT",
	Migrate: "MIGRATE", Fee: "FEE", Legacy: "LEGACY", Condition: "CONDITION",

	Group: "GROUP", Ungroup: "UNGROUP", And: "AND", Or: "OR",

	Equals: "EQUALS", LessThan: "LESSTHAN", GreaterThan: "GREATERTHAN", LessEquals: "LESSEQUALS",
	GreaterEquals: "GREATEREQUALS", NotEquals: "NOTEQUALS", Contains: "CONTAINS",

	Add: "ADD", Sub: "SUB", Inc: "INC", Dec: "DEC", Div: "DIV", Mul: "MUL", Exp: "EXP",
	Mod: "MOD", Subdata: "SUBDATA", Cat: "CAT",

	Uint8: "UINT8", Uint16: "UINT16", Uint32: "UINT32", Uint64: "UINT64", Uint256: "UINT256",
	Uint512: "UINT512", Uint1024: "UINT1024", String: "STRING", Bytes: "BYTES",

	RegisterCreated: "REGISTER::CREATED", RegisterModified: "REGISTER::MODIFIED",
	RegisterOwner: "REGISTER::OWNER", RegisterType: "REGISTER::TYPE",
	RegisterState: "REGISTER::STATE", RegisterValue: "REGISTER::VALUE",

	CallerGenesis: "CALLER::GENESIS", CallerTimestamp: "CALLER::TIMESTAMP",
	CallerOperations: "CALLER::OPERATIONS",
	CallerPrestateCreated: "CALLER::PRESTATE::CREATED",
	CallerPrestateModified: "CALLER::PRESTATE::MODIFIED",
	CallerPrestateOwner: "CALLER::PRESTATE::OWNER",
	CallerPrestateType: "CALLER::PRESTATE::TYPE",
	CallerPrestateState: "CALLER::PRESTATE::STATE",
	CallerPrestateValue: "CALLER::PRESTATE::VALUE",

	ContractGenesis: "CONTRACT::GENESIS", ContractTimestamp: "CONTRACT::TIMESTAMP",
	ContractOperations: "CONTRACT::OPERATIONS",

	LedgerHeight: "LEDGER::HEIGHT", LedgerSupply: "LEDGER::SUPPLY",
	LedgerTimestamp: "LEDGER::TIMESTAMP",

	CryptoSK256: "CRYPTO::SK256", CryptoSK512: "CRYPTO::SK512",
}

func (o Opcode) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%#02x)", uint8(o))
}

func (o Opcode) Known() bool {
	_, ok := names[o]
	return ok
}

// IsPrimitive reports whether o may lead a contract.
func (o Opcode) IsPrimitive() bool {
	return o >= Write && o <= Legacy
}

// Conditional reports whether a primitive may carry a condition program.
func (o Opcode) Conditional() bool {
	return o == Debit || o == Transfer
}

func (o Opcode) IsComparison() bool {
	return o >= Equals && o <= Contains
}

func (o Opcode) IsModifier() bool {
	return o >= Add && o <= Cat
}
