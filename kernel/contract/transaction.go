package contract

import (
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/crypto/hash"
	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

// MaxContracts bounds the contracts of one transaction.
const MaxContracts = 100

// Transaction is the unit of atomicity: every contract applies or none.
type Transaction struct {
	Genesis   register.Address
	Timestamp uint64
	Contracts []*Contract

	txid wideint.U512
}

func NewTransaction(genesis register.Address, timestamp uint64, contracts ...*Contract) *Transaction {
	tx := &Transaction{
		Genesis:   genesis,
		Timestamp: timestamp,
		Contracts: contracts,
	}
	tx.Bind()
	return tx
}

// Add appends contracts and rebinds the transaction.
func (tx *Transaction) Add(contracts ...*Contract) {
	tx.Contracts = append(tx.Contracts, contracts...)
	tx.Bind()
}

// Bind computes the txid and hands the caller context to every contract.
func (tx *Transaction) Bind() {
	tx.txid = tx.hash()
	ops := tx.Operations()
	for i, c := range tx.Contracts {
		c.Caller = tx.Genesis
		c.Timestamp = tx.Timestamp
		c.Txid = tx.txid
		c.Index = uint32(i)
		c.txOps = ops
	}
}

// Txid commits to the caller, the timestamp and the operation streams.
// Register streams are excluded so building does not change it.
func (tx *Transaction) Txid() wideint.U512 {
	return tx.txid
}

func (tx *Transaction) hash() wideint.U512 {
	w := stream.NewWriter()
	w.U256(tx.Genesis.U256()).U64(tx.Timestamp).CompactSize(uint64(len(tx.Contracts)))
	for _, c := range tx.Contracts {
		w.VarBytes(c.ops)
	}
	return hash.Hash512(w.Bytes())
}

// Operations concatenates the primitive streams of every contract.
func (tx *Transaction) Operations() []byte {
	var out []byte
	for _, c := range tx.Contracts {
		out = append(out, c.Primitive()...)
	}
	return out
}

// Sanitize checks what can be checked without state: contract count and
// operation encoding.
func (tx *Transaction) Sanitize() error {
	if len(tx.Contracts) == 0 {
		return xerror.ErrInvalidOperand.More("transaction without contracts")
	}
	if len(tx.Contracts) > MaxContracts {
		return xerror.ErrInvalidOperand.More("%d contracts", len(tx.Contracts))
	}
	for i, c := range tx.Contracts {
		if _, err := c.Operation(); err != nil {
			return xerror.CastError(err).More("contract %d", i)
		}
	}
	return nil
}

func (tx *Transaction) Serialize() []byte {
	w := stream.NewWriter()
	w.U256(tx.Genesis.U256()).U64(tx.Timestamp).CompactSize(uint64(len(tx.Contracts)))
	for _, c := range tx.Contracts {
		w.Raw(c.Serialize())
	}
	return w.Bytes()
}

func DecodeTransaction(raw []byte) (*Transaction, error) {
	r := stream.NewReader(raw)
	tx := &Transaction{
		Genesis:   register.Address(r.U256()),
		Timestamp: r.U64(),
	}
	n := r.CompactSize()
	if r.Err() != nil {
		return nil, xerror.ErrTruncated.More("transaction header")
	}
	if n > MaxContracts {
		return nil, xerror.ErrInvalidOperand.More("%d contracts", n)
	}
	for i := uint64(0); i < n; i++ {
		c, err := decodeContract(r)
		if err != nil {
			return nil, err
		}
		tx.Contracts = append(tx.Contracts, c)
	}
	if !r.EOF() {
		return nil, xerror.ErrTruncated.More("%d trailing bytes", r.Len())
	}
	tx.Bind()
	return tx, nil
}
