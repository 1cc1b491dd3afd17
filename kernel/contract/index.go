package contract

import (
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

// EncodeIndexed is the contract index record: caller, timestamp and the
// stored contract. Txid and index form the key.
func EncodeIndexed(c *Contract) []byte {
	w := stream.NewWriter()
	w.U256(c.Caller.U256()).U64(c.Timestamp).Raw(c.Serialize())
	return w.Bytes()
}

// DecodeIndexed restores a contract written by EncodeIndexed. The caller
// transaction's operation streams are not kept.
func DecodeIndexed(txid wideint.U512, index uint32, raw []byte) (*Contract, error) {
	r := stream.NewReader(raw)
	caller := register.Address(r.U256())
	ts := r.U64()
	if r.Err() != nil {
		return nil, xerror.ErrTruncated.More("indexed contract header")
	}
	c, err := decodeContract(r)
	if err != nil {
		return nil, err
	}
	if !r.EOF() {
		return nil, xerror.ErrTruncated.More("%d trailing bytes", r.Len())
	}
	c.Caller = caller
	c.Timestamp = ts
	c.Txid = txid
	c.Index = index
	return c, nil
}
