package condition

import (
	"fmt"
	"strconv"
	"strings"

	hex "github.com/tmthrgd/go-hex"

	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

// Disassemble renders a program as space separated mnemonics. Operands
// follow their opcode in parentheses. It checks encoding only, not grammar.
func Disassemble(program []byte) (string, error) {
	r := stream.NewReader(program)
	var out []string
	for !r.EOF() {
		o := op.Opcode(r.U8())
		tok := o.String()
		switch o {
		case op.Group, op.Ungroup, op.And, op.Or,
			op.Add, op.Sub, op.Inc, op.Dec, op.Div, op.Mul, op.Exp, op.Mod, op.Cat,
			op.CallerGenesis, op.CallerTimestamp, op.CallerOperations,
			op.CallerPrestateCreated, op.CallerPrestateModified, op.CallerPrestateOwner,
			op.CallerPrestateType, op.CallerPrestateState,
			op.ContractGenesis, op.ContractTimestamp, op.ContractOperations,
			op.LedgerHeight, op.LedgerSupply, op.LedgerTimestamp,
			op.CryptoSK256, op.CryptoSK512:
		case op.Subdata:
			tok += fmt.Sprintf("(%d,%d)", r.U16(), r.U16())
		case op.Uint8:
			tok += "(" + strconv.FormatUint(uint64(r.U8()), 10) + ")"
		case op.Uint16:
			tok += "(" + strconv.FormatUint(uint64(r.U16()), 10) + ")"
		case op.Uint32:
			tok += "(" + strconv.FormatUint(uint64(r.U32()), 10) + ")"
		case op.Uint64:
			tok += "(" + strconv.FormatUint(r.U64(), 10) + ")"
		case op.Uint256:
			tok += "(0x" + hex.EncodeToString(r.Bytes(wideint.Size256)) + ")"
		case op.Uint512:
			tok += "(0x" + hex.EncodeToString(r.Bytes(wideint.Size512)) + ")"
		case op.Uint1024:
			tok += "(0x" + hex.EncodeToString(r.Bytes(wideint.Size1024)) + ")"
		case op.String:
			tok += "(" + strconv.Quote(r.VarString()) + ")"
		case op.Bytes:
			tok += "(0x" + hex.EncodeToString(r.VarBytes()) + ")"
		case op.RegisterCreated, op.RegisterModified, op.RegisterOwner, op.RegisterType, op.RegisterState:
			tok += "(" + register.Address(r.U256()).String() + ")"
		case op.RegisterValue:
			addr := register.Address(r.U256())
			tok += "(" + addr.String() + "," + strconv.Quote(r.VarString()) + ")"
		case op.CallerPrestateValue:
			tok += "(" + strconv.Quote(r.VarString()) + ")"
		default:
			if !o.IsComparison() {
				return "", malformed("unknown opcode %s at %d", o, r.Pos()-1)
			}
		}
		if r.Err() != nil {
			return "", malformed("truncated %s", o)
		}
		out = append(out, tok)
	}
	return strings.Join(out, " "), nil
}
