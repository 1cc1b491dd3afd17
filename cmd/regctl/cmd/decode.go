package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xregister/kernel/contract"
	"github.com/xuperchain/xregister/kernel/contract/condition"
	"github.com/xuperchain/xregister/kernel/register"
)

type DecodeCmd struct {
	BaseCmd
}

func GetDecodeCmd() *DecodeCmd {
	decodeCmdIns := new(DecodeCmd)

	decodeCmdIns.cmd = &cobra.Command{
		Use:     "decode",
		Short:   "Decode hex encoded registers, operations and transactions.",
		Example: "regctl decode tx <hex>",
	}

	decodeCmdIns.cmd.AddCommand(hexCommand("state <hex>", "Decode a serialized register state.", decodeState))
	decodeCmdIns.cmd.AddCommand(hexCommand("ops <hex>", "Disassemble an operation stream.", decodeOps))
	decodeCmdIns.cmd.AddCommand(hexCommand("condition <hex>", "Disassemble a condition program.", decodeCondition))
	decodeCmdIns.cmd.AddCommand(hexCommand("tx <hex>", "Decode a serialized transaction.", decodeTx))
	return decodeCmdIns
}

func hexCommand(use, short string, run func(cmd *cobra.Command, raw []byte) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			return run(cmd, raw)
		},
	}
}

func decodeState(cmd *cobra.Command, raw []byte) error {
	s, err := register.ParseState(raw)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), viewState(s))
}

func decodeOps(cmd *cobra.Command, raw []byte) error {
	text, err := contract.Disassemble(raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func decodeCondition(cmd *cobra.Command, raw []byte) error {
	text, err := condition.Disassemble(raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

type contractView struct {
	Index     uint32 `json:"index"`
	Operation string `json:"operation"`
	Phase     string `json:"phase"`
}

func decodeTx(cmd *cobra.Command, raw []byte) error {
	tx, err := contract.DecodeTransaction(raw)
	if err != nil {
		return err
	}
	out := struct {
		Txid      string         `json:"txid"`
		Genesis   string         `json:"genesis"`
		Timestamp uint64         `json:"timestamp"`
		Contracts []contractView `json:"contracts"`
	}{
		Txid:      tx.Txid().Hex(),
		Genesis:   tx.Genesis.String(),
		Timestamp: tx.Timestamp,
	}
	for _, c := range tx.Contracts {
		text, err := contract.Disassemble(c.Ops())
		if err != nil {
			return err
		}
		out.Contracts = append(out.Contracts, contractView{c.Index, text, c.Phase().String()})
	}
	return printJSON(cmd.OutOrStdout(), out)
}
