package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xregister/cmd/regctl/cmd"
)

func main() {
	rootCmd, err := NewRegctlCommand()
	if err != nil {
		log.Fatalf("init command failed.err:%v", err)
	}

	if err = rootCmd.Execute(); err != nil {
		log.Fatalf("regctl failed.err:%v", err)
	}
}

func NewRegctlCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           "regctl <command> [arguments]",
		Short:         "Regctl inspects and drives a register store.",
		Long:          "Regctl derives addresses, decodes register records and applies transactions to a register store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       "regctl state --conf ./conf/env.yaml Tg7...",
	}

	rootCmd.AddCommand(cmd.GetVersionCmd().GetCmd())
	rootCmd.AddCommand(cmd.GetAddressCmd().GetCmd())
	rootCmd.AddCommand(cmd.GetDecodeCmd().GetCmd())
	rootCmd.AddCommand(cmd.GetStateCmd().GetCmd())
	rootCmd.AddCommand(cmd.GetApplyCmd().GetCmd())
	return rootCmd, nil
}
