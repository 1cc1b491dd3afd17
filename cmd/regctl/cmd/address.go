package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xregister/kernel/contract"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/kernel/sigchain"
)

var addrTypes = map[string]uint8{
	"readonly":  register.AddrReadonly,
	"append":    register.AddrAppend,
	"raw":       register.AddrRaw,
	"object":    register.AddrObject,
	"crypto":    register.AddrCrypto,
	"account":   register.AddrAccount,
	"token":     register.AddrToken,
	"trust":     register.AddrTrust,
	"name":      register.AddrName,
	"namespace": register.AddrNamespace,
}

func addrType(name string) (uint8, error) {
	typ, ok := addrTypes[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown address type %q", name)
	}
	return typ, nil
}

func addrTypeName(typ uint8) string {
	for name, t := range addrTypes {
		if t == typ {
			return name
		}
	}
	switch typ {
	case register.AddrLegacy, register.AddrLegacyTestnet:
		return "legacy"
	case register.AddrReserved1, register.AddrReserved2:
		return "genesis"
	case register.AddrWildcard:
		return "wildcard"
	}
	return "system"
}

type AddressCmd struct {
	BaseCmd
}

func GetAddressCmd() *AddressCmd {
	addrCmdIns := new(AddressCmd)

	addrCmdIns.cmd = &cobra.Command{
		Use:     "address",
		Short:   "Derive and decode register addresses.",
		Example: "regctl address random account",
	}

	addrCmdIns.cmd.AddCommand(getRandomAddrCmd())
	addrCmdIns.cmd.AddCommand(getNameAddrCmd())
	addrCmdIns.cmd.AddCommand(getKeyAddrCmd())
	addrCmdIns.cmd.AddCommand(getDecodeAddrCmd())
	addrCmdIns.cmd.AddCommand(getGenesisAddrCmd())
	return addrCmdIns
}

func getRandomAddrCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "random <type>",
		Short:   "Draw a random address of the given type.",
		Example: "regctl address random token",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := addrType(args[0])
			if err != nil {
				return err
			}
			addr, err := register.Random(typ)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
}

func getNameAddrCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "namespace <name>",
		Short:   "Derive the address of a namespace.",
		Example: "regctl address namespace example",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := register.FromName(args[0], register.AddrNamespace)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
}

func getKeyAddrCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "key <type> <owner> <key>",
		Short:   "Derive a trust, name or crypto address from an owner and a key.",
		Example: "regctl address key trust <genesis> trust",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := addrType(args[0])
			if err != nil {
				return err
			}
			owner, err := register.ParseAddress(args[1])
			if err != nil {
				return err
			}
			addr, err := register.FromKey(args[2], owner, typ)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
}

func getDecodeAddrCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "decode <address>",
		Short:   "Print the type and raw bytes of an address.",
		Example: "regctl address decode <address>",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := register.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Type  string `json:"type"`
				Tag   uint8  `json:"tag"`
				Hex   string `json:"hex"`
				Valid bool   `json:"valid"`
			}{addrTypeName(addr.Type()), addr.Type(), addr.U256().Hex(), addr.IsValid()})
		},
	}
}

func getGenesisAddrCmd() *cobra.Command {
	var (
		password string
		testnet  bool
	)
	genesisCmd := &cobra.Command{
		Use:     "genesis <username>",
		Short:   "Derive the genesis, crypto and trust addresses of a signature chain.",
		Example: "regctl address genesis alice --password secret",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := sigchain.New(args[0], password, testnet, sigchain.DefaultParams)
			if err != nil {
				return err
			}
			defer sc.Clear()
			genesis := sc.Genesis()
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"genesis": genesis.String(),
				"crypto":  sc.CryptoAddress().String(),
				"trust":   contract.TrustAddress(genesis).String(),
			})
		},
	}
	genesisCmd.Flags().StringVarP(&password, "password", "p", "", "signature chain password")
	genesisCmd.Flags().BoolVar(&testnet, "testnet", false, "derive a testnet genesis")
	return genesisCmd
}
