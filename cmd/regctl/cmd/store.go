package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xregister/bcs/ledger/regdb"
	"github.com/xuperchain/xregister/kernel/common/xconfig"
	"github.com/xuperchain/xregister/kernel/common/xcontext"
	"github.com/xuperchain/xregister/kernel/contract"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/logs"
	"github.com/xuperchain/xregister/lib/metrics"
	"github.com/xuperchain/xregister/lib/timer"
	"github.com/xuperchain/xregister/lib/utils"
)

// storeEnv is everything opened from the environment config.
type storeEnv struct {
	envConf *xconfig.EnvConf
	engConf *xconfig.EngineConf
	log     logs.Logger
	db      *regdb.RegDB
}

func openStore(envCfgPath string) (*storeEnv, error) {
	envConf := xconfig.GetDefEnvConf()
	envConf.RootPath = utils.GetRootPath()
	if envCfgPath != "" {
		var err error
		if envConf, err = xconfig.LoadEnvConf(envCfgPath); err != nil {
			return nil, err
		}
	}

	// 缺省配置文件时使用默认配置
	engConf := xconfig.GetDefEngineConf()
	if path := envConf.GenConfFilePath(envConf.EngineConf); utils.FileIsExist(path) {
		var err error
		if engConf, err = xconfig.LoadEngineConf(path); err != nil {
			return nil, err
		}
	}
	logConf := logs.GetDefLogConf()
	if path := envConf.GenConfFilePath(envConf.LogConf); utils.FileIsExist(path) {
		var err error
		if logConf, err = logs.LoadLogConf(path); err != nil {
			return nil, err
		}
	}
	logConf.Filepath = envConf.GenDirAbsPath(envConf.LogDir)
	driver, err := logs.OpenLog(logConf)
	if err != nil {
		return nil, err
	}
	xlog, err := logs.NewLogger(driver, "")
	if err != nil {
		return nil, err
	}

	if envConf.MetricSwitch {
		metrics.RegisterMetrics()
	}

	db, err := regdb.OpenRegDB(&regdb.RegDBCtx{
		BaseCtx: xcontext.BaseCtx{XLog: xlog, Timer: timer.NewXTimer()},
		Conf:    &engConf.Storage,
		DataDir: envConf.GenDirAbsPath(envConf.DataDir),
	})
	if err != nil {
		return nil, err
	}
	return &storeEnv{envConf: envConf, engConf: engConf, log: xlog, db: db}, nil
}

type StateCmd struct {
	BaseCmd
}

func GetStateCmd() *StateCmd {
	stateCmdIns := new(StateCmd)

	var envCfgPath string
	stateCmdIns.cmd = &cobra.Command{
		Use:           "state <address>",
		Short:         "Print the committed state of a register.",
		Example:       "regctl state --conf ./conf/env.yaml <address>",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := register.ParseAddress(args[0])
			if err != nil {
				return err
			}
			env, err := openStore(envCfgPath)
			if err != nil {
				return err
			}
			defer env.db.Close()

			s, err := env.db.ReadState(addr)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), viewState(s))
		},
	}
	stateCmdIns.cmd.Flags().StringVarP(&envCfgPath, "conf", "c", "", "environment config file path")

	return stateCmdIns
}

// staticChain pins the ledger values conditions observe.
type staticChain struct {
	height, supply, timestamp uint64
}

func (c *staticChain) Height() uint64    { return c.height }
func (c *staticChain) Supply() uint64    { return c.supply }
func (c *staticChain) Timestamp() uint64 { return c.timestamp }

type ApplyCmd struct {
	BaseCmd
}

func GetApplyCmd() *ApplyCmd {
	applyCmdIns := new(ApplyCmd)

	var (
		envCfgPath string
		dryRun     bool
		chain      staticChain
	)
	applyCmdIns.cmd = &cobra.Command{
		Use:           "apply <tx-hex>...",
		Short:         "Connect serialized transactions to the register store as one block.",
		Example:       "regctl apply --conf ./conf/env.yaml --height 10 <hex>",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs := make([]*contract.Transaction, 0, len(args))
			for i, arg := range args {
				raw, err := decodeHex(arg)
				if err != nil {
					return err
				}
				tx, err := contract.DecodeTransaction(raw)
				if err != nil {
					return fmt.Errorf("decode tx %d failed.err:%v", i, err)
				}
				txs = append(txs, tx)
			}

			env, err := openStore(envCfgPath)
			if err != nil {
				return err
			}
			defer env.db.Close()

			engine, err := contract.NewEngine(&contract.EngineCtx{
				BaseCtx:   xcontext.BaseCtx{XLog: env.log, Timer: timer.NewXTimer()},
				Conf:      env.engConf,
				Store:     env.db,
				Contracts: env.db,
				Chain:     &chain,
			})
			if err != nil {
				return err
			}

			if dryRun {
				for _, tx := range txs {
					if err := engine.Accept(tx); err != nil {
						return fmt.Errorf("tx %s rejected.err:%v", tx.Txid().Hex(), err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), tx.Txid().Hex(), "accepted")
				}
				return nil
			}
			if err := engine.ConnectBlock(context.Background(), txs); err != nil {
				return err
			}
			for _, tx := range txs {
				fmt.Fprintln(cmd.OutOrStdout(), tx.Txid().Hex(), "connected")
			}
			return nil
		},
	}
	flags := applyCmdIns.cmd.Flags()
	flags.StringVarP(&envCfgPath, "conf", "c", "", "environment config file path")
	flags.BoolVar(&dryRun, "dry-run", false, "only run each transaction speculatively")
	flags.Uint64Var(&chain.height, "height", 0, "ledger height seen by conditions")
	flags.Uint64Var(&chain.supply, "supply", 0, "ledger supply seen by conditions")
	flags.Uint64Var(&chain.timestamp, "timestamp", 0, "ledger timestamp seen by conditions")

	return applyCmdIns
}
