/*
feectl - operator CLI for the fee ledger

COMMANDS:
  sweep            Recompute Active/Inactive for every student
  verify           Check both tables against the ledger invariants (exit 1 on findings)
  state <phone>    Print a student's ledger
  receipt <no>     Write a receipt PDF
  hash-password    Print the bcrypt hash for auth.password_hash
  config           Print the effective configuration as YAML

Configuration is read the same way as the server (see config/config.go).
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/fee-ledger/config"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/store/sqlite"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "feectl",
		Short:         "feectl - operator tools for the fee ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	// Add subcommands
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(receiptCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEngine loads config and wires an engine over the SQLite store. The
// CLI never records payments, so the in-process locker is enough.
func openEngine() (*config.Config, *ledger.Engine, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	engine := ledger.NewEngine(store, ledger.NewKeyedMutex())
	engine.Recorder.Prefix = cfg.Receipt.Prefix
	engine.Recorder.CountryCode = cfg.Notify.CountryCode
	return cfg, engine, func() { store.Close() }, nil
}
