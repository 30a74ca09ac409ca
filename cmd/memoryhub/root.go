package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MycelicMemory/memoryhub/internal/memoryhub"
	"github.com/MycelicMemory/memoryhub/pkg/config"
)

// Version is set during build.
var Version = "0.1.0"

var quiet bool
var cfgPath string

// rootCmd is the maintenance CLI's entry point. It is orthogonal to the
// library API: memoryhub is embedded directly by Go programs; this
// binary exists to build indexes, flush pending updates, and report
// store health from outside a running process.
var rootCmd = &cobra.Command{
	Use:   "memoryhub",
	Short: "Maintenance CLI for a MemoryHub store",
	Long: `memoryhub operates on a MemoryHub store from outside a running process.

Examples:
  memoryhub build-index --layer application
  memoryhub stats --verbose
  memoryhub flush
  memoryhub info
  memoryhub benchmark --memories 10000 --recalls 200`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "store root holding config.yaml (defaults to ~/.memoryhub)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "accepted; no subcommand changes its output for it")
}

// openHub loads configuration and opens the store every subcommand
// operates on.
func openHub() (*memoryhub.Hub, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	hub, err := memoryhub.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.Store.Path, err)
	}
	return hub, nil
}
