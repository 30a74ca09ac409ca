package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	buildIndexLayer string
	buildIndexForce bool
)

// buildIndexCmd represents the build-index command (spec §4.4.3): a full
// rescan of a log tier's JSONL file, rebuilding the sidecar, tag index,
// and id index from scratch.
var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Rebuild a log tier's sidecar index from its JSONL file",
	Long: `build-index rescans app_logs.jsonl and/or archive.jsonl, rebuilding
the sidecar offset index, the in-memory tag pre-index, and the id index.

Exit 0 on full success, 1 if any targeted layer failed, 130 on interrupt.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runBuildIndex())
	},
}

func init() {
	rootCmd.AddCommand(buildIndexCmd)
	buildIndexCmd.Flags().StringVar(&buildIndexLayer, "layer", "", "application|archive (default: both)")
	buildIndexCmd.Flags().BoolVar(&buildIndexForce, "force", false, "rebuild even if the sidecar looks current")
}

func runBuildIndex() int {
	hub, err := openHub()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer hub.Close()

	layers := []string{"application", "archive"}
	if buildIndexLayer != "" {
		layers = []string{buildIndexLayer}
	}

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupted)

	allOk := true
	for _, layer := range layers {
		select {
		case <-interrupted:
			fmt.Fprintln(os.Stderr, "build-index interrupted")
			return 130
		default:
		}

		fmt.Printf("Rebuilding %s... ", layer)
		info, err := hub.LoadTier(layer, true)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			allOk = false
			continue
		}
		fmt.Printf("OK (%d records)\n", info.Count)
	}

	if !allOk {
		return 1
	}
	return 0
}
