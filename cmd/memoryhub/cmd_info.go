package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MycelicMemory/memoryhub/pkg/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print per-tier file sizes, log line counts, and sidecar freshness",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runInfo())
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo() int {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println("MemoryHub Store Info")
	fmt.Println("====================")
	fmt.Printf("Root: %s\n", cfg.Store.Path)
	fmt.Println()

	reportFile("core db", config.CoreDBPath(cfg.Store.Path), "")
	reportLogTier("application", config.ApplicationLogPath(cfg.Store.Path))
	reportLogTier("archive", config.ArchiveLogPath(cfg.Store.Path))

	return 0
}

func reportFile(label, path, sidecar string) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Printf("%s: not initialized (%s)\n", label, path)
		return
	}
	if err != nil {
		fmt.Printf("%s: error: %v\n", label, err)
		return
	}
	fmt.Printf("%s: %s (%d bytes)\n", label, path, info.Size())
}

func reportLogTier(label, path string) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Printf("%s: not initialized (%s)\n", label, path)
		return
	}
	if err != nil {
		fmt.Printf("%s: error: %v\n", label, err)
		return
	}

	idxPath := path + ".idx"
	idxInfo, idxErr := os.Stat(idxPath)

	fresh := "missing"
	if idxErr == nil {
		if idxInfo.ModTime().Before(info.ModTime()) {
			fresh = "stale (run build-index)"
		} else {
			fresh = "current"
		}
	}

	lines := 0
	if data, err := os.ReadFile(path); err == nil {
		for _, b := range data {
			if b == '\n' {
				lines++
			}
		}
	}

	fmt.Printf("%s: %s (%d bytes, %d lines), sidecar: %s\n", label, path, info.Size(), lines, fresh)
}
