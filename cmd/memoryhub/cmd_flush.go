package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush pending recall-count updates to disk",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runFlush())
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}

func runFlush() int {
	hub, err := openHub()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer hub.Close()

	if err := hub.FlushPendingUpdates(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println("Pending recall-count updates flushed.")
	return 0
}
