package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	benchmarkMemories int
	benchmarkRecalls  int
)

// benchmarkCmd ingests synthetic records and times recall latency
// against the < 35ms mean target (spec §1).
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Ingest synthetic records and measure recall latency",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runBenchmark())
	},
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)
	benchmarkCmd.Flags().IntVar(&benchmarkMemories, "memories", 10000, "number of synthetic records to ingest")
	benchmarkCmd.Flags().IntVar(&benchmarkRecalls, "recalls", 200, "number of recall queries to issue")
}

const benchmarkLatencyTargetMs = 35.0

func runBenchmark() int {
	hub, err := openHub()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer hub.Close()

	fmt.Printf("Ingesting %d synthetic records...\n", benchmarkMemories)
	words := []string{"widget", "gizmo", "sprocket", "gadget", "doohickey"}
	for i := 0; i < benchmarkMemories; i++ {
		word := words[i%len(words)]
		content := fmt.Sprintf("trace event %d about %s", i, word)
		if _, err := hub.Remember(content, []string{word}, ""); err != nil {
			fmt.Fprintf(os.Stderr, "Error storing record %d: %v\n", i, err)
			return 1
		}
	}

	fmt.Printf("Issuing %d recalls...\n", benchmarkRecalls)
	var total time.Duration
	for i := 0; i < benchmarkRecalls; i++ {
		query := words[i%len(words)]
		start := time.Now()
		if _, err := hub.Recall(query, 10); err != nil {
			fmt.Fprintf(os.Stderr, "Error recalling %q: %v\n", query, err)
			return 1
		}
		total += time.Since(start)
	}

	meanMs := float64(total) / float64(time.Millisecond) / float64(benchmarkRecalls)
	fmt.Println()
	fmt.Printf("Mean recall latency: %.3fms (target < %.1fms)\n", meanMs, benchmarkLatencyTargetMs)

	if meanMs >= benchmarkLatencyTargetMs {
		fmt.Println("FAIL: latency target not met.")
		return 1
	}
	fmt.Println("PASS")
	return 0
}
