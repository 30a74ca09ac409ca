package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsVerbose bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store counters",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runStats())
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVarP(&statsVerbose, "verbose", "v", false, "include the per-tag tag-index breakdown")
}

func runStats() int {
	hub, err := openHub()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer hub.Close()

	st, err := hub.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println("MemoryHub Store Stats")
	fmt.Println("=====================")
	fmt.Printf("Stored:    %d\n", st.MemoriesStored)
	fmt.Printf("Recalled:  %d\n", st.MemoriesRecalled)
	fmt.Println()
	fmt.Println("Per tier:")
	fmt.Printf("  session:     %d\n", st.SessionCount)
	fmt.Printf("  core:        %d\n", st.CoreCount)
	fmt.Printf("  application: %d\n", st.ApplicationCount)
	fmt.Printf("  archive:     %d\n", st.ArchiveCount)
	fmt.Printf("  total:       %d\n", st.TotalMemories)

	if st.Performance.RecallCount > 0 {
		fmt.Println()
		fmt.Println("Recall latency:")
		fmt.Printf("  mean: %.2fms\n", st.Performance.MeanMs)
		fmt.Printf("  min:  %.2fms\n", st.Performance.MinMs)
		fmt.Printf("  max:  %.2fms\n", st.Performance.MaxMs)
		fmt.Printf("  n:    %d\n", st.Performance.RecallCount)
	}

	if statsVerbose {
		fmt.Println()
		fmt.Printf("Tag index (%s backend): %d tags, %d distinct ids\n",
			st.TagIndexBackend, st.TagIndex.TotalTags, st.TagIndex.TotalIDs)
		for _, ts := range st.TagIndex.Tags {
			fmt.Printf("  %-20s %d\n", ts.Tag, ts.Count)
		}
	}

	return 0
}
