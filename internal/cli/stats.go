package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/raphaelgruber/careerpulse/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Long: `Show in-memory server statistics since the last restart: run outcomes,
generation latency and token usage, and profile store timings.

Examples:
  careerpulse stats
  careerpulse stats --server http://guidance.local:8585`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := apiClient.ServerStats(context.Background())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(stats *metrics.Snapshot) {
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", stats.UptimeSeconds)

	if len(stats.Counters) > 0 {
		fmt.Printf("\nRuns:\n")
		names := make([]string, 0, len(stats.Counters))
		for name := range stats.Counters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-16s %d\n", name, stats.Counters[name])
		}
	}

	if stats.LLMGenerate != nil {
		fmt.Printf("\nLLM Generate:\n")
		printOpStats(stats.LLMGenerate)
		printTokenStats(stats.LLMGenerate)
	}

	if stats.StreamRun != nil {
		fmt.Printf("\nStream Runs:\n")
		printOpStats(stats.StreamRun)
	}

	if stats.DBQuery != nil {
		fmt.Printf("\nDB Query:\n")
		printOpStats(stats.DBQuery)
	}

	if stats.DBCommit != nil {
		fmt.Printf("\nDB Commit:\n")
		printOpStats(stats.DBCommit)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Printf("  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgInputTokens)
	}
	fmt.Println()

	fmt.Printf("  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgOutputTokens)
	}
	fmt.Println()
}
