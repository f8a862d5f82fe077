package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/go-bpe/internal/bench"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		input         string
		runs          int
		format        string
		sentences     bool
		minThroughput float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark tokenization throughput",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("--text is required for bench")
			}
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			enc, err := loadEncoder()
			if err != nil {
				return err
			}

			results, err := bench.Run(cmd.Context(), enc, bench.Options{
				Text:      input,
				Runs:      runs,
				Sentences: sentences,
			})
			if err != nil {
				return err
			}

			durations := make([]time.Duration, len(results))
			for i, r := range results {
				durations[i] = r.Duration
			}
			stats := bench.ComputeStats(durations)

			switch format {
			case "json":
				bench.FormatJSON(results, stats, cmd.OutOrStdout())
			default:
				bench.FormatTable(results, stats, cmd.OutOrStdout())
			}

			return bench.CheckMinThroughput(bench.MeanThroughput(results), minThroughput)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to tokenize for each run (required)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of tokenization runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().BoolVar(&sentences, "sentences", false, "Drain the per-sentence iterator instead of the flat one")
	cmd.Flags().Float64Var(&minThroughput, "min-throughput", 0, "Exit non-zero if mean tokens/s falls below this value (0 = disabled)")

	return cmd
}
