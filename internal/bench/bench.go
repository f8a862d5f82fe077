// Package bench provides benchmarking primitives for the bpetok bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/go-bpe/internal/tokenizer"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and output size of a single tokenization run.
type RunResult struct {
	Index        int
	Cold         bool // true for the first run (cold-start)
	Duration     time.Duration
	Tokens       int
	Sentences    int
	TokensPerSec float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// ---------------------------------------------------------------------------
// Throughput helpers
// ---------------------------------------------------------------------------

// CalcThroughput returns tokens per second.
// Returns 0 if elapsed is zero to avoid division by zero.
func CalcThroughput(tokens int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(tokens) / elapsed.Seconds()
}

// MeanThroughput averages TokensPerSec over runs.
func MeanThroughput(runs []RunResult) float64 {
	if len(runs) == 0 {
		return 0
	}
	var total float64
	for _, r := range runs {
		total += r.TokensPerSec
	}
	return total / float64(len(runs))
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

type Options struct {
	Text      string
	Runs      int
	Sentences bool // run the sentence iterator instead of the flat one
}

// Run tokenizes opts.Text opts.Runs times with enc, draining the lazy
// iterators so no token slices are retained between runs.
func Run(ctx context.Context, enc *tokenizer.Encoder, opts Options) ([]RunResult, error) {
	if enc == nil {
		return nil, errors.New("encoder is required")
	}
	if opts.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", opts.Runs)
	}

	results := make([]RunResult, 0, opts.Runs)
	for i := range opts.Runs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}

		start := time.Now()
		tokens, sentences := drain(enc, opts.Text, opts.Sentences)
		dur := time.Since(start)

		results = append(results, RunResult{
			Index:        i,
			Cold:         i == 0,
			Duration:     dur,
			Tokens:       tokens,
			Sentences:    sentences,
			TokensPerSec: CalcThroughput(tokens, dur),
		})
	}

	return results, nil
}

func drain(enc *tokenizer.Encoder, text string, sentences bool) (tokens, sents int) {
	if !sentences {
		for tok := range enc.TokenizeIter(text).All() {
			if tok == tokenizer.SentenceStart {
				sents++
			}
			tokens++
		}
		return tokens, sents
	}

	for sentence := range enc.TokenizeSentencesIter(text).All() {
		sents++
		for range sentence.All() {
			tokens++
		}
	}
	return tokens, sents
}

// ---------------------------------------------------------------------------
// Throughput gate
// ---------------------------------------------------------------------------

// CheckMinThroughput returns an error if mean tokens/sec falls below minimum.
// A minimum of 0 disables the gate.
func CheckMinThroughput(mean, minimum float64) error {
	if minimum <= 0 {
		return nil
	}
	if mean < minimum {
		return fmt.Errorf("mean throughput %.0f tokens/s below minimum %.0f", mean, minimum)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %10s  %14s\n", "Run", "Cold", "MS", "Tokens", "Tokens/s")
	fmt.Fprintln(sb, strings.Repeat("-", 52))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.3f  %10d  %14.0f\n",
			r.Index+1,
			cold,
			durationMS(r.Duration),
			r.Tokens,
			r.TokensPerSec,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 52))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  %10s  %14s  (min)\n", "", "", durationMS(stats.Min), "", "")
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  %10s  %14.0f  (mean)\n", "", "", durationMS(stats.Mean), "", MeanThroughput(runs))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  %10s  %14s  (max)\n", "", "", durationMS(stats.Max), "", "")

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index        int     `json:"index"`
	Cold         bool    `json:"cold"`
	DurationMS   float64 `json:"duration_ms"`
	Tokens       int     `json:"tokens"`
	Sentences    int     `json:"sentences"`
	TokensPerSec float64 `json:"tokens_per_sec"`
}

type jsonStats struct {
	MinMS            float64 `json:"min_ms"`
	MeanMS           float64 `json:"mean_ms"`
	MaxMS            float64 `json:"max_ms"`
	MeanTokensPerSec float64 `json:"mean_tokens_per_sec"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:            durationMS(stats.Min),
			MeanMS:           durationMS(stats.Mean),
			MaxMS:            durationMS(stats.Max),
			MeanTokensPerSec: MeanThroughput(runs),
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:        r.Index,
			Cold:         r.Cold,
			DurationMS:   durationMS(r.Duration),
			Tokens:       r.Tokens,
			Sentences:    r.Sentences,
			TokensPerSec: r.TokensPerSec,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}

// Tokenization runs are often sub-millisecond, so report fractional ms.
func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
