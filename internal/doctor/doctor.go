// Package doctor provides environment preflight checks for bpetok.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/example/go-bpe/internal/tokenizer"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// SmokeText is tokenized by the smoke check.
const SmokeText = "Hello world."

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Source describes the configured vocabulary, e.g. a path or "default:small".
	Source string
	// LoadEncoder builds the encoder for the configured vocabulary.
	LoadEncoder func() (*tokenizer.Encoder, error)
	// AvailableDefaults lists the bundled vocabularies compiled in.
	// Nil means tokenizer.AvailableDefaults.
	AvailableDefaults func() []tokenizer.DefaultSize
	// VocabFiles are extra ranked vocabulary files to parse, e.g. downloads.
	VocabFiles []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- configured vocabulary --------------------------------------------
	var enc *tokenizer.Encoder
	if cfg.LoadEncoder == nil {
		res.fail("vocabulary: no loader configured")
		fmt.Fprintf(w, "%s vocabulary: no loader configured\n", FailMark)
	} else {
		var err error
		enc, err = cfg.LoadEncoder()
		if err != nil {
			res.fail(fmt.Sprintf("vocabulary %s: %v", cfg.Source, err))
			fmt.Fprintf(w, "%s vocabulary %s: %v\n", FailMark, cfg.Source, err)
			if errors.Is(err, tokenizer.ErrNoDefaultVocabulary) {
				fmt.Fprintf(w, "  hint: set vocab.path or build with the matching bpe_default_* tag\n")
			}
		} else {
			v := enc.Vocabulary()
			fmt.Fprintf(w, "%s vocabulary %s: %d entries, max piece %d runes\n",
				PassMark, cfg.Source, v.Len(), v.MaxPieceLen())
		}
	}

	// ---- bundled defaults -------------------------------------------------
	available := cfg.AvailableDefaults
	if available == nil {
		available = tokenizer.AvailableDefaults
	}
	fmt.Fprintf(w, "%s bundled defaults: %s\n", PassMark, describeDefaults(available()))

	// ---- extra vocabulary files -------------------------------------------
	for _, path := range cfg.VocabFiles {
		v, err := tokenizer.LoadVocabularyFile(path)
		if err != nil {
			res.fail(fmt.Sprintf("vocabulary file %q: %v", path, err))
			fmt.Fprintf(w, "%s vocabulary file %s: %v\n", FailMark, path, err)
			continue
		}
		fmt.Fprintf(w, "%s vocabulary file: %s (%d entries)\n", PassMark, path, v.Len())
	}

	// ---- tokenization smoke test ------------------------------------------
	if enc == nil {
		fmt.Fprintf(w, "%s tokenize smoke test: skipped (no vocabulary)\n", FailMark)
		return res
	}

	toks := enc.Tokenize(SmokeText)
	if err := checkSmoke(toks); err != nil {
		res.fail(fmt.Sprintf("tokenize smoke test: %v", err))
		fmt.Fprintf(w, "%s tokenize smoke test: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s tokenize smoke test: %s\n", PassMark, strings.Join(toks, " "))
	}

	return res
}

func describeDefaults(sizes []tokenizer.DefaultSize) string {
	if len(sizes) == 0 {
		return "none (build with -tags " + tokenizer.DefaultSmall.BuildTag() + ")"
	}
	names := make([]string, len(sizes))
	for i, s := range sizes {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}

// checkSmoke requires a single bracketed sentence with at least one token
// between the markers.
func checkSmoke(toks []string) error {
	if len(toks) < 3 {
		return fmt.Errorf("expected at least 3 tokens, got %d", len(toks))
	}
	if toks[0] != tokenizer.SentenceStart {
		return fmt.Errorf("first token %q, want %q", toks[0], tokenizer.SentenceStart)
	}
	if toks[len(toks)-1] != tokenizer.SentenceEnd {
		return fmt.Errorf("last token %q, want %q", toks[len(toks)-1], tokenizer.SentenceEnd)
	}
	for _, tok := range toks[1 : len(toks)-1] {
		if tok == tokenizer.SentenceStart || tok == tokenizer.SentenceEnd {
			return fmt.Errorf("unexpected marker %q inside sentence", tok)
		}
	}
	return nil
}
