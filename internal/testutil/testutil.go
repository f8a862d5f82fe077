// Package testutil provides shared skip and fixture helpers for tests.
//
// Skip helpers call t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so tests stay runnable in partial builds without
// failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireDefaultVocabulary(t, tokenizer.DefaultSmall)
//	    path := testutil.WriteVocab(t, "▁hello\t1\n")
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-bpe/internal/tokenizer"
)

// RequireDefaultVocabulary skips the test unless the bundled vocabulary of
// the given size was compiled in.
func RequireDefaultVocabulary(tb testing.TB, size tokenizer.DefaultSize) {
	tb.Helper()

	for _, s := range tokenizer.AvailableDefaults() {
		if s == size {
			return
		}
	}

	tb.Skipf("default vocabulary %s not compiled in; build with -tags %s", size, size.BuildTag())
}

// RequireVocabFile skips the test if the vocabulary file named by the env var
// is unset or missing. It returns the path otherwise.
func RequireVocabFile(tb testing.TB, env string) string {
	tb.Helper()

	p := os.Getenv(env)
	if p == "" {
		tb.Skipf("%s not set; point it at a ranked vocabulary file", env)
		return ""
	}

	if _, err := os.Stat(p); err != nil {
		tb.Skipf("vocabulary file not found at %s=%q", env, p)
		return ""
	}

	return p
}

// WriteVocab writes content to a vocabulary file in a per-test temp dir and
// returns its path.
func WriteVocab(tb testing.TB, content string) string {
	tb.Helper()

	p := filepath.Join(tb.TempDir(), "vocab.txt")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		tb.Fatalf("write vocab fixture: %v", err)
	}

	return p
}

// NewEncoder parses content as a vocabulary and returns an encoder over it.
func NewEncoder(tb testing.TB, content string, opts ...tokenizer.Option) *tokenizer.Encoder {
	tb.Helper()

	v, err := tokenizer.ParseVocabularyString(content)
	if err != nil {
		tb.Fatalf("parse vocab fixture: %v", err)
	}

	return tokenizer.New(v, opts...)
}
