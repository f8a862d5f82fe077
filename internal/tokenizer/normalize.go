package tokenizer

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalization selects how words are folded before vocabulary lookup.
type Normalization int

const (
	// NormalizeLower lower-cases words with Unicode case mapping.
	NormalizeLower Normalization = iota
	// NormalizeNFKCLower applies NFKC compatibility composition, then lower-cases.
	NormalizeNFKCLower
	// NormalizeNone passes words through unchanged.
	NormalizeNone
)

func (n Normalization) String() string {
	switch n {
	case NormalizeLower:
		return "lower"
	case NormalizeNFKCLower:
		return "nfkc-lower"
	case NormalizeNone:
		return "none"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// ParseNormalization maps a config string to a Normalization.
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lower", "lowercase":
		return NormalizeLower, nil
	case "nfkc-lower", "nfkc":
		return NormalizeNFKCLower, nil
	case "none":
		return NormalizeNone, nil
	default:
		return NormalizeLower, fmt.Errorf("invalid normalization %q (expected lower|nfkc-lower|none)", s)
	}
}

// newFolder returns a word normalizer. A cases.Caser keeps internal state, so
// every caller gets its own and must not share it across goroutines.
func (n Normalization) newFolder() func(string) string {
	switch n {
	case NormalizeNone:
		return func(s string) string { return s }
	case NormalizeNFKCLower:
		c := cases.Lower(language.Und)
		return func(s string) string { return c.String(norm.NFKC.String(s)) }
	default:
		c := cases.Lower(language.Und)
		return c.String
	}
}
