// Package tokenizer applies a pre-built subword vocabulary to text.
//
// Input is split into sentences, sentences into words (both following
// UAX #29), and each word is decomposed into vocabulary subwords by greedy
// longest-prefix match. Sentences are bracketed by SentenceStart and
// SentenceEnd, and every word is prefixed with WordBoundary before lookup,
// so the first piece of a word carries the glyph and continuation pieces do
// not.
//
// The vocabulary only acts as a membership oracle: no merge operations are
// replayed, and ranks never influence which piece is chosen.
package tokenizer

// Marker tokens and the word-boundary glyph.
const (
	SentenceStart = "<s>"
	SentenceEnd   = "</s>"
	UnknownToken  = "<unk>"
	WordBoundary  = "▁" // U+2581 LOWER ONE EIGHTH BLOCK
)

// Tokenizer is the eager surface shared by Encoder and test doubles.
type Tokenizer interface {
	// Tokenize returns the flat token sequence for text.
	Tokenize(text string) []string
	// TokenizeSentences returns tokens grouped per sentence.
	TokenizeSentences(text string) [][]string
}

var _ Tokenizer = (*Encoder)(nil)
