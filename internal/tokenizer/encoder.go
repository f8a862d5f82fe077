package tokenizer

// Encoder turns text into subword tokens using a Vocabulary. It is immutable
// after New and safe for concurrent use.
type Encoder struct {
	vocab        *Vocabulary
	unknownToken string
	charFallback bool
	mergeUnknown bool
	norm         Normalization
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithUnknownToken sets the token emitted for runes no entry covers.
func WithUnknownToken(tok string) Option {
	return func(e *Encoder) { e.unknownToken = tok }
}

// WithCharFallback emits uncovered runes as themselves instead of the unknown
// token, so the pieces of a word always concatenate back to the word.
func WithCharFallback(on bool) Option {
	return func(e *Encoder) { e.charFallback = on }
}

// WithMergeUnknown collapses a run of consecutive uncovered runes into one
// fallback token.
func WithMergeUnknown(on bool) Option {
	return func(e *Encoder) { e.mergeUnknown = on }
}

// WithNormalization sets how words are folded before lookup.
func WithNormalization(n Normalization) Option {
	return func(e *Encoder) { e.norm = n }
}

// New returns an Encoder over v. v must not be nil.
func New(v *Vocabulary, opts ...Option) *Encoder {
	e := &Encoder{
		vocab:        v,
		unknownToken: UnknownToken,
		norm:         NormalizeLower,
	}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

// Vocabulary returns the vocabulary the encoder reads from.
func (e *Encoder) Vocabulary() *Vocabulary { return e.vocab }

// Normalization returns the configured word normalization.
func (e *Encoder) Normalization() Normalization { return e.norm }

// DecomposeWord normalizes word and splits it into subword tokens. It does
// not add WordBoundary; pass an already marked word to match word-initial
// entries. It never fails: uncovered runes become fallback tokens.
func (e *Encoder) DecomposeWord(word string) []string {
	fold := e.norm.newFolder()
	return e.decompose(fold(word), nil)
}

// Tokenize returns the flat token stream for text. Empty or word-less input
// yields an empty, non-nil slice.
func (e *Encoder) Tokenize(text string) []string {
	it := e.TokenizeIter(text)
	out := make([]string, 0, len(text)/3+2)
	for tok, ok := it.Next(); ok; tok, ok = it.Next() {
		out = append(out, tok)
	}
	return out
}

// TokenizeSentences returns one token slice per sentence, each starting with
// SentenceStart and ending with SentenceEnd.
func (e *Encoder) TokenizeSentences(text string) [][]string {
	it := e.TokenizeSentencesIter(text)
	out := [][]string{}
	for s, ok := it.Next(); ok; s, ok = it.Next() {
		out = append(out, s.Collect())
	}
	return out
}
