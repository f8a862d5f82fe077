package tokenizer

import (
	"iter"

	"github.com/example/go-bpe/internal/text"
)

type iterPhase uint8

const (
	phaseSentence iterPhase = iota // between sentences
	phaseWords                     // inside a sentence, <s> already emitted
	phaseDone
)

// TokenIter is a lazy, single-pass token stream. Sentences and words are
// segmented and decomposed only as tokens are pulled, so stopping early skips
// the rest of the input. The iterator references the input text and the
// encoder's vocabulary until it is exhausted or dropped. It is not safe for
// concurrent use and cannot be restarted.
type TokenIter struct {
	enc          *Encoder
	fold         func(string) string
	nextSentence func() (string, bool)

	phase     iterPhase
	words     *text.WordCursor
	lookahead text.Span
	hasAhead  bool

	pending []string
	pos     int
}

// TokenizeIter returns a lazy iterator over the same tokens Tokenize returns.
func (e *Encoder) TokenizeIter(s string) *TokenIter {
	sentences := text.NewSentenceCursor(s)
	return e.newTokenIter(func() (string, bool) {
		span, ok := sentences.Next()
		return span.Text, ok
	})
}

// sentenceTokenIter returns an iterator bounded to one sentence.
func (e *Encoder) sentenceTokenIter(sentence string) *TokenIter {
	used := false
	return e.newTokenIter(func() (string, bool) {
		if used {
			return "", false
		}
		used = true
		return sentence, true
	})
}

func (e *Encoder) newTokenIter(next func() (string, bool)) *TokenIter {
	return &TokenIter{
		enc:          e,
		fold:         e.norm.newFolder(),
		nextSentence: next,
	}
}

// Next returns the next token, or false once the stream is exhausted.
func (it *TokenIter) Next() (string, bool) {
	for {
		if it.pos < len(it.pending) {
			tok := it.pending[it.pos]
			it.pos++
			return tok, true
		}

		switch it.phase {
		case phaseSentence:
			sentence, ok := it.nextSentence()
			if !ok {
				it.finish()
				return "", false
			}

			it.words = text.NewWordCursor(sentence)
			first, ok := it.words.Next()
			if !ok {
				// word-less sentences produce no markers
				continue
			}
			it.lookahead, it.hasAhead = first, true
			it.phase = phaseWords
			return SentenceStart, true

		case phaseWords:
			var word text.Span
			if it.hasAhead {
				word, it.hasAhead = it.lookahead, false
			} else {
				var ok bool
				word, ok = it.words.Next()
				if !ok {
					it.phase = phaseSentence
					it.words = nil
					return SentenceEnd, true
				}
			}

			it.pending = it.enc.decompose(WordBoundary+it.fold(word.Text), it.pending[:0])
			it.pos = 0

		default:
			return "", false
		}
	}
}

func (it *TokenIter) finish() {
	it.phase = phaseDone
	it.nextSentence = nil
	it.words = nil
	it.pending = nil
	it.pos = 0
}

// All adapts the iterator to a range-over-func sequence. Breaking out of the
// loop leaves the remaining input unprocessed.
func (it *TokenIter) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for tok, ok := it.Next(); ok; tok, ok = it.Next() {
			if !yield(tok) {
				return
			}
		}
	}
}

// Collect drains the iterator into a slice.
func (it *TokenIter) Collect() []string {
	out := []string{}
	for tok, ok := it.Next(); ok; tok, ok = it.Next() {
		out = append(out, tok)
	}
	return out
}

// SentenceIter lazily yields one TokenIter per sentence that contains at
// least one word. Same lifetime and single-pass rules as TokenIter.
type SentenceIter struct {
	enc       *Encoder
	sentences *text.SentenceCursor
}

// TokenizeSentencesIter returns a lazy iterator over sentences, each of which
// is itself a lazy token iterator.
func (e *Encoder) TokenizeSentencesIter(s string) *SentenceIter {
	return &SentenceIter{enc: e, sentences: text.NewSentenceCursor(s)}
}

// Next returns the token iterator for the next sentence.
func (it *SentenceIter) Next() (*TokenIter, bool) {
	for {
		span, ok := it.sentences.Next()
		if !ok {
			return nil, false
		}
		if !text.HasWords(span.Text) {
			continue
		}
		return it.enc.sentenceTokenIter(span.Text), true
	}
}

// All adapts the iterator to a range-over-func sequence.
func (it *SentenceIter) All() iter.Seq[*TokenIter] {
	return func(yield func(*TokenIter) bool) {
		for s, ok := it.Next(); ok; s, ok = it.Next() {
			if !yield(s) {
				return
			}
		}
	}
}
