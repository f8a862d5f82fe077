package text

import (
	"unicode"

	"github.com/rivo/uniseg"
)

// Span is a contiguous substring of a parent string. Start and End are byte
// offsets into the parent, so parent[Start:End] == Text.
type Span struct {
	Text  string
	Start int
	End   int
}

// SentenceCursor walks the UAX #29 sentences of a string one at a time.
// The zero value is an exhausted cursor.
type SentenceCursor struct {
	rest   string
	offset int
	state  int
}

// NewSentenceCursor returns a cursor over the sentences of s. It holds a
// reference to s; no segmentation happens until Next is called.
func NewSentenceCursor(s string) *SentenceCursor {
	return &SentenceCursor{rest: s, state: -1}
}

// Next returns the next sentence, including its trailing whitespace and
// terminators. Sentences cover the input with no gaps.
func (c *SentenceCursor) Next() (Span, bool) {
	if c.rest == "" {
		return Span{}, false
	}

	sentence, rest, state := uniseg.FirstSentenceInString(c.rest, c.state)
	span := Span{Text: sentence, Start: c.offset, End: c.offset + len(sentence)}

	c.offset = span.End
	c.rest = rest
	c.state = state

	return span, true
}

// WordCursor walks the UAX #29 word segments of a string and yields only
// word-like ones: segments containing at least one letter or number.
// Whitespace and punctuation segments are skipped.
type WordCursor struct {
	rest   string
	offset int
	state  int
}

// NewWordCursor returns a cursor over the words of s.
func NewWordCursor(s string) *WordCursor {
	return &WordCursor{rest: s, state: -1}
}

// Next returns the next word-like segment.
func (c *WordCursor) Next() (Span, bool) {
	for c.rest != "" {
		word, rest, state := uniseg.FirstWordInString(c.rest, c.state)
		span := Span{Text: word, Start: c.offset, End: c.offset + len(word)}

		c.offset = span.End
		c.rest = rest
		c.state = state

		if IsWordLike(word) {
			return span, true
		}
	}

	return Span{}, false
}

// IsWordLike reports whether s contains a letter or a number.
func IsWordLike(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

// Sentences returns all sentence spans of s.
func Sentences(s string) []Span {
	var out []Span
	c := NewSentenceCursor(s)
	for span, ok := c.Next(); ok; span, ok = c.Next() {
		out = append(out, span)
	}
	return out
}

// Words returns all word-like spans of s.
func Words(s string) []Span {
	var out []Span
	c := NewWordCursor(s)
	for span, ok := c.Next(); ok; span, ok = c.Next() {
		out = append(out, span)
	}
	return out
}

// HasWords reports whether s contains at least one word-like segment.
func HasWords(s string) bool {
	_, ok := NewWordCursor(s).Next()
	return ok
}
