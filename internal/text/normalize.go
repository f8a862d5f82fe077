// Package text holds the input boundary and Unicode segmentation used by the
// tokenizer: validation of raw input, and sentence and word cursors following
// UAX #29.
package text

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when input text is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("text is not valid UTF-8")

// Normalize prepares raw input text for tokenization.
// It rejects invalid UTF-8, drops a leading byte order mark and normalizes
// line endings to \n. Empty input stays empty.
func Normalize(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}

	s = strings.TrimPrefix(s, "\uFEFF")

	// Normalize line endings: CRLF → LF, then bare CR → LF.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	return s, nil
}
