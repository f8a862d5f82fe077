package tokenizer

import (
	"errors"
	"fmt"
)

// Sentinel errors for vocabulary construction. They are always returned
// wrapped in a *VocabError, so match them with errors.Is.
var (
	// ErrEmptyVocabulary is returned when a source yields zero records.
	ErrEmptyVocabulary = errors.New("vocabulary is empty")
	// ErrMalformedRecord is returned when a line is not "<subword>\t<rank>".
	ErrMalformedRecord = errors.New("malformed vocabulary record")
	// ErrDuplicateEntry is returned under RejectDuplicates when a subword repeats.
	ErrDuplicateEntry = errors.New("duplicate vocabulary entry")
	// ErrVocabIO is returned when the underlying file or reader fails.
	ErrVocabIO = errors.New("vocabulary read failed")
	// ErrNoDefaultVocabulary is returned when a bundled vocabulary was not
	// compiled into the binary.
	ErrNoDefaultVocabulary = errors.New("default vocabulary not compiled in")
)

// VocabError describes a failed vocabulary load.
type VocabError struct {
	Op     string // "parse", "load", "build", "default"
	Path   string // file path or asset name, if any
	Line   int    // 1-based line number, 0 when not line-specific
	Record string // offending record text, if any
	Err    error  // one of the sentinel errors above, possibly wrapping a cause
}

func (e *VocabError) Error() string {
	msg := "vocab " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Record != "" {
		msg += fmt.Sprintf(" %q", e.Record)
	}
	return msg + ": " + e.Err.Error()
}

func (e *VocabError) Unwrap() error { return e.Err }

// wrapCause joins a sentinel with its underlying cause so that errors.Is
// matches both.
func wrapCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
