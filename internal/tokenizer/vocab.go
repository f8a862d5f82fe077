package tokenizer

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Record is one vocabulary entry as read from a source.
type Record struct {
	Subword string
	Rank    uint64
}

// DuplicatePolicy decides what happens when a subword appears twice.
type DuplicatePolicy int

const (
	// LastWins keeps the rank of the later record.
	LastWins DuplicatePolicy = iota
	// RejectDuplicates fails the load with ErrDuplicateEntry.
	RejectDuplicates
)

// ParseDuplicatePolicy maps a config string to a DuplicatePolicy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last-wins", "last":
		return LastWins, nil
	case "reject", "strict":
		return RejectDuplicates, nil
	default:
		return LastWins, fmt.Errorf("invalid duplicate policy %q (expected last-wins|reject)", s)
	}
}

type vocabOptions struct {
	duplicates DuplicatePolicy
}

// VocabOption configures vocabulary construction.
type VocabOption func(*vocabOptions)

// WithDuplicatePolicy sets how repeated subwords are resolved.
func WithDuplicatePolicy(p DuplicatePolicy) VocabOption {
	return func(o *vocabOptions) { o.duplicates = p }
}

// Vocabulary is an immutable mapping from subword to rank. It has no mutating
// methods and is safe for concurrent use.
type Vocabulary struct {
	ranks       map[string]uint64
	maxPieceLen int // longest entry, in runes
}

// NewVocabulary builds a Vocabulary from in-memory records.
func NewVocabulary(records []Record, opts ...VocabOption) (*Vocabulary, error) {
	b := newVocabBuilder(len(records), opts)
	for i, rec := range records {
		if err := b.add(rec); err != nil {
			return nil, &VocabError{Op: "build", Line: i + 1, Record: rec.Subword, Err: err}
		}
	}
	return b.finish("build", "")
}

// ParseVocabularyString parses newline separated "<subword>\t<rank>" records.
func ParseVocabularyString(s string, opts ...VocabOption) (*Vocabulary, error) {
	return ParseVocabulary(strings.NewReader(s), opts...)
}

// ParseVocabulary reads "<subword>\t<rank>" records from r. Blank lines are
// skipped; the first malformed record fails the whole load.
func ParseVocabulary(r io.Reader, opts ...VocabOption) (*Vocabulary, error) {
	return parseVocabulary(r, "", opts)
}

// LoadVocabularyFile reads a vocabulary from path.
func LoadVocabularyFile(path string, opts ...VocabOption) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &VocabError{Op: "load", Path: path, Err: wrapCause(ErrVocabIO, err)}
	}
	defer f.Close()

	return parseVocabulary(f, path, opts)
}

func parseVocabulary(r io.Reader, path string, opts []VocabOption) (*Vocabulary, error) {
	b := newVocabBuilder(0, opts)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Text()
		if line == 1 {
			raw = strings.TrimPrefix(raw, "\uFEFF")
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}

		rec, err := ParseRecord(raw)
		if err == nil {
			err = b.add(rec)
		}
		if err != nil {
			return nil, &VocabError{Op: "parse", Path: path, Line: line, Record: raw, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &VocabError{Op: "parse", Path: path, Line: line + 1, Err: wrapCause(ErrVocabIO, err)}
	}

	return b.finish("parse", path)
}

// ParseRecord decodes a single "<subword>\t<rank>" line.
func ParseRecord(line string) (Record, error) {
	subword, rank, ok := strings.Cut(line, "\t")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing tab separator", ErrMalformedRecord)
	}
	if strings.Contains(rank, "\t") {
		return Record{}, fmt.Errorf("%w: more than two fields", ErrMalformedRecord)
	}
	if subword == "" {
		return Record{}, fmt.Errorf("%w: empty subword", ErrMalformedRecord)
	}
	if !utf8.ValidString(subword) {
		return Record{}, fmt.Errorf("%w: subword is not valid UTF-8", ErrMalformedRecord)
	}

	n, err := strconv.ParseUint(rank, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: rank %q is not a non-negative integer", ErrMalformedRecord, rank)
	}

	return Record{Subword: subword, Rank: n}, nil
}

type vocabBuilder struct {
	opts   vocabOptions
	ranks  map[string]uint64
	maxLen int
}

func newVocabBuilder(sizeHint int, opts []VocabOption) *vocabBuilder {
	var o vocabOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &vocabBuilder{opts: o, ranks: make(map[string]uint64, sizeHint)}
}

func (b *vocabBuilder) add(rec Record) error {
	if rec.Subword == "" {
		return fmt.Errorf("%w: empty subword", ErrMalformedRecord)
	}
	if _, dup := b.ranks[rec.Subword]; dup && b.opts.duplicates == RejectDuplicates {
		return ErrDuplicateEntry
	}
	b.ranks[rec.Subword] = rec.Rank
	if n := utf8.RuneCountInString(rec.Subword); n > b.maxLen {
		b.maxLen = n
	}
	return nil
}

func (b *vocabBuilder) finish(op, path string) (*Vocabulary, error) {
	if len(b.ranks) == 0 {
		return nil, &VocabError{Op: op, Path: path, Err: ErrEmptyVocabulary}
	}
	return &Vocabulary{ranks: b.ranks, maxPieceLen: b.maxLen}, nil
}

// Lookup returns the rank of an exact subword match.
func (v *Vocabulary) Lookup(subword string) (uint64, bool) {
	rank, ok := v.ranks[subword]
	return rank, ok
}

// Contains reports whether subword is an entry.
func (v *Vocabulary) Contains(subword string) bool {
	_, ok := v.ranks[subword]
	return ok
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int { return len(v.ranks) }

// MaxPieceLen returns the rune length of the longest entry.
func (v *Vocabulary) MaxPieceLen() int { return v.maxPieceLen }

// Records returns a copy of all entries ordered by rank, then subword.
func (v *Vocabulary) Records() []Record {
	out := make([]Record, 0, len(v.ranks))
	for s, r := range v.ranks {
		out = append(out, Record{Subword: s, Rank: r})
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return strings.Compare(a.Subword, b.Subword)
	})
	return out
}
