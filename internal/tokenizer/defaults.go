package tokenizer

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// DefaultSize names one of the bundled BPEmb multilingual vocabularies.
type DefaultSize int

const (
	DefaultSmall  DefaultSize = iota // 100k entries
	DefaultMedium                    // 320k entries
	DefaultLarge                     // 1M entries
)

// DefaultSizes lists every bundled size in ascending order.
var DefaultSizes = []DefaultSize{DefaultSmall, DefaultMedium, DefaultLarge}

func (s DefaultSize) String() string {
	switch s {
	case DefaultSmall:
		return "small"
	case DefaultMedium:
		return "medium"
	case DefaultLarge:
		return "large"
	default:
		return fmt.Sprintf("DefaultSize(%d)", int(s))
	}
}

// BuildTag returns the build tag that embeds this vocabulary.
func (s DefaultSize) BuildTag() string { return "bpe_default_" + s.String() }

// AssetName returns the embedded file name for this vocabulary.
func (s DefaultSize) AssetName() string {
	switch s {
	case DefaultMedium:
		return "multi.wiki.bpe.vs320000.vocab.lz4"
	case DefaultLarge:
		return "multi.wiki.bpe.vs1000000.vocab.lz4"
	default:
		return "multi.wiki.bpe.vs100000.vocab.lz4"
	}
}

// ParseDefaultSize maps "small", "medium" or "large" to a DefaultSize.
func ParseDefaultSize(s string) (DefaultSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small":
		return DefaultSmall, nil
	case "medium":
		return DefaultMedium, nil
	case "large":
		return DefaultLarge, nil
	default:
		return DefaultSmall, fmt.Errorf("invalid default vocabulary %q (expected small|medium|large)", s)
	}
}

// defaultAssets is filled by init functions in the build-tagged asset files
// and never written afterwards.
var defaultAssets = map[DefaultSize][]byte{}

// Each size decodes at most once per process. The result, error included,
// is shared by every caller.
var defaultVocabs = newDefaultVocabs()

func newDefaultVocabs() map[DefaultSize]func() (*Vocabulary, error) {
	loaders := make(map[DefaultSize]func() (*Vocabulary, error), len(DefaultSizes))
	for _, size := range DefaultSizes {
		loaders[size] = sync.OnceValues(func() (*Vocabulary, error) { return loadDefault(size) })
	}
	return loaders
}

// DefaultVocabulary returns the shared bundled vocabulary of the given size.
// It fails with ErrNoDefaultVocabulary unless the binary was built with the
// matching tag (see DefaultSize.BuildTag).
func DefaultVocabulary(size DefaultSize) (*Vocabulary, error) {
	load, ok := defaultVocabs[size]
	if !ok {
		return nil, fmt.Errorf("unknown default vocabulary size %d", int(size))
	}
	return load()
}

// AvailableDefaults lists the sizes compiled into this binary.
func AvailableDefaults() []DefaultSize {
	var out []DefaultSize
	for _, s := range DefaultSizes {
		if _, ok := defaultAssets[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func loadDefault(size DefaultSize) (*Vocabulary, error) {
	data, ok := defaultAssets[size]
	if !ok {
		return nil, &VocabError{
			Op:   "default",
			Path: size.String(),
			Err:  fmt.Errorf("%w: rebuild with -tags %s", ErrNoDefaultVocabulary, size.BuildTag()),
		}
	}
	return DecodeCompressedVocabulary(data, size.AssetName())
}

// DecodeCompressedVocabulary parses an lz4 frame holding vocabulary records,
// as written by CompressVocabulary.
func DecodeCompressedVocabulary(data []byte, name string, opts ...VocabOption) (*Vocabulary, error) {
	return parseVocabulary(lz4.NewReader(bytes.NewReader(data)), name, opts)
}
