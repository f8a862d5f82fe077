package vocabstore

import (
	"fmt"
	"strings"

	"github.com/example/go-bpe/internal/tokenizer"
)

// DefaultBaseURL hosts the multilingual BPEmb vocabularies.
const DefaultBaseURL = "https://bpemb.h-its.org/multi/"

type Manifest struct {
	Size  tokenizer.DefaultSize `json:"size"`
	Files []VocabFile           `json:"files"`
}

type VocabFile struct {
	// Filename is the upstream name, e.g. multi.wiki.bpe.vs100000.vocab.
	Filename string `json:"filename"`
	// SHA256 pins the upstream bytes. Empty means trust on first download;
	// the observed checksum is then recorded in the lock manifest.
	SHA256 string `json:"sha256"`
}

// RankedName is the local file written after score-to-rank conversion.
func (f VocabFile) RankedName() string {
	return strings.TrimSuffix(f.Filename, ".vocab") + ".ranks.txt"
}

func PinnedManifest(size tokenizer.DefaultSize) (Manifest, error) {
	var name string
	switch size {
	case tokenizer.DefaultSmall:
		name = "multi.wiki.bpe.vs100000.vocab"
	case tokenizer.DefaultMedium:
		name = "multi.wiki.bpe.vs320000.vocab"
	case tokenizer.DefaultLarge:
		name = "multi.wiki.bpe.vs1000000.vocab"
	default:
		return Manifest{}, fmt.Errorf("no pinned manifest for vocabulary size %s", size)
	}

	return Manifest{
		Size:  size,
		Files: []VocabFile{{Filename: name}},
	}, nil
}
