package vocabstore

import (
	"fmt"
	"os"

	"github.com/example/go-bpe/internal/tokenizer"
)

// Pack parses the ranked vocabulary at src and writes it to dst as an lz4
// frame suitable for embedding as a bundled default. It returns the number
// of entries packed.
func Pack(src, dst string, opts ...tokenizer.VocabOption) (int, error) {
	v, err := tokenizer.LoadVocabularyFile(src, opts...)
	if err != nil {
		return 0, err
	}

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create packed vocabulary: %w", err)
	}

	err = tokenizer.CompressVocabulary(out, v)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close packed vocabulary: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("move packed vocabulary into place: %w", err)
	}
	return v.Len(), nil
}
