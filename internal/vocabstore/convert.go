package vocabstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/example/go-bpe/internal/tokenizer"
)

// ErrPositiveScore is returned for BPEmb lines whose score is above zero.
// BPEmb scores are non-positive, higher meaning more frequent.
var ErrPositiveScore = errors.New("bpemb score must not be positive")

// ConvertBPEmb reads a BPEmb "<piece>\t<score>" file and writes the same
// pieces as "<piece>\t<rank>" records with rank = -score, ordered by rank.
// It returns the number of records written.
func ConvertBPEmb(r io.Reader, w io.Writer) (int, error) {
	var records []tokenizer.Record

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		piece, scoreText, ok := strings.Cut(raw, "\t")
		if !ok {
			return 0, fmt.Errorf("line %d: %w: missing tab separator", line, tokenizer.ErrMalformedRecord)
		}

		score, err := strconv.ParseInt(strings.TrimSpace(scoreText), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w: score %q", line, tokenizer.ErrMalformedRecord, scoreText)
		}
		if score > 0 {
			return 0, fmt.Errorf("line %d: %w: %d", line, ErrPositiveScore, score)
		}

		records = append(records, tokenizer.Record{Subword: piece, Rank: uint64(-score)})
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read bpemb vocabulary: %w", err)
	}

	v, err := tokenizer.NewVocabulary(records)
	if err != nil {
		return 0, err
	}

	if err := tokenizer.WriteRecords(w, v.Records()); err != nil {
		return 0, err
	}
	return v.Len(), nil
}

// convertFile runs ConvertBPEmb from src into dst, replacing dst atomically.
func convertFile(src, dst string) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open bpemb vocabulary: %w", err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create ranked vocabulary: %w", err)
	}

	n, err := ConvertBPEmb(in, out)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close ranked vocabulary: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("convert %s: %w", src, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("move ranked vocabulary into place: %w", err)
	}
	return n, nil
}
