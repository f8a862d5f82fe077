package vocabstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-bpe/internal/tokenizer"
)

type VerifyOptions struct {
	Size   tokenizer.DefaultSize
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Verify checks every file of the pinned manifest in opts.Dir: the raw
// download must match the lock manifest checksum and the ranked file must
// parse with the recorded entry count.
func Verify(opts VerifyOptions) error {
	if opts.Dir == "" {
		return errors.New("vocabulary dir is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	manifest, err := PinnedManifest(opts.Size)
	if err != nil {
		return err
	}

	lp := lockPath(opts.Dir)
	if _, err := os.Stat(lp); err != nil {
		return fmt.Errorf("read lock manifest: %w", err)
	}
	lock := readLockManifest(lp)

	var failures []string
	for _, f := range manifest.Files {
		if err := verifyFile(opts.Dir, f, lock); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", f.Filename, err)
			failures = append(failures, f.Filename)
			continue
		}
		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s\n", f.Filename)
	}

	if len(failures) > 0 {
		return fmt.Errorf("verify failed for %d file(s): %s", len(failures), strings.Join(failures, ", "))
	}
	return nil
}

func verifyFile(dir string, f VocabFile, lock lockManifest) error {
	rec, ok := lock.Files[f.Filename]
	if !ok {
		return errors.New("not recorded in lock manifest")
	}

	expected := strings.ToLower(f.SHA256)
	if expected == "" {
		expected = strings.ToLower(rec.SHA256)
	}
	if !isSHA256Hex(expected) {
		return fmt.Errorf("invalid checksum %q in lock manifest", expected)
	}

	actual, err := fileSHA256(filepath.Join(dir, f.Filename))
	if err != nil {
		return err
	}
	if actual != expected {
		return &ChecksumMismatchError{File: f.Filename, Expected: expected, Actual: actual}
	}

	ranked := rec.Ranked
	if ranked == "" {
		ranked = f.RankedName()
	}
	v, err := tokenizer.LoadVocabularyFile(filepath.Join(dir, ranked))
	if err != nil {
		return err
	}
	if rec.Entries > 0 && v.Len() != rec.Entries {
		return fmt.Errorf("ranked vocabulary has %d entries, lock manifest records %d", v.Len(), rec.Entries)
	}
	return nil
}
