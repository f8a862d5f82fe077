package vocabstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/go-bpe/internal/tokenizer"
)

type DownloadOptions struct {
	Size    tokenizer.DefaultSize
	OutDir  string
	BaseURL string       // defaults to DefaultBaseURL
	Client  *http.Client // defaults to a client without timeout
	Stdout  io.Writer
}

// AccessDeniedError is returned when the vocabulary host refuses the request.
type AccessDeniedError struct {
	URL    string
	Status string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s: %s", e.URL, e.Status)
}

// ChecksumMismatchError is returned when downloaded or local bytes differ
// from the pinned or locked checksum.
type ChecksumMismatchError struct {
	File     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s got %s", e.File, e.Expected, e.Actual)
}

// Download fetches the BPEmb vocabulary for opts.Size into opts.OutDir,
// converts it to a ranked vocabulary and records both in the lock manifest.
// Files whose checksum already matches are not fetched again. It returns
// the path of the ranked vocabulary.
func Download(ctx context.Context, opts DownloadOptions) (string, error) {
	if opts.OutDir == "" {
		return "", fmt.Errorf("out dir is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	manifest, err := PinnedManifest(opts.Size)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}

	lp := lockPath(opts.OutDir)
	lock := readLockManifest(lp)
	lock.Source = opts.BaseURL
	lock.Generated = time.Now().UTC().Format(time.RFC3339)

	var rankedPath string
	for _, f := range manifest.Files {
		expected := strings.ToLower(f.SHA256)
		if expected == "" {
			if lr, ok := lock.Files[f.Filename]; ok && isSHA256Hex(lr.SHA256) {
				expected = strings.ToLower(lr.SHA256)
			}
		}

		rawPath := filepath.Join(opts.OutDir, f.Filename)
		rankedPath = filepath.Join(opts.OutDir, f.RankedName())

		ok, err := existingMatches(rawPath, expected)
		if err != nil {
			return "", err
		}

		actual := expected
		if ok {
			fmt.Fprintf(opts.Stdout, "skip %s (checksum match)\n", f.Filename)
		} else {
			src, err := resolveURL(opts.BaseURL, f)
			if err != nil {
				return "", err
			}

			fmt.Fprintf(opts.Stdout, "download %s -> %s\n", src, rawPath)
			actual, err = downloadWithProgress(ctx, opts.Client, src, rawPath, expected, opts.Stdout)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(opts.Stdout, "verified %s (sha256=%s)\n", f.Filename, actual)
		}

		entries, err := convertFile(rawPath, rankedPath)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(opts.Stdout, "converted %s (%d entries) -> %s\n", f.Filename, entries, rankedPath)

		lock.Files[f.Filename] = lockRecord{SHA256: actual, Ranked: f.RankedName(), Entries: entries}
	}

	if err := writeLockManifest(lp, lock); err != nil {
		return "", err
	}
	fmt.Fprintf(opts.Stdout, "wrote lock manifest: %s\n", lp)
	return rankedPath, nil
}

// existingMatches reports whether path exists with the expected checksum.
// An empty expected checksum never matches.
func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}
	if expected == "" {
		return false, nil
	}
	actual, err := fileSHA256(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

func resolveURL(base string, f VocabFile) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	return u.JoinPath(f.Filename).String(), nil
}

// downloadWithProgress streams src into outPath and returns its sha256.
// When expected is set, a mismatching body is discarded and outPath is left
// untouched.
func downloadWithProgress(ctx context.Context, client *http.Client, src, outPath, expected string, stdout io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &AccessDeniedError{URL: src, Status: resp.Status}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download failed for %s: %s", src, resp.Status)
	}

	tmp := outPath + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	mw := io.MultiWriter(fh, h)

	var written int64
	buf := make([]byte, 64*1024)
	total := resp.ContentLength
	lastPrint := time.Now()
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			wn, writeErr := mw.Write(buf[:n])
			if writeErr != nil {
				_ = fh.Close()
				_ = os.Remove(tmp)
				return "", fmt.Errorf("write temp file: %w", writeErr)
			}
			written += int64(wn)
			if time.Since(lastPrint) > 700*time.Millisecond {
				if total > 0 {
					pct := float64(written) * 100 / float64(total)
					fmt.Fprintf(stdout, "  progress: %.1f%% (%d/%d bytes)\n", pct, written, total)
				} else {
					fmt.Fprintf(stdout, "  progress: %d bytes\n", written)
				}
				lastPrint = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = fh.Close()
			_ = os.Remove(tmp)
			return "", fmt.Errorf("download read failed: %w", readErr)
		}
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if expected != "" && actual != expected {
		_ = os.Remove(tmp)
		return "", &ChecksumMismatchError{File: filepath.Base(outPath), Expected: expected, Actual: actual}
	}

	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	return actual, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
