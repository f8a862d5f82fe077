package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-bpe/internal/testutil"
	"github.com/example/go-bpe/internal/tokenizer"
)

const bpembBody = "<unk>\t0\n<s>\t0\n</s>\t0\n▁hello\t-1\n▁world\t-2\nun\t-3\n"

func newBPEmbServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".vocab") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(bpembBody))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestVocabCmd_DownloadVerifyPackLookup(t *testing.T) {
	srv := newBPEmbServer(t)
	dir := t.TempDir()

	out, err := runCLI(t, "", "vocab", "download", "--size", "small", "--out-dir", dir, "--base-url", srv.URL+"/multi/")
	if err != nil {
		t.Fatalf("vocab download: %v", err)
	}

	ranked := filepath.Join(dir, "multi.wiki.bpe.vs100000.ranks.txt")
	if !strings.Contains(out, "ready: "+ranked) {
		t.Errorf("download output missing ready line:\n%s", out)
	}

	out, err = runCLI(t, "", "vocab", "verify", "--size", "small", "--dir", dir)
	if err != nil {
		t.Fatalf("vocab verify: %v", err)
	}
	if !strings.Contains(out, "PASS multi.wiki.bpe.vs100000.vocab") {
		t.Errorf("verify output = %q", out)
	}

	packed := filepath.Join(dir, "small.lz4")
	out, err = runCLI(t, "", "vocab", "pack", ranked, "--out", packed)
	if err != nil {
		t.Fatalf("vocab pack: %v", err)
	}
	if !strings.Contains(out, "packed 6 entries") {
		t.Errorf("pack output = %q", out)
	}

	data, err := os.ReadFile(packed)
	if err != nil {
		t.Fatalf("read packed: %v", err)
	}
	if _, err := tokenizer.DecodeCompressedVocabulary(data, "small.lz4"); err != nil {
		t.Errorf("packed asset does not decode: %v", err)
	}

	out, err = runCLI(t, "", "vocab", "lookup", "--vocab", ranked, "▁world", "hello", "xyz")
	if err != nil {
		t.Fatalf("vocab lookup: %v", err)
	}

	for _, want := range []string{
		"▁world\trank=2",
		"pieces: ▁world\n",
		"hello\tnot in vocabulary",
		"pieces: ▁hello\n",
		"pieces: <unk> <unk> <unk> <unk>\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("lookup output missing %q:\n%s", want, out)
		}
	}
}

func TestVocabCmd_DownloadUsesConfiguredDir(t *testing.T) {
	srv := newBPEmbServer(t)
	dir := t.TempDir()

	if _, err := runCLI(t, "", "vocab", "download", "--vocab-dir", dir, "--base-url", srv.URL+"/multi/"); err != nil {
		t.Fatalf("vocab download: %v", err)
	}

	// --default-vocab defaults to small.
	if _, err := os.Stat(filepath.Join(dir, "multi.wiki.bpe.vs100000.ranks.txt")); err != nil {
		t.Errorf("ranked file not in configured dir: %v", err)
	}
}

func TestVocabCmd_BadSize(t *testing.T) {
	if _, err := runCLI(t, "", "vocab", "verify", "--size", "huge", "--dir", t.TempDir()); err == nil {
		t.Error("want error for unknown size")
	}
}

func TestVocabCmd_PackRequiresArg(t *testing.T) {
	if _, err := runCLI(t, "", "vocab", "pack"); err == nil {
		t.Error("want error without source argument")
	}
}

func TestVocabCmd_LookupUsesConfiguredVocabulary(t *testing.T) {
	path := testutil.WriteVocab(t, cliVocab)

	out, err := runCLI(t, "", "vocab", "lookup", "--vocab", path, "how")
	if err != nil {
		t.Fatalf("vocab lookup: %v", err)
	}

	if !strings.Contains(out, "how\tnot in vocabulary") || !strings.Contains(out, "pieces: ▁how") {
		t.Errorf("lookup output:\n%s", out)
	}
}

func TestVocabCmd_LookupReportsWordInitialEntry(t *testing.T) {
	path := testutil.WriteVocab(t, cliVocab+"lo\t6\n")

	out, err := runCLI(t, "", "vocab", "lookup", "--vocab", path, "hello", "lo", "▁are")
	if err != nil {
		t.Fatalf("vocab lookup: %v", err)
	}

	if !strings.Contains(out, "word-initial entry: ▁hello\n") {
		t.Errorf("missing word-initial entry for hello:\n%s", out)
	}
	if strings.Contains(out, "word-initial entry: ▁lo") || strings.Contains(out, "word-initial entry: ▁▁are") {
		t.Errorf("unexpected word-initial entry:\n%s", out)
	}
	if !strings.Contains(out, "lo\trank=6") {
		t.Errorf("missing rank for lo:\n%s", out)
	}
}
