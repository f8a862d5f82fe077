package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/go-bpe/internal/tokenizer"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their defaults.
func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Vocab.Path != "" {
		t.Errorf("Vocab.Path = %q; want empty", cfg.Vocab.Path)
	}

	if cfg.Vocab.Default != "small" {
		t.Errorf("Vocab.Default = %q; want %q", cfg.Vocab.Default, "small")
	}

	if cfg.Vocab.UnknownToken != "<unk>" {
		t.Errorf("Vocab.UnknownToken = %q; want %q", cfg.Vocab.UnknownToken, "<unk>")
	}

	if cfg.Vocab.Normalization != "lower" {
		t.Errorf("Vocab.Normalization = %q; want %q", cfg.Vocab.Normalization, "lower")
	}

	if cfg.Vocab.Duplicates != "last-wins" {
		t.Errorf("Vocab.Duplicates = %q; want %q", cfg.Vocab.Duplicates, "last-wins")
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}

	if cfg.Server.Workers != 4 {
		t.Errorf("Server.Workers = %d; want 4", cfg.Server.Workers)
	}

	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Server.RequestTimeout = %v; want 30s", cfg.Server.RequestTimeout)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"vocab", ""},
		{"default-vocab", "small"},
		{"normalization", "lower"},
		{"listen-addr", ":8080"},
		{"request-timeout", "30s"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestRegisterFlags_CoversEveryKey(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	for key, name := range flagKeys {
		if fs.Lookup(name) == nil {
			t.Errorf("key %q maps to unregistered flag --%s", key, name)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg != defaults {
		t.Errorf("Load() = %+v; want defaults %+v", cfg, defaults)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	t.Chdir(t.TempDir())

	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err := fs.Parse([]string{
		"--vocab=/tmp/v.txt",
		"--merge-unknown",
		"--workers=8",
		"--request-timeout=5s",
		"--log-level=debug",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Vocab.Path != "/tmp/v.txt" {
		t.Errorf("Vocab.Path = %q; want %q", cfg.Vocab.Path, "/tmp/v.txt")
	}

	if !cfg.Vocab.MergeUnknown {
		t.Error("Vocab.MergeUnknown = false; want true")
	}

	if cfg.Server.Workers != 8 {
		t.Errorf("Server.Workers = %d; want 8", cfg.Server.Workers)
	}

	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("Server.RequestTimeout = %v; want 5s", cfg.Server.RequestTimeout)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BPETOK_LOG_LEVEL", "warn")
	t.Setenv("BPETOK_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("BPETOK_VOCAB_NORMALIZATION", "nfkc-lower")

	cfg, err := Load(LoadOptions{
		Defaults: DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}

	if cfg.Vocab.Normalization != "nfkc-lower" {
		t.Errorf("Vocab.Normalization = %q; want %q", cfg.Vocab.Normalization, "nfkc-lower")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bpetok.yaml")

	content := `
log_level: error
vocab:
  path: /data/vocab.txt
  duplicates: reject
server:
  workers: 16
  listen_addr: ":7777"
  shutdown_timeout: 2s
`

	err := os.WriteFile(cfgFile, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Unset flags must not shadow file values.
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Vocab.Path != "/data/vocab.txt" {
		t.Errorf("Vocab.Path = %q; want %q", cfg.Vocab.Path, "/data/vocab.txt")
	}

	if cfg.Vocab.Duplicates != "reject" {
		t.Errorf("Vocab.Duplicates = %q; want %q", cfg.Vocab.Duplicates, "reject")
	}

	if cfg.Server.Workers != 16 {
		t.Errorf("Server.Workers = %d; want 16", cfg.Server.Workers)
	}

	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":7777")
	}

	if cfg.Server.ShutdownTimeout != 2*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v; want 2s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_FlagBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bpetok.yaml")

	if err := os.WriteFile(cfgFile, []byte("server:\n  workers: 16\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse([]string{"--workers=3"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: &fakeBinder{fs: fs}, ConfigFile: cfgFile, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Workers != 3 {
		t.Errorf("Server.Workers = %d; want 3", cfg.Server.Workers)
	}
}

func TestLoad_DiscoversConfigInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, "bpetok.yaml"), []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")
	// Write invalid YAML
	err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/bpetok.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

// --- VocabConfig ---

func TestVocabConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*VocabConfig)
		wantErr bool
	}{
		{"defaults", func(*VocabConfig) {}, false},
		{"bad normalization", func(c *VocabConfig) { c.Normalization = "upper" }, true},
		{"bad duplicates", func(c *VocabConfig) { c.Duplicates = "first" }, true},
		{"bad default size", func(c *VocabConfig) { c.Default = "huge" }, true},
		{"bad default ignored with path", func(c *VocabConfig) { c.Default = "huge"; c.Path = "v.txt" }, false},
		{"empty unknown token", func(c *VocabConfig) { c.UnknownToken = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig().Vocab
			tt.mutate(&c)

			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVocabConfig_Source(t *testing.T) {
	c := VocabConfig{Default: "Medium"}
	if got := c.Source(); got != "default:medium" {
		t.Errorf("Source() = %q; want %q", got, "default:medium")
	}

	c.Path = "/v.txt"
	if got := c.Source(); got != "/v.txt" {
		t.Errorf("Source() = %q; want %q", got, "/v.txt")
	}

	if got := (VocabConfig{}).Source(); got != "" {
		t.Errorf("Source() = %q; want empty", got)
	}
}

func TestVocabConfig_NewEncoderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte("▁hello\t1\n▁world\t2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := DefaultConfig().Vocab
	c.Path = path
	c.UnknownToken = "[UNK]"

	enc, err := c.NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}

	got := enc.Tokenize("Hello world")
	want := []string{"<s>", "▁hello", "▁world", "</s>"}
	if !slices.Equal(got, want) {
		t.Errorf("Tokenize = %q; want %q", got, want)
	}

	if got := enc.DecomposeWord("q"); !slices.Equal(got, []string{"[UNK]"}) {
		t.Errorf("DecomposeWord(q) = %q; want [[UNK]]", got)
	}
}

func TestVocabConfig_NewEncoderRejectDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte("a\t1\na\t2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := DefaultConfig().Vocab
	c.Path = path
	c.Duplicates = "reject"

	if _, err := c.NewEncoder(); !errors.Is(err, tokenizer.ErrDuplicateEntry) {
		t.Errorf("NewEncoder() error = %v; want ErrDuplicateEntry", err)
	}
}

func TestVocabConfig_NoSource(t *testing.T) {
	c := DefaultConfig().Vocab
	c.Default = ""

	if _, err := c.NewEncoder(); !errors.Is(err, ErrNoVocabulary) {
		t.Errorf("NewEncoder() error = %v; want ErrNoVocabulary", err)
	}
}

func TestVocabConfig_DefaultWithoutTag(t *testing.T) {
	if slices.Contains(tokenizer.AvailableDefaults(), tokenizer.DefaultSmall) {
		t.Skip("built with the small default vocabulary")
	}

	c := DefaultConfig().Vocab

	if _, err := c.NewEncoder(); !errors.Is(err, tokenizer.ErrNoDefaultVocabulary) {
		t.Errorf("NewEncoder() error = %v; want ErrNoDefaultVocabulary", err)
	}
}
