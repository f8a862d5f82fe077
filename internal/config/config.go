package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Vocab    VocabConfig  `mapstructure:"vocab"`
	Server   ServerConfig `mapstructure:"server"`
	LogLevel string       `mapstructure:"log_level"`
}

type VocabConfig struct {
	Path          string `mapstructure:"path"`
	Default       string `mapstructure:"default"`
	Dir           string `mapstructure:"dir"`
	UnknownToken  string `mapstructure:"unknown_token"`
	CharFallback  bool   `mapstructure:"char_fallback"`
	MergeUnknown  bool   `mapstructure:"merge_unknown"`
	Normalization string `mapstructure:"normalization"`
	Duplicates    string `mapstructure:"duplicates"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Workers         int           `mapstructure:"workers"`
	MaxTextBytes    int           `mapstructure:"max_text_bytes"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Vocab: VocabConfig{
			Path:          "",
			Default:       "small",
			Dir:           "vocabs",
			UnknownToken:  "<unk>",
			CharFallback:  false,
			MergeUnknown:  false,
			Normalization: "lower",
			Duplicates:    "last-wins",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			MaxTextBytes:    1 << 20,
			MaxTokens:       0,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

// flagKeys maps each config key to the flag that overrides it.
var flagKeys = map[string]string{
	"vocab.path":              "vocab",
	"vocab.default":           "default-vocab",
	"vocab.dir":               "vocab-dir",
	"vocab.unknown_token":     "unknown-token",
	"vocab.char_fallback":     "char-fallback",
	"vocab.merge_unknown":     "merge-unknown",
	"vocab.normalization":     "normalization",
	"vocab.duplicates":        "duplicates",
	"server.listen_addr":      "listen-addr",
	"server.workers":          "workers",
	"server.max_text_bytes":   "max-text-bytes",
	"server.max_tokens":       "max-tokens",
	"server.request_timeout":  "request-timeout",
	"server.shutdown_timeout": "shutdown-timeout",
	"log_level":               "log-level",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("vocab", defaults.Vocab.Path, "Path to a tab-separated vocabulary file (overrides --default-vocab)")
	fs.String("default-vocab", defaults.Vocab.Default, "Bundled vocabulary to use when --vocab is empty (small|medium|large)")
	fs.String("vocab-dir", defaults.Vocab.Dir, "Directory for downloaded vocabularies")
	fs.String("unknown-token", defaults.Vocab.UnknownToken, "Token emitted for characters no vocabulary entry covers")
	fs.Bool("char-fallback", defaults.Vocab.CharFallback, "Emit uncovered characters as themselves instead of the unknown token")
	fs.Bool("merge-unknown", defaults.Vocab.MergeUnknown, "Collapse runs of uncovered characters into one token")
	fs.String("normalization", defaults.Vocab.Normalization, "Word normalization before lookup (lower|nfkc-lower|none)")
	fs.String("duplicates", defaults.Vocab.Duplicates, "Duplicate vocabulary entry policy (last-wins|reject)")
	fs.String("listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent tokenize requests (0 = unlimited)")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Int("max-tokens", defaults.Server.MaxTokens, "Server-side cap on tokens per request (0 = unlimited)")
	fs.Duration("request-timeout", defaults.Server.RequestTimeout, "Per-request deadline")
	fs.Duration("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("BPETOK")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("bpetok")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("vocab.path", c.Vocab.Path)
	v.SetDefault("vocab.default", c.Vocab.Default)
	v.SetDefault("vocab.dir", c.Vocab.Dir)
	v.SetDefault("vocab.unknown_token", c.Vocab.UnknownToken)
	v.SetDefault("vocab.char_fallback", c.Vocab.CharFallback)
	v.SetDefault("vocab.merge_unknown", c.Vocab.MergeUnknown)
	v.SetDefault("vocab.normalization", c.Vocab.Normalization)
	v.SetDefault("vocab.duplicates", c.Vocab.Duplicates)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.max_tokens", c.Server.MaxTokens)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds every registered config flag to its nested key. Flags
// a command does not register are skipped. A flag only wins over the
// config file and environment when it was set explicitly.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}
