package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/example/go-bpe/internal/tokenizer"
	"github.com/example/go-bpe/internal/vocabstore"
	"github.com/spf13/cobra"
)

func newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Vocabulary acquisition, verification and inspection commands",
	}

	cmd.AddCommand(newVocabDownloadCmd())
	cmd.AddCommand(newVocabVerifyCmd())
	cmd.AddCommand(newVocabPackCmd())
	cmd.AddCommand(newVocabLookupCmd())
	return cmd
}

// sizeArg resolves --size, falling back to the configured default vocabulary.
func sizeArg(flag string) (tokenizer.DefaultSize, error) {
	if flag == "" {
		cfg, err := requireConfig()
		if err != nil {
			return 0, err
		}
		flag = cfg.Vocab.Default
	}
	return tokenizer.ParseDefaultSize(flag)
}

// dirArg resolves --dir, falling back to the configured vocab.dir.
func dirArg(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := requireConfig()
	if err != nil {
		return "", err
	}
	return cfg.Vocab.Dir, nil
}

func newVocabDownloadCmd() *cobra.Command {
	var (
		size    string
		outDir  string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a BPEmb vocabulary and convert it to ranked records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sizeArg(size)
			if err != nil {
				return err
			}
			dir, err := dirArg(outDir)
			if err != nil {
				return err
			}

			ranked, err := vocabstore.Download(cmd.Context(), vocabstore.DownloadOptions{
				Size:    s,
				OutDir:  dir,
				BaseURL: baseURL,
				Stdout:  cmd.OutOrStdout(),
			})
			if err != nil {
				var denied *vocabstore.AccessDeniedError
				if errors.As(err, &denied) {
					return fmt.Errorf("vocab download failed: %w (check --base-url)", err)
				}
				return fmt.Errorf("vocab download failed: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ready: %s (use --vocab %s)\n", ranked, ranked)
			return nil
		},
	}

	cmd.Flags().StringVar(&size, "size", "", "Vocabulary size: small|medium|large (defaults to vocab.default)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory where vocabulary files are stored (defaults to vocab.dir)")
	cmd.Flags().StringVar(&baseURL, "base-url", vocabstore.DefaultBaseURL, "Base URL hosting the BPEmb vocabularies")

	return cmd
}

func newVocabVerifyCmd() *cobra.Command {
	var (
		size string
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify downloaded vocabularies against the lock manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sizeArg(size)
			if err != nil {
				return err
			}
			d, err := dirArg(dir)
			if err != nil {
				return err
			}

			return vocabstore.Verify(vocabstore.VerifyOptions{
				Size:   s,
				Dir:    d,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().StringVar(&size, "size", "", "Vocabulary size: small|medium|large (defaults to vocab.default)")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding downloaded vocabularies (defaults to vocab.dir)")

	return cmd
}

func newVocabPackCmd() *cobra.Command {
	var (
		size string
		out  string
	)

	cmd := &cobra.Command{
		Use:   "pack <ranked-vocab>",
		Short: "Compress a ranked vocabulary into an embeddable lz4 asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst := out
			if dst == "" {
				s, err := sizeArg(size)
				if err != nil {
					return err
				}
				dst = filepath.Join("internal", "tokenizer", "assets", s.AssetName())
			}

			n, err := vocabstore.Pack(args[0], dst)
			if err != nil {
				return fmt.Errorf("vocab pack failed: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "packed %d entries -> %s\n", n, dst)
			return nil
		},
	}

	cmd.Flags().StringVar(&size, "size", "", "Bundled size the asset is named for (defaults to vocab.default)")
	cmd.Flags().StringVar(&out, "out", "", "Output path (defaults to the bundled asset path for --size)")

	return cmd
}

func newVocabLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <subword|word>...",
		Short: "Show the rank of subwords and the decomposition of words",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := loadEncoder()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			v := enc.Vocabulary()
			for _, arg := range args {
				if rank, ok := v.Lookup(arg); ok {
					_, _ = fmt.Fprintf(out, "%s\trank=%d\n", arg, rank)
				} else {
					_, _ = fmt.Fprintf(out, "%s\tnot in vocabulary\n", arg)
				}
				word := arg
				if !strings.HasPrefix(word, tokenizer.WordBoundary) {
					word = tokenizer.WordBoundary + word
					if v.Contains(word) {
						_, _ = fmt.Fprintf(out, "  word-initial entry: %s\n", word)
					}
				}
				pieces := enc.DecomposeWord(word)
				_, _ = fmt.Fprintf(out, "  pieces: %s\n", strings.Join(pieces, " "))
			}
			return nil
		},
	}

	return cmd
}
