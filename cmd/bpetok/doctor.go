package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/go-bpe/internal/doctor"
	"github.com/example/go-bpe/internal/tokenizer"
	"github.com/example/go-bpe/internal/vocabstore"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run vocabulary and tokenizer checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			result := doctor.Run(doctor.Config{
				Source:      cfg.Vocab.Source(),
				LoadEncoder: cfg.Vocab.NewEncoder,
				VocabFiles:  collectVocabFiles(cfg.Vocab.Dir),
			}, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

// collectVocabFiles returns the ranked vocabularies already downloaded into
// dir, in pinned manifest order.
func collectVocabFiles(dir string) []string {
	if dir == "" {
		return nil
	}

	var paths []string
	for _, size := range tokenizer.DefaultSizes {
		m, err := vocabstore.PinnedManifest(size)
		if err != nil {
			continue
		}
		for _, f := range m.Files {
			p := filepath.Join(dir, f.RankedName())
			if _, err := os.Stat(p); err == nil {
				paths = append(paths, p)
			}
		}
	}

	return paths
}
