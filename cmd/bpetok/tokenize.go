package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/example/go-bpe/internal/text"
	"github.com/example/go-bpe/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newTokenizeCmd() *cobra.Command {
	var (
		sentences bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "tokenize [text...]",
		Short: "Tokenize text from arguments or stdin",
		Long: "Tokenize text into subword tokens. Each sentence is bracketed by <s> and </s>.\n" +
			"With no arguments the text is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			input, err := text.Normalize(raw)
			if err != nil {
				return err
			}

			enc, err := loadEncoder()
			if err != nil {
				return err
			}

			return writeTokens(cmd.OutOrStdout(), enc, input, sentences, asJSON)
		},
	}

	cmd.Flags().BoolVar(&sentences, "sentences", false, "Print one line (or JSON array) per sentence")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of space-separated tokens")

	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

func writeTokens(w io.Writer, enc *tokenizer.Encoder, input string, sentences, asJSON bool) error {
	bw := bufio.NewWriter(w)

	je := json.NewEncoder(bw)
	je.SetEscapeHTML(false) // keep <s> readable

	switch {
	case asJSON && sentences:
		if err := je.Encode(enc.TokenizeSentences(input)); err != nil {
			return fmt.Errorf("encode tokens: %w", err)
		}
	case asJSON:
		if err := je.Encode(enc.Tokenize(input)); err != nil {
			return fmt.Errorf("encode tokens: %w", err)
		}
	case sentences:
		for sentence := range enc.TokenizeSentencesIter(input).All() {
			writeLine(bw, sentence)
		}
	default:
		writeLine(bw, enc.TokenizeIter(input))
	}

	return bw.Flush()
}

// writeLine drains it as one space-separated line. Nothing is written for
// an empty iterator.
func writeLine(bw *bufio.Writer, it *tokenizer.TokenIter) {
	first := true
	for tok := range it.All() {
		if !first {
			_ = bw.WriteByte(' ')
		}
		_, _ = bw.WriteString(tok)
		first = false
	}
	if !first {
		_ = bw.WriteByte('\n')
	}
}
