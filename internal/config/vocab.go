package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/go-bpe/internal/tokenizer"
)

// ErrNoVocabulary is returned when neither a vocabulary file nor a bundled
// default is configured.
var ErrNoVocabulary = errors.New("no vocabulary configured (set --vocab or --default-vocab)")

// Validate checks the enumerated vocab settings without loading anything.
func (c VocabConfig) Validate() error {
	if _, err := tokenizer.ParseNormalization(c.Normalization); err != nil {
		return err
	}
	if _, err := tokenizer.ParseDuplicatePolicy(c.Duplicates); err != nil {
		return err
	}
	if strings.TrimSpace(c.Path) == "" && strings.TrimSpace(c.Default) != "" {
		if _, err := tokenizer.ParseDefaultSize(c.Default); err != nil {
			return err
		}
	}
	if c.UnknownToken == "" {
		return errors.New("unknown token must not be empty")
	}
	return nil
}

// Source describes where the vocabulary comes from, for logs and doctor output.
func (c VocabConfig) Source() string {
	if p := strings.TrimSpace(c.Path); p != "" {
		return p
	}
	if d := strings.TrimSpace(c.Default); d != "" {
		return "default:" + strings.ToLower(d)
	}
	return ""
}

// LoadVocabulary reads the configured file, or the bundled default when no
// file is set.
func (c VocabConfig) LoadVocabulary() (*tokenizer.Vocabulary, error) {
	policy, err := tokenizer.ParseDuplicatePolicy(c.Duplicates)
	if err != nil {
		return nil, err
	}

	if p := strings.TrimSpace(c.Path); p != "" {
		return tokenizer.LoadVocabularyFile(p, tokenizer.WithDuplicatePolicy(policy))
	}

	if strings.TrimSpace(c.Default) == "" {
		return nil, ErrNoVocabulary
	}

	size, err := tokenizer.ParseDefaultSize(c.Default)
	if err != nil {
		return nil, err
	}
	return tokenizer.DefaultVocabulary(size)
}

// EncoderOptions translates the vocab settings into encoder options.
func (c VocabConfig) EncoderOptions() ([]tokenizer.Option, error) {
	norm, err := tokenizer.ParseNormalization(c.Normalization)
	if err != nil {
		return nil, err
	}

	opts := []tokenizer.Option{
		tokenizer.WithNormalization(norm),
		tokenizer.WithCharFallback(c.CharFallback),
		tokenizer.WithMergeUnknown(c.MergeUnknown),
	}
	if c.UnknownToken != "" {
		opts = append(opts, tokenizer.WithUnknownToken(c.UnknownToken))
	}
	return opts, nil
}

// NewEncoder loads the vocabulary and builds an encoder from the settings.
func (c VocabConfig) NewEncoder() (*tokenizer.Encoder, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("vocab config: %w", err)
	}

	opts, err := c.EncoderOptions()
	if err != nil {
		return nil, err
	}

	v, err := c.LoadVocabulary()
	if err != nil {
		return nil, err
	}
	return tokenizer.New(v, opts...), nil
}
