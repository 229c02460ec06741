package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. Unknown keys are errors.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Models.HMM == "" {
		errs = append(errs, errors.New("models.hmm is required"))
	}
	if cfg.Models.Lexicon == "" {
		errs = append(errs, errors.New("models.lexicon is required"))
	}
	if cfg.Models.Grammar == "" {
		errs = append(errs, errors.New("models.grammar is required"))
	}
	if !cfg.Models.GrammarType.IsValid() {
		errs = append(errs, fmt.Errorf("models.grammar_type %q is invalid; valid values: ngram, fsm", cfg.Models.GrammarType))
	}

	if err := cfg.Search.Decoder().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("search: %w", err))
	}
	if cfg.Search.ForceSilence && cfg.Vocab.Silence == "" {
		errs = append(errs, errors.New("search.force_silence requires vocab.silence"))
	}
	if cfg.Search.ForceSilence && cfg.Models.GrammarType == GrammarFSM {
		slog.Warn("search.force_silence only applies to n-gram grammars")
	}
	if cfg.Search.SilenceScore != 0 && cfg.Vocab.Silence == "" && cfg.Vocab.Pause == "" {
		slog.Warn("search.silence_score is set but no silence or pause word is configured")
	}

	if cfg.Batch.Workers < 0 {
		errs = append(errs, fmt.Errorf("batch.workers must be non-negative, got %d", cfg.Batch.Workers))
	}
	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	return errors.Join(errs...)
}
