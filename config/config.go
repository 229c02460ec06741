// Package config loads the YAML configuration of the recognizer.
package config

import (
	"log/slog"
	"math"

	"github.com/ieee0824/wordlattice/decoder"
	"github.com/ieee0824/wordlattice/grammar"
)

// GrammarType selects how models.grammar is read.
type GrammarType string

const (
	GrammarNGram GrammarType = "ngram" // ARPA back-off n-gram
	GrammarFSM   GrammarType = "fsm"   // YAML finite-state grammar
)

// IsValid reports whether t is a known grammar type.
func (t GrammarType) IsValid() bool {
	return t == GrammarNGram || t == GrammarFSM
}

// LogLevel is the minimum level logged by the CLI.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a known level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog level. Unknown and empty levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration.
type Config struct {
	Models   Models           `yaml:"models"`
	Search   Search           `yaml:"search"`
	Vocab    grammar.Specials `yaml:"vocab"`
	Batch    Batch            `yaml:"batch"`
	Store    Store            `yaml:"store"`
	LogLevel LogLevel         `yaml:"log_level"`
}

// Models names the model files.
type Models struct {
	HMM           string      `yaml:"hmm"`
	Lexicon       string      `yaml:"lexicon"`
	Grammar       string      `yaml:"grammar"`
	GrammarType   GrammarType `yaml:"grammar_type"`
	InputGrammar  string      `yaml:"input_grammar"`  // ARPA n-gram over input words, optional
	OutputGrammar string      `yaml:"output_grammar"` // ARPA n-gram over output words, optional
}

// Search holds the search parameters. Scores are natural logs.
type Search struct {
	Beam             float64 `yaml:"beam"` // .inf disables beam pruning
	HistogramPruning int     `yaml:"histogram_pruning"`
	GSF              float64 `yaml:"gsf"`
	WIP              float64 `yaml:"wip"`
	GSFIn            float64 `yaml:"gsf_in"`
	GSFOut           float64 `yaml:"gsf_out"`
	WIPOut           float64 `yaml:"wip_out"`
	SilenceScore     float64 `yaml:"silence_score"`
	ForceSilence     bool    `yaml:"force_silence"`
	EarlyPruning     bool    `yaml:"early_pruning"`
	NBest            int     `yaml:"nbest"`
	NNode            int     `yaml:"nnode"`
}

// Decoder returns the decoder parameters of s.
func (s Search) Decoder() decoder.Config {
	return decoder.Config{
		Beam:             s.Beam,
		HistogramPruning: s.HistogramPruning,
		GSF:              s.GSF,
		WIP:              s.WIP,
		GSFIn:            s.GSFIn,
		GSFOut:           s.GSFOut,
		WIPOut:           s.WIPOut,
		EarlyPruning:     s.EarlyPruning,
		NBest:            s.NBest,
		NNode:            s.NNode,
	}
}

// Batch configures parallel decoding.
type Batch struct {
	Workers int `yaml:"workers"` // 0 uses GOMAXPROCS
}

// Store configures the lattice store. Without a directory and without
// in_memory no lattices are kept.
type Store struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// Enabled reports whether lattices should be stored.
func (s Store) Enabled() bool { return s.Dir != "" || s.InMemory }

// Default returns a configuration with every default applied and no model
// paths.
func Default() *Config {
	d := decoder.DefaultConfig()
	return &Config{
		Models: Models{GrammarType: GrammarNGram},
		Search: Search{
			Beam:             math.Inf(1),
			HistogramPruning: d.HistogramPruning,
			GSF:              d.GSF,
			WIP:              d.WIP,
			GSFIn:            d.GSFIn,
			GSFOut:           d.GSFOut,
			WIPOut:           d.WIPOut,
			EarlyPruning:     d.EarlyPruning,
			NBest:            d.NBest,
			NNode:            d.NNode,
		},
		Vocab:    grammar.DefaultSpecials(),
		LogLevel: LogInfo,
	}
}
