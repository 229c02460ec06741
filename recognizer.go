// Package wordlattice recognizes word sequences from feature frames with a
// Viterbi search over an HMM, a pronunciation lexicon and a word grammar,
// producing the best sentence and a word lattice.
package wordlattice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/wordlattice/acoustic"
	"github.com/ieee0824/wordlattice/config"
	"github.com/ieee0824/wordlattice/decoder"
	"github.com/ieee0824/wordlattice/feature"
	"github.com/ieee0824/wordlattice/grammar"
	"github.com/ieee0824/wordlattice/internal/observe"
	"github.com/ieee0824/wordlattice/internal/store"
	"github.com/ieee0824/wordlattice/language"
	"github.com/ieee0824/wordlattice/lexicon"
	"github.com/ieee0824/wordlattice/vocab"
)

// Recognizer is the top-level recognizer. The models it holds are
// read-only, so Decode and DecodeBatch may run concurrently.
type Recognizer struct {
	Decoder *decoder.Decoder
	Metrics *observe.Metrics
	Store   *store.LatticeStore
	Workers int

	logger   *slog.Logger
	ownStore bool
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithDecoderConfig overrides the search parameters.
func WithDecoderConfig(cfg decoder.Config) Option {
	return func(r *Recognizer) {
		r.Decoder = r.Decoder.WithConfig(cfg)
	}
}

// WithLogger sets the logger for search warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) {
		r.logger = l
	}
}

// WithMetrics records search statistics in m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recognizer) {
		r.Metrics = m
	}
}

// WithStore keeps every decoded lattice in s. The caller closes s.
func WithStore(s *store.LatticeStore) Option {
	return func(r *Recognizer) {
		r.Store = s
		r.ownStore = false
	}
}

// WithWorkers bounds the goroutines of DecodeBatch. 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Recognizer) {
		r.Workers = n
	}
}

// Models groups the models loaded from a configuration.
type Models struct {
	HMM        *acoustic.Model
	Lexicon    *lexicon.Lexicon
	Vocab      *vocab.Extended
	Grammar    *grammar.Grammar
	InGrammar  *grammar.Grammar
	OutGrammar *grammar.Grammar
}

// LoadModels reads the model files named in cfg. Loading warnings go to
// logger, or slog.Default when nil.
func LoadModels(cfg *config.Config, logger *slog.Logger) (*Models, error) {
	m := &Models{Vocab: vocab.NewExtended(nil, nil)}

	f, err := os.Open(cfg.Models.HMM)
	if err != nil {
		return nil, fmt.Errorf("open acoustic model: %w", err)
	}
	defer f.Close()
	if m.HMM, err = acoustic.Load(f); err != nil {
		return nil, fmt.Errorf("load acoustic model: %w", err)
	}

	dict, err := lexicon.LoadFile(cfg.Models.Lexicon)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	if m.Lexicon, err = lexicon.Build(dict, m.HMM, m.Vocab.In); err != nil {
		return nil, fmt.Errorf("build lexicon: %w", err)
	}

	switch cfg.Models.GrammarType {
	case config.GrammarFSM:
		m.Grammar, err = grammar.LoadFSMFile(cfg.Models.Grammar, m.Vocab)
	default:
		m.Grammar, err = loadNGram(cfg.Models.Grammar, m.Vocab, grammar.NGramOptions{
			Specials:     cfg.Vocab,
			SilenceScore: cfg.Search.SilenceScore,
			ForceSilence: cfg.Search.ForceSilence,
			Logger:       logger,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load grammar: %w", err)
	}

	secondary := grammar.NGramOptions{
		Specials: grammar.Specials{Start: cfg.Vocab.Start, End: cfg.Vocab.End, Unk: cfg.Vocab.Unk},
		Logger:   logger,
	}
	if cfg.Models.InputGrammar != "" {
		if m.InGrammar, err = loadNGram(cfg.Models.InputGrammar, m.Vocab.In, secondary); err != nil {
			return nil, fmt.Errorf("load input grammar: %w", err)
		}
	}
	if cfg.Models.OutputGrammar != "" {
		if m.OutGrammar, err = loadNGram(cfg.Models.OutputGrammar, m.Vocab.Out, secondary); err != nil {
			return nil, fmt.Errorf("load output grammar: %w", err)
		}
	}

	m.Lexicon.CheckVocab(m.Vocab, logger)
	return m, nil
}

func loadNGram(path string, symbols grammar.Symbols, opts grammar.NGramOptions) (*grammar.Grammar, error) {
	lm, err := language.LoadARPAFile(path)
	if err != nil {
		return nil, err
	}
	return grammar.FromNGram(lm, symbols, opts)
}

// NewRecognizer loads the models named in cfg. A store is opened when the
// configuration enables one; Close releases it.
func NewRecognizer(cfg *config.Config, opts ...Option) (*Recognizer, error) {
	o := &Recognizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	m, err := LoadModels(cfg, o.logger)
	if err != nil {
		return nil, err
	}
	d := &decoder.Decoder{
		HMM:        m.HMM,
		Lex:        m.Lexicon,
		Vocab:      m.Vocab,
		Grammar:    m.Grammar,
		InGrammar:  m.InGrammar,
		OutGrammar: m.OutGrammar,
		Config:     cfg.Search.Decoder(),
	}
	r, err := NewRecognizerFromModels(d, append([]Option{WithWorkers(cfg.Batch.Workers)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if r.Store == nil && cfg.Store.Enabled() {
		s, err := store.Open(store.Options{Dir: cfg.Store.Dir, InMemory: cfg.Store.InMemory, Logger: r.logger})
		if err != nil {
			return nil, err
		}
		r.Store, r.ownStore = s, true
	}
	return r, nil
}

// NewRecognizerFromModels creates a Recognizer over a prepared decoder.
func NewRecognizerFromModels(d *decoder.Decoder, opts ...Option) (*Recognizer, error) {
	r := &Recognizer{Decoder: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Decoder.Validate(); err != nil {
		return nil, fmt.Errorf("invalid models: %w", err)
	}
	return r, nil
}

// Close releases the store opened by NewRecognizer.
func (r *Recognizer) Close() error {
	if r.ownStore && r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// Utterance is the outcome of decoding one feature sequence.
type Utterance struct {
	ID      uuid.UUID
	Name    string
	Result  *decoder.Result
	Lattice *decoder.Lattice
}

// Input is one entry of a batch.
type Input struct {
	Name     string
	Features *feature.Features
}

func (r *Recognizer) newSearch() (*decoder.Search, error) {
	opts := []decoder.SearchOption{decoder.WithLogger(r.logger)}
	if r.Metrics != nil {
		opts = append(opts, decoder.WithStatsSink(r.Metrics))
	}
	return decoder.NewSearch(r.Decoder, opts...)
}

// Decode recognizes one feature sequence.
func (r *Recognizer) Decode(ctx context.Context, name string, feats *feature.Features) (*Utterance, error) {
	s, err := r.newSearch()
	if err != nil {
		return nil, err
	}
	return r.decodeWith(ctx, s, Input{Name: name, Features: feats})
}

func (r *Recognizer) decodeWith(ctx context.Context, s *decoder.Search, in Input) (*Utterance, error) {
	start := time.Now()
	lat, err := s.Decode(ctx, in.Features)
	if err != nil {
		if r.Metrics != nil && !errors.Is(err, context.Canceled) {
			r.Metrics.RecordDecode(ctx, 0, false, err)
		}
		return nil, fmt.Errorf("decode %q: %w", in.Name, err)
	}
	u := &Utterance{ID: uuid.New(), Name: in.Name, Result: r.Decoder.Result(lat), Lattice: lat}
	if r.Metrics != nil {
		r.Metrics.RecordDecode(ctx, time.Since(start).Seconds(), lat.Partial, nil)
	}
	if u.Result.Partial {
		r.logger.Info("partial result", "utterance", in.Name, "text", u.Result.Text)
	}
	if r.Store != nil {
		if _, err := r.Store.Put(ctx, &store.Record{ID: u.ID, Utterance: in.Name, Result: u.Result, Lattice: lat}); err != nil {
			return nil, fmt.Errorf("store %q: %w", in.Name, err)
		}
	}
	return u, nil
}

// DecodeBatch recognizes the inputs in parallel. Each worker runs its own
// search over the shared models. Results keep the input order; the first
// error cancels the remaining work.
func (r *Recognizer) DecodeBatch(ctx context.Context, inputs []Input) ([]*Utterance, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(inputs))

	out := make([]*Utterance, len(inputs))
	jobs := make(chan int)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(jobs)
		for i := range inputs {
			select {
			case jobs <- i:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})
	for range workers {
		eg.Go(func() error {
			s, err := r.newSearch()
			if err != nil {
				return err
			}
			for i := range jobs {
				u, err := r.decodeWith(egCtx, s, inputs[i])
				if err != nil {
					return err
				}
				out[i] = u
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
