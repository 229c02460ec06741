package decoder

import (
	"errors"
	"fmt"

	"github.com/ieee0824/wordlattice/acoustic"
	"github.com/ieee0824/wordlattice/grammar"
	"github.com/ieee0824/wordlattice/lexicon"
	"github.com/ieee0824/wordlattice/vocab"
)

// Decoder bundles the read-only models of a search with its parameters.
// Models are borrowed: several decoders and searches may share them.
type Decoder struct {
	HMM        *acoustic.Model
	Lex        *lexicon.Lexicon
	Vocab      *vocab.Extended
	Grammar    *grammar.Grammar
	InGrammar  *grammar.Grammar   // over Vocab.In, optional
	OutGrammar *grammar.Grammar   // over Vocab.Out, optional
	Categories []*grammar.Grammar // indexed by category id
	Config     Config
}

// New creates a decoder over the main models and validates it.
func New(hmm *acoustic.Model, lex *lexicon.Lexicon, ext *vocab.Extended, g *grammar.Grammar, cfg Config) (*Decoder, error) {
	d := &Decoder{HMM: hmm, Lex: lex, Vocab: ext, Grammar: g, Config: cfg}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// WithGrammar returns a view of d searching g instead of the main grammar.
// The other models are shared.
func (d *Decoder) WithGrammar(g *grammar.Grammar) *Decoder {
	v := *d
	v.Grammar = g
	return &v
}

// WithConfig returns a view of d with different search parameters.
func (d *Decoder) WithConfig(cfg Config) *Decoder {
	v := *d
	v.Config = cfg
	return &v
}

// Validate checks that the models fit together.
func (d *Decoder) Validate() error {
	switch {
	case d.HMM == nil:
		return errors.New("decoder: no acoustic model")
	case d.Lex == nil:
		return errors.New("decoder: no lexicon")
	case d.Vocab == nil:
		return errors.New("decoder: no vocabulary")
	case d.Grammar == nil:
		return errors.New("decoder: no grammar")
	}
	if d.Lex.Vocab != d.Vocab.In {
		return errors.New("decoder: lexicon and grammar use different input vocabularies")
	}
	var errs []error
	if err := d.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !d.Grammar.Completed() {
		errs = append(errs, errors.New("decoder: grammar is not complete"))
	}
	secondary := []struct {
		name string
		g    *grammar.Grammar
	}{{"input", d.InGrammar}, {"output", d.OutGrammar}}
	for _, sg := range secondary {
		name, g := sg.name, sg.g
		if g == nil {
			continue
		}
		if !g.Completed() {
			errs = append(errs, fmt.Errorf("decoder: %s grammar is not complete", name))
		}
		if len(g.Initial) != 1 {
			errs = append(errs, fmt.Errorf("decoder: %s grammar needs exactly one initial state, has %d", name, len(g.Initial)))
		}
	}
	for i, g := range d.Categories {
		if g == nil || !g.Completed() {
			errs = append(errs, fmt.Errorf("decoder: category %d grammar is missing or not complete", i))
		}
	}
	for id := 0; id < d.Vocab.In.Len(); id++ {
		if c := d.Vocab.In.Category(id); c != vocab.NoCategory && c >= len(d.Categories) {
			errs = append(errs, fmt.Errorf("decoder: word %q belongs to unknown category %d", d.Vocab.In.Name(id), c))
		}
	}
	return errors.Join(errs...)
}

func (d *Decoder) category(c int) *grammar.Grammar { return d.Categories[c] }
