// Package lexicon turns a pronunciation dictionary into per-word automata
// over phoneme HMMs.
package lexicon

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ieee0824/wordlattice/acoustic"
	"github.com/ieee0824/wordlattice/internal/mathutil"
	"github.com/ieee0824/wordlattice/vocab"
)

// Edge is a phoneme transition between two lexicon states.
type Edge struct {
	To      int
	Phoneme int
	Prob    float64
}

// State holds the outgoing edges of a lexicon state, sorted by descending
// probability.
type State struct {
	Edges []Edge
}

// Model is the pronunciation automaton of one word. All pronunciations start
// at Initial and finish at End.
type Model struct {
	Word    int
	States  []State
	Initial int
	End     int
}

// Lexicon maps input word ids to pronunciation automata.
type Lexicon struct {
	Vocab  *vocab.Vocab
	Models []*Model // indexed by word id, nil when the word has no pronunciation
}

// Build creates the automata for every word of dict. Words are added to
// words when missing; phonemes must exist in am.
func Build(dict *Dictionary, am *acoustic.Model, words *vocab.Vocab) (*Lexicon, error) {
	if words == nil {
		words = vocab.New()
	}
	lex := &Lexicon{Vocab: words}
	for _, w := range dict.Words() {
		id := words.Add(w)
		m, err := buildModel(id, dict.Lookup(w), am)
		if err != nil {
			return nil, fmt.Errorf("lexicon: word %q: %w", w, err)
		}
		lex.set(id, m)
	}
	return lex, nil
}

func (l *Lexicon) set(id int, m *Model) {
	for len(l.Models) <= id {
		l.Models = append(l.Models, nil)
	}
	l.Models[id] = m
}

func buildModel(word int, entries []Entry, am *acoustic.Model) (*Model, error) {
	m := &Model{Word: word, Initial: 0, End: 1, States: make([]State, 2)}
	for _, e := range entries {
		if len(e.Phonemes) == 0 {
			return nil, fmt.Errorf("empty pronunciation")
		}
		from := m.Initial
		prob := mathutil.Log(e.Prob)
		for i, name := range e.Phonemes {
			ph := am.PhonemeID(name)
			if ph < 0 {
				return nil, fmt.Errorf("unknown phoneme %q", name)
			}
			to := m.End
			if i < len(e.Phonemes)-1 {
				m.States = append(m.States, State{})
				to = len(m.States) - 1
			}
			m.States[from].Edges = append(m.States[from].Edges, Edge{To: to, Phoneme: ph, Prob: prob})
			from = to
			prob = 0
		}
	}
	for i := range m.States {
		edges := m.States[i].Edges
		sort.SliceStable(edges, func(a, b int) bool { return edges[a].Prob > edges[b].Prob })
	}
	return m, nil
}

// Model returns the automaton of word id, or nil.
func (l *Lexicon) Model(id int) *Model {
	if id < 0 || id >= len(l.Models) {
		return nil
	}
	return l.Models[id]
}

// NumStates returns the total number of lexicon states.
func (l *Lexicon) NumStates() int {
	n := 0
	for _, m := range l.Models {
		if m != nil {
			n += len(m.States)
		}
	}
	return n
}

// CheckVocab reports the input words of ext that have no pronunciation. Each
// missing word is logged to logger, or slog.Default when nil; decoding
// continues without it.
func (l *Lexicon) CheckVocab(ext *vocab.Extended, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	var missing []string
	for id := 0; id < ext.In.Len(); id++ {
		name := ext.In.Name(id)
		if ext.In.Category(id) != vocab.NoCategory {
			continue
		}
		if l.Model(l.Vocab.ID(name)) == nil {
			logger.Warn("word not in lexicon", "word", name)
			missing = append(missing, name)
		}
	}
	return missing
}
