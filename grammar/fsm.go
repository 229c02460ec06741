package grammar

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// NewFSM creates an empty finite-state grammar.
func NewFSM(symbols Symbols, sp Specials) *Grammar {
	g := New(symbols, sp)
	g.IsNGram = false
	return g
}

type fsmFile struct {
	Specials     Specials   `yaml:"specials"`
	SilenceScore float64    `yaml:"silence_score"`
	States       int        `yaml:"states"`
	Initial      []fsmEntry `yaml:"initial"`
	Final        []fsmEntry `yaml:"final"`
	Arcs         []fsmArc   `yaml:"arcs"`
}

type fsmEntry struct {
	State   int     `yaml:"state"`
	LogProb float64 `yaml:"log_prob"`
}

type fsmArc struct {
	From    int     `yaml:"from"`
	Word    string  `yaml:"word"`
	LogProb float64 `yaml:"log_prob"`
	To      int     `yaml:"to"`
	Backoff bool    `yaml:"backoff"`
}

// LoadFSM reads a finite-state grammar written in YAML:
//
//	states: 3
//	initial: [{state: 0}]
//	final: [{state: 2}]
//	arcs:
//	  - {from: 0, word: hello, log_prob: -0.1, to: 1}
//	  - {from: 1, backoff: true, log_prob: -1, to: 0}
func LoadFSM(r io.Reader, symbols Symbols) (*Grammar, error) {
	var f fsmFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("grammar: decode fsm: %w", err)
	}
	if f.States <= 0 {
		return nil, fmt.Errorf("grammar: fsm declares %d states", f.States)
	}
	g := NewFSM(symbols, f.Specials)
	g.SilenceScore = f.SilenceScore
	for i := 0; i < f.States; i++ {
		g.AddState()
	}
	inRange := func(s int) bool { return s >= 0 && s < f.States }
	for _, a := range f.Arcs {
		if !inRange(a.From) || !inRange(a.To) {
			return nil, fmt.Errorf("%w: fsm arc %d -> %d", ErrUnknownState, a.From, a.To)
		}
		if a.Backoff {
			g.SetBackoff(StateID(a.From), a.LogProb, StateID(a.To))
			continue
		}
		if a.Word == "" {
			return nil, fmt.Errorf("grammar: fsm arc %d -> %d has no word", a.From, a.To)
		}
		g.AddArc(StateID(a.From), symbols.Add(a.Word), a.LogProb, StateID(a.To))
	}
	for _, e := range f.Initial {
		g.AddInitial(StateID(e.State), e.LogProb)
	}
	for _, e := range f.Final {
		g.AddFinal(StateID(e.State), e.LogProb)
	}
	if len(g.Initial) == 0 {
		return nil, fmt.Errorf("grammar: fsm has no initial state")
	}
	if err := g.Complete(); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadFSMFile is a convenience wrapper that opens a file path.
func LoadFSMFile(path string, symbols Symbols) (*Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFSM(f, symbols)
}
