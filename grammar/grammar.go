// Package grammar holds the word-level language models driving the search:
// back-off n-grams and finite-state grammars share one representation, an
// arena of states whose word arcs are sorted by descending probability.
package grammar

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ieee0824/wordlattice/internal/mathutil"
	"github.com/ieee0824/wordlattice/vocab"
)

var (
	// ErrBackoffCycle is returned when a back-off chain revisits a state.
	ErrBackoffCycle = errors.New("grammar: back-off cycle")
	// ErrUnknownState is returned when an arc or list references a state outside the arena.
	ErrUnknownState = errors.New("grammar: unknown state")
)

// StateID indexes Grammar.States.
type StateID int32

// NoState marks the absence of a state.
const NoState StateID = -1

// Arc is a word transition.
type Arc struct {
	Word int
	Prob float64
	Next StateID
}

// State is a grammar state. Name is the n-gram history for n-grams and empty
// for finite-state grammars.
type State struct {
	Name         []int
	Arcs         []Arc
	Backoff      float64
	BackoffState StateID

	lookup lookup
}

// Entry is a state of the initial or final list with its probability.
type Entry struct {
	State StateID
	Prob  float64
}

// Symbols is the symbol table a grammar is written over.
type Symbols interface {
	Add(name string) int
	ID(name string) int
	Name(id int) string
	Len() int
}

// Specials names the symbols with a fixed role in the search.
type Specials struct {
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Unk     string `yaml:"unk"`
	Silence string `yaml:"silence"`
	Pause   string `yaml:"pause"`
}

// DefaultSpecials returns the conventional n-gram markers without silence.
func DefaultSpecials() Specials {
	return Specials{Start: "<s>", End: "</s>", Unk: "<unk>"}
}

// Grammar is a read-only word graph once Complete has succeeded.
type Grammar struct {
	States  []State
	Initial []Entry
	Final   []Entry
	IsNGram bool
	Order   int
	Symbols Symbols

	StartWord   int
	EndWord     int
	UnkWord     int
	SilenceWord int
	PauseWord   int

	SilenceScore float64
	ForceSilence bool

	completed bool
}

// New creates an empty grammar over symbols. Special symbols that are named
// in sp are added to the table.
func New(symbols Symbols, sp Specials) *Grammar {
	g := &Grammar{
		Symbols:     symbols,
		StartWord:   vocab.None,
		EndWord:     vocab.None,
		UnkWord:     vocab.None,
		SilenceWord: vocab.None,
		PauseWord:   vocab.None,
	}
	add := func(name string) int {
		if name == "" {
			return vocab.None
		}
		return symbols.Add(name)
	}
	g.StartWord = add(sp.Start)
	g.EndWord = add(sp.End)
	g.UnkWord = add(sp.Unk)
	g.SilenceWord = add(sp.Silence)
	g.PauseWord = add(sp.Pause)
	return g
}

// AddState appends a state without back-off and returns its id.
func (g *Grammar) AddState(name ...int) StateID {
	g.States = append(g.States, State{Name: name, Backoff: mathutil.LogZero, BackoffState: NoState})
	g.completed = false
	return StateID(len(g.States) - 1)
}

// AddArc appends a word arc.
func (g *Grammar) AddArc(from StateID, word int, prob float64, to StateID) {
	g.States[from].Arcs = append(g.States[from].Arcs, Arc{Word: word, Prob: prob, Next: to})
	g.completed = false
}

// SetBackoff sets the back-off arc of a state.
func (g *Grammar) SetBackoff(from StateID, prob float64, to StateID) {
	g.States[from].Backoff = prob
	g.States[from].BackoffState = to
	g.completed = false
}

// AddInitial appends an initial state.
func (g *Grammar) AddInitial(s StateID, prob float64) {
	g.Initial = append(g.Initial, Entry{State: s, Prob: prob})
}

// AddFinal appends a final state.
func (g *Grammar) AddFinal(s StateID, prob float64) {
	g.Final = append(g.Final, Entry{State: s, Prob: prob})
}

// State returns the state with the given id.
func (g *Grammar) State(id StateID) *State { return &g.States[id] }

func (g *Grammar) valid(id StateID) bool { return id >= 0 && int(id) < len(g.States) }

// Complete sorts arcs by descending probability, drops zero-probability
// arcs, checks references and back-off chains, and builds the per-state
// word lookup. It must be called before searching.
func (g *Grammar) Complete() error {
	for i := range g.States {
		s := &g.States[i]
		sort.SliceStable(s.Arcs, func(a, b int) bool { return s.Arcs[a].Prob > s.Arcs[b].Prob })
		n := len(s.Arcs)
		for n > 0 && mathutil.IsLogZero(s.Arcs[n-1].Prob) {
			n--
		}
		s.Arcs = s.Arcs[:n]
		for _, a := range s.Arcs {
			if !g.valid(a.Next) {
				return fmt.Errorf("%w: state %d arc %q -> %d", ErrUnknownState, i, g.Symbols.Name(a.Word), a.Next)
			}
		}
		if s.BackoffState != NoState && !g.valid(s.BackoffState) {
			return fmt.Errorf("%w: state %d backs off to %d", ErrUnknownState, i, s.BackoffState)
		}
	}
	for _, list := range [][]Entry{g.Initial, g.Final} {
		for _, e := range list {
			if !g.valid(e.State) {
				return fmt.Errorf("%w: list entry %d", ErrUnknownState, e.State)
			}
		}
	}
	depth, err := g.checkBackoff()
	if err != nil {
		return err
	}
	if g.Order == 0 {
		g.Order = depth
	}
	for i := range g.States {
		g.States[i].lookup = buildLookup(g.States[i].Arcs, g.Symbols.Len())
	}
	g.completed = true
	return nil
}

// checkBackoff verifies every back-off chain ends and returns the length of
// the longest one counted in states.
func (g *Grammar) checkBackoff() (int, error) {
	const (
		unseen = iota
		active
		done
	)
	mark := make([]uint8, len(g.States))
	length := make([]int, len(g.States))
	longest := 0
	for i := range g.States {
		if mark[i] == done {
			continue
		}
		var chain []StateID
		s := StateID(i)
		for s != NoState && mark[s] == unseen {
			mark[s] = active
			chain = append(chain, s)
			s = g.States[s].BackoffState
		}
		if s != NoState && mark[s] == active {
			return 0, fmt.Errorf("%w: through state %d", ErrBackoffCycle, s)
		}
		tail := 0
		if s != NoState {
			tail = length[s]
		}
		for j := len(chain) - 1; j >= 0; j-- {
			tail++
			length[chain[j]] = tail
			mark[chain[j]] = done
		}
		if tail > longest {
			longest = tail
		}
	}
	return longest, nil
}

// Completed reports whether Complete has run since the last change.
func (g *Grammar) Completed() bool { return g.completed }

// IsFinalState returns the index of s in the final list, or -1.
func (g *Grammar) IsFinalState(s StateID) int {
	for i, e := range g.Final {
		if e.State == s {
			return i
		}
	}
	return -1
}

// IsInitialState returns the index of s in the initial list, or -1.
func (g *Grammar) IsInitialState(s StateID) int {
	for i, e := range g.Initial {
		if e.State == s {
			return i
		}
	}
	return -1
}

// IsEndWord reports whether a hypothesis ending with word may close the
// sentence. With forced silence only the silence word can.
func (g *Grammar) IsEndWord(word int) bool {
	return !g.ForceSilence || word == g.SilenceWord
}

// FinalProb returns the probability of final list entry i, or 0 when the
// list is empty.
func (g *Grammar) FinalProb(i int) float64 {
	if i < 0 || i >= len(g.Final) {
		return 0
	}
	return g.Final[i].Prob
}

// Find returns the best arc for word leaving s without backing off.
func (g *Grammar) Find(s StateID, word int) (Arc, bool) {
	st := &g.States[s]
	if st.lookup == nil {
		st.lookup = buildLookup(st.Arcs, g.Symbols.Len())
	}
	return st.lookup.find(word)
}

// NumArcs returns the number of word arcs in the grammar.
func (g *Grammar) NumArcs() int {
	n := 0
	for i := range g.States {
		n += len(g.States[i].Arcs)
	}
	return n
}
