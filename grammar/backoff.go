package grammar

import (
	"slices"

	"github.com/ieee0824/wordlattice/internal/mathutil"
	"github.com/ieee0824/wordlattice/vocab"
)

// backoffLimit is the most states a back-off walk visits: the grammar order
// when known, otherwise every state once.
func (g *Grammar) backoffLimit() int {
	if g.Order > 0 && g.Order < len(g.States) {
		return g.Order
	}
	return len(g.States)
}

// NextBackoff appends the back-off state of the last state in seen and
// returns it, or returns NoState when the walk must stop: at the end of the
// chain, after Order states or before revisiting a state. seen starts with
// the first state of the walk. The grammar is shared between searches, so
// callers keep seen locally.
func (g *Grammar) NextBackoff(seen []StateID) ([]StateID, StateID) {
	to := g.States[seen[len(seen)-1]].BackoffState
	if to == NoState || len(seen) >= g.backoffLimit() || slices.Contains(seen, to) {
		return seen, NoState
	}
	return append(seen, to), to
}

// FillWordState resolves word from state from, descending back-off states
// and accumulating their weights until an arc is found. When no state
// holds the word the unknown-word arc of the last state is used; failing
// that the result has probability LogZero and stays in that state.
// The boolean reports whether word itself was found.
func (g *Grammar) FillWordState(from StateID, word int) (Arc, bool) {
	if from == NoState {
		return Arc{Word: vocab.None, Prob: mathutil.LogZero, Next: NoState}, false
	}
	bo := 0.0
	s := from
	seen := append(make([]StateID, 0, 8), from)
	for {
		if a, ok := g.Find(s, word); ok {
			a.Prob += bo
			return a, true
		}
		var next StateID
		if seen, next = g.NextBackoff(seen); next == NoState {
			break
		}
		bo += g.States[s].Backoff
		s = next
	}
	if g.UnkWord != vocab.None {
		if a, ok := g.Find(s, g.UnkWord); ok {
			a.Prob += bo
			return a, false
		}
	}
	return Arc{Word: vocab.None, Prob: mathutil.LogZero, Next: s}, false
}

// BackoffChain returns the states visited from s through back-off, s first.
// No state appears twice.
func (g *Grammar) BackoffChain(s StateID) []StateID {
	if s == NoState {
		return nil
	}
	chain := []StateID{s}
	for next := s; next != NoState; {
		chain, next = g.NextBackoff(chain)
	}
	return chain
}

// EndProbability returns the probability of closing the sentence from s:
// the end-word arc reached through back-off plus the final state weight.
func (g *Grammar) EndProbability(s StateID) (float64, bool) {
	if g.EndWord == vocab.None || s == NoState {
		return 0, false
	}
	bo := 0.0
	seen := append(make([]StateID, 0, 8), s)
	for {
		st := &g.States[s]
		if !mathutil.IsLogZero(bo) {
			for _, a := range st.Arcs {
				if a.Word == g.EndWord {
					return a.Prob + bo + g.FinalProb(0), true
				}
			}
		}
		if mathutil.IsLogZero(st.Backoff) {
			break
		}
		var next StateID
		if seen, next = g.NextBackoff(seen); next == NoState {
			break
		}
		bo += st.Backoff
		s = next
	}
	return 0, false
}
