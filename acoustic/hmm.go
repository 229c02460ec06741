package acoustic

import (
	"fmt"
	"math"

	"github.com/ieee0824/wordlattice/internal/mathutil"
)

// PhonemeHMM is the topology of one phoneme: a sequence of emitting states
// that reference tied GMMs, plus a log transition matrix over
// len(States)+2 nodes. Node 0 is the non-emitting entry, node len+1 the
// non-emitting exit, and emitting state s is node s+1.
type PhonemeHMM struct {
	Name   string       `msgpack:"name"`
	States []int        `msgpack:"states"` // tied state ids
	Trans  mathutil.Mat `msgpack:"trans"`
}

// NewPhonemeHMM validates and creates a phoneme HMM.
func NewPhonemeHMM(name string, states []int, trans mathutil.Mat) (*PhonemeHMM, error) {
	h := &PhonemeHMM{Name: name, States: states, Trans: trans}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// NewLeftToRight creates a left-to-right HMM with self-loop and forward
// transitions of equal probability on every emitting state.
func NewLeftToRight(name string, states []int) *PhonemeHMM {
	n := len(states) + 2
	trans := mathutil.NewMatFill(n, n, mathutil.LogZero)
	trans[0][1] = 0.0 // log(1.0)
	logHalf := math.Log(0.5)
	for i := 1; i < n-1; i++ {
		trans[i][i] = logHalf
		trans[i][i+1] = logHalf
	}
	return &PhonemeHMM{Name: name, States: states, Trans: trans}
}

func (h *PhonemeHMM) validate() error {
	if len(h.States) == 0 {
		return fmt.Errorf("hmm %q: no emitting states", h.Name)
	}
	n := h.NumTransitions()
	if len(h.Trans) != n {
		return fmt.Errorf("hmm %q: transition matrix has %d rows, want %d", h.Name, len(h.Trans), n)
	}
	for i, row := range h.Trans {
		if len(row) != n {
			return fmt.Errorf("hmm %q: transition row %d has %d columns, want %d", h.Name, i, len(row), n)
		}
	}
	return nil
}

// NumTransitions returns the size of the transition matrix.
func (h *PhonemeHMM) NumTransitions() int { return len(h.States) + 2 }

// Exit returns the index of the non-emitting exit node.
func (h *PhonemeHMM) Exit() int { return len(h.States) + 1 }

// Transition returns the log probability from emitting state s (-1 for the
// entry node) to matrix column to.
func (h *PhonemeHMM) Transition(s, to int) float64 { return h.Trans[s+1][to] }

// ExitProb returns the log probability of leaving the phoneme from emitting state s.
func (h *PhonemeHMM) ExitProb(s int) float64 { return h.Trans[s+1][h.Exit()] }

// CanExit reports whether emitting state s reaches the exit node.
func (h *PhonemeHMM) CanExit(s int) bool { return !mathutil.IsLogZero(h.ExitProb(s)) }

// TiedState returns the tied state id of emitting state s.
func (h *PhonemeHMM) TiedState(s int) int { return h.States[s] }
