package decoder

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ieee0824/wordlattice/grammar"
	"github.com/ieee0824/wordlattice/internal/mathutil"
	"github.com/ieee0824/wordlattice/vocab"
)

// LatHyp is an incoming edge of a lattice state: the symbol that ended
// there, the lattice state it came from (-1 for the utterance start) and its
// score.
type LatHyp struct {
	Ext      int             `msgpack:"ext"`
	Word     int             `msgpack:"word"`
	Pos      int             `msgpack:"pos"`
	Filler   bool            `msgpack:"filler,omitempty"`
	Index    int             `msgpack:"index"`
	StateIn  grammar.StateID `msgpack:"state_in"`
	StateOut grammar.StateID `msgpack:"state_out"`
	Prob     Probability     `msgpack:"prob"`
}

// Lead reports whether the edge starts its extended symbol.
func (h *LatHyp) Lead() bool { return h.Pos == 0 && !h.Filler }

// LatState is a grammar state reached at the end of a word in one frame.
// Hyps is a min-heap on the final score until Lattice.Sort orders it
// best first.
type LatState struct {
	State           grammar.StateID `msgpack:"state"`
	Ext             int             `msgpack:"ext"`
	Pos             int             `msgpack:"pos"`
	Category        int             `msgpack:"category"`
	HistoryCategory grammar.StateID `msgpack:"history_category"`
	T               int             `msgpack:"t"` // frames consumed when the word ended
	Index           int             `msgpack:"index"`
	Hyps            []LatHyp        `msgpack:"hyps"`
	Max             int             `msgpack:"max"`
	Capacity        int             `msgpack:"capacity"` // 0 is unbounded
}

// Best returns the highest scoring incoming edge, or nil.
func (s *LatState) Best() *LatHyp {
	if len(s.Hyps) == 0 {
		return nil
	}
	return &s.Hyps[s.Max]
}

func latHypOf(h *Hyp) LatHyp {
	return LatHyp{
		Ext:      h.Ext,
		Word:     h.Word,
		Pos:      h.Pos,
		Filler:   h.Filler,
		Index:    h.Index,
		StateIn:  h.StateIn,
		StateOut: h.StateOut,
		Prob:     h.Prob,
	}
}

// insert merges h with the edge sharing its symbol and origin, or replaces
// the worst edge when the state is full. It reports whether h was kept.
func (s *LatState) insert(h *Hyp) bool {
	replace := -1
	for i := range s.Hyps {
		if s.Hyps[i].Ext == h.Ext && s.Hyps[i].Index == h.Index {
			replace = i
			break
		}
	}
	if replace < 0 && s.Capacity > 0 && len(s.Hyps) >= s.Capacity {
		replace = 0
	}

	if replace >= 0 {
		if h.Prob.Final <= s.Hyps[replace].Prob.Final {
			return false
		}
		s.Hyps[replace] = latHypOf(h)
		s.raised(replace)
		s.siftDown(replace, len(s.Hyps))
	} else {
		s.Hyps = append(s.Hyps, latHypOf(h))
		s.raised(len(s.Hyps) - 1)
		s.siftUp(len(s.Hyps) - 1)
	}
	return true
}

// raised moves Max to slot i when its edge now scores above the best.
// Edges are only ever replaced by better ones, so Max never has to be
// searched for.
func (s *LatState) raised(i int) {
	if i == s.Max || len(s.Hyps) == 1 {
		s.Max = i
		return
	}
	if s.Hyps[i].Prob.Final > s.Hyps[s.Max].Prob.Final {
		s.Max = i
	}
}

// swap exchanges two edges and keeps Max on the same edge.
func (s *LatState) swap(i, j int) {
	s.Hyps[i], s.Hyps[j] = s.Hyps[j], s.Hyps[i]
	switch s.Max {
	case i:
		s.Max = j
	case j:
		s.Max = i
	}
}

func (s *LatState) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if s.Hyps[parent].Prob.Final <= s.Hyps[i].Prob.Final {
			return
		}
		s.swap(parent, i)
		i = parent
	}
}

func (s *LatState) siftDown(i, n int) {
	for {
		child := 2*i + 1
		if child >= n {
			return
		}
		if child+1 < n && s.Hyps[child+1].Prob.Final < s.Hyps[child].Prob.Final {
			child++
		}
		if s.Hyps[child].Prob.Final >= s.Hyps[i].Prob.Final {
			return
		}
		s.swap(i, child)
		i = child
	}
}

// sort turns the min-heap into a best-first slice.
func (s *LatState) sort() {
	for n := len(s.Hyps) - 1; n > 0; n-- {
		s.swap(0, n)
		s.siftDown(0, n)
	}
	s.Max = 0
}

type latKey struct {
	state    grammar.StateID
	ext, pos int
	category int
}

// Lattice records the word ends that survived each frame. States are only
// appended; the per-frame index finds the states of the current frame.
type Lattice struct {
	States       []*LatState `msgpack:"states"`
	InitialIndex int         `msgpack:"initial_index"`
	NFrames      int         `msgpack:"n_frames"` // observations plus the closing step
	NBest        int         `msgpack:"nbest"`
	NNode        int         `msgpack:"nnode"`
	Partial      bool        `msgpack:"partial"` // no hypothesis reached a grammar end

	frame map[latKey]int
}

// NewLattice creates an empty lattice keeping nnode edges per state and
// nbest edges into the final sink. An nnode of -1 means nbest; 0 keeps
// every edge.
func NewLattice(nbest, nnode int) *Lattice {
	if nnode == -1 {
		nnode = nbest
	}
	return &Lattice{NBest: nbest, NNode: nnode, frame: make(map[latKey]int)}
}

// Len returns the number of lattice states.
func (l *Lattice) Len() int { return len(l.States) }

// Insert records a word end in the current frame and returns its state.
func (l *Lattice) Insert(h *Hyp) *LatState {
	if l.frame == nil {
		l.frame = make(map[latKey]int)
	}
	k := latKey{state: h.State, ext: h.Ext, pos: h.Pos, category: h.Category}
	idx, ok := l.frame[k]
	if !ok {
		idx = len(l.States)
		l.States = append(l.States, &LatState{
			State:           h.State,
			Ext:             h.Ext,
			Pos:             h.Pos,
			Category:        h.Category,
			HistoryCategory: h.HistoryCategory,
			T:               l.NFrames - 1,
			Index:           idx,
			Capacity:        l.NNode,
		})
		l.frame[k] = idx
	}
	s := l.States[idx]
	s.insert(h)
	return s
}

// ResetFrame forgets which states belong to the current frame.
func (l *Lattice) ResetFrame() {
	clear(l.frame)
	l.InitialIndex = len(l.States)
}

// StartFrame opens the next frame.
func (l *Lattice) StartFrame() {
	l.ResetFrame()
	l.NFrames++
}

// FrameStates returns the states created since the last frame reset.
func (l *Lattice) FrameStates() []*LatState {
	return l.States[l.InitialIndex:]
}

// AddFinalNode appends a sink state with one edge from every edge of the
// states of the current frame, scored with that edge's final score.
func (l *Lattice) AddFinalNode() {
	sink := &LatState{
		State:           grammar.NoState,
		Ext:             vocab.None,
		Category:        vocab.NoCategory,
		HistoryCategory: grammar.NoState,
		T:               l.NFrames - 1,
		Index:           len(l.States),
		Capacity:        l.NBest,
	}
	for i := l.InitialIndex; i < len(l.States); i++ {
		for _, e := range l.States[i].Hyps {
			h := newHyp()
			h.Prob.Final = e.Prob.Final
			h.Index = i
			sink.insert(&h)
		}
	}
	l.States = append(l.States, sink)
}

// Sort orders the edges of every state best first.
func (l *Lattice) Sort() {
	for _, s := range l.States {
		s.sort()
	}
}

// Sink returns the final state added by AddFinalNode, or nil.
func (l *Lattice) Sink() *LatState {
	if len(l.States) == 0 {
		return nil
	}
	return l.States[len(l.States)-1]
}

// path follows the best edges back from the sink and returns them in
// utterance order together with the state each edge enters. The sink edge
// is left out.
func (l *Lattice) path() ([]*LatHyp, []*LatState) {
	sink := l.Sink()
	if sink == nil || sink.Best() == nil {
		return nil, nil
	}
	var edges []*LatHyp
	var states []*LatState
	for idx := sink.Best().Index; idx >= 0; {
		s := l.States[idx]
		e := s.Best()
		if e == nil {
			break
		}
		edges = append(edges, e)
		states = append(states, s)
		idx = e.Index
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
		states[i], states[j] = states[j], states[i]
	}
	return edges, states
}

// BestHyp returns the extended symbols of the best path and its score.
// An empty lattice yields nil and LogZero.
func (l *Lattice) BestHyp() ([]int, float64) {
	sink := l.Sink()
	if sink == nil || sink.Best() == nil {
		return nil, mathutil.LogZero
	}
	edges, _ := l.path()
	syms := make([]int, 0, len(edges))
	for _, e := range edges {
		if e.Lead() {
			syms = append(syms, e.Ext)
		}
	}
	return syms, sink.Best().Prob.Final
}

// LatWord is one extended symbol of the best path with its frame span.
type LatWord struct {
	Ext        int
	StartFrame int
	EndFrame   int
	Score      float64 // final score gained over the span
	Acoustic   float64 // acoustic score of the span
	LM         float64 // grammar score of the span, unscaled
}

// Words returns the best path with frame boundaries.
func (l *Lattice) Words() []LatWord {
	edges, states := l.path()
	var words []LatWord
	prevT := 0
	prevFinal := 0.0
	for i, e := range edges {
		t := states[i].T
		if e.Lead() || len(words) == 0 {
			words = append(words, LatWord{Ext: e.Ext, StartFrame: prevT})
		}
		w := &words[len(words)-1]
		w.EndFrame = t - 1
		w.Score += e.Prob.Final - prevFinal
		w.Acoustic += e.Prob.Acoustic
		w.LM += e.Prob.LM
		prevT, prevFinal = t, e.Prob.Final
	}
	return words
}

// Save writes the lattice with msgpack.
func (l *Lattice) Save(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(l)
}

// LoadLattice reads a lattice written by Save.
func LoadLattice(r io.Reader) (*Lattice, error) {
	l := &Lattice{}
	if err := msgpack.NewDecoder(r).Decode(l); err != nil {
		return nil, err
	}
	l.frame = make(map[latKey]int)
	return l, nil
}
