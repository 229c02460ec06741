package decoder

import (
	"bytes"
	"testing"

	"github.com/ieee0824/wordlattice/grammar"
)

func wordEnd(state grammar.StateID, ext, index int, final float64) *Hyp {
	h := newHyp()
	h.State = state
	h.Ext = ext
	h.Word = ext
	h.Index = index
	h.Prob.Final = final
	return &h
}

// threeWords builds the lattice of "1 2 3", one word per frame, with a
// worse competitor for the second word.
func threeWords(t *testing.T) *Lattice {
	t.Helper()
	lat := NewLattice(1, -1)
	lat.StartFrame() // first observation, no word ends yet
	lat.StartFrame()
	lat.Insert(wordEnd(1, 1, -1, -1))
	lat.StartFrame()
	lat.Insert(wordEnd(2, 2, 0, -2))
	lat.Insert(wordEnd(4, 4, 0, -7))
	lat.StartFrame()
	lat.Insert(wordEnd(3, 3, 1, -3))
	lat.Insert(wordEnd(3, 3, 2, -8))
	lat.AddFinalNode()
	lat.Sort()
	return lat
}

func TestLatticeBestHyp(t *testing.T) {
	lat := threeWords(t)
	syms, score := lat.BestHyp()
	want := []int{1, 2, 3}
	if len(syms) != len(want) {
		t.Fatalf("BestHyp = %v, want %v", syms, want)
	}
	for i := range want {
		if syms[i] != want[i] {
			t.Fatalf("BestHyp = %v, want %v", syms, want)
		}
	}
	if score != -3 {
		t.Errorf("score = %g, want -3", score)
	}
}

func TestLatticeWords(t *testing.T) {
	lat := threeWords(t)
	words := lat.Words()
	if len(words) != 3 {
		t.Fatalf("Words = %+v", words)
	}
	for i, w := range words {
		if w.StartFrame != i || w.EndFrame != i {
			t.Errorf("word %d spans %d-%d, want %d-%d", i, w.StartFrame, w.EndFrame, i, i)
		}
		if w.Score != -1 {
			t.Errorf("word %d score %g, want -1", i, w.Score)
		}
	}
}

func TestLatticeNBestMerge(t *testing.T) {
	lat := NewLattice(2, 2)
	lat.StartFrame()
	s := lat.Insert(wordEnd(1, 5, 0, -4))
	lat.Insert(wordEnd(1, 5, 0, -2)) // same symbol and origin
	lat.Insert(wordEnd(1, 5, 1, -6))
	lat.Insert(wordEnd(1, 5, 2, -9)) // worse than both, state is full
	if len(s.Hyps) != 2 {
		t.Fatalf("edges = %d, want 2", len(s.Hyps))
	}
	if got := s.Best().Prob.Final; got != -2 {
		t.Errorf("best = %g, want -2", got)
	}
	lat.Insert(wordEnd(1, 5, 3, -3))
	lat.Sort()
	if s.Hyps[0].Prob.Final != -2 || s.Hyps[1].Prob.Final != -3 {
		t.Errorf("sorted edges = %+v", s.Hyps)
	}
	if len(lat.States) != 1 {
		t.Errorf("states = %d, want 1", len(lat.States))
	}
}

func TestLatticePhraseContinuation(t *testing.T) {
	lat := NewLattice(1, -1)
	lat.StartFrame()
	lat.StartFrame()
	lat.Insert(wordEnd(1, 7, -1, -1))
	lat.StartFrame()
	cont := wordEnd(1, 7, 0, -2)
	cont.Pos = 1
	lat.Insert(cont)
	lat.AddFinalNode()
	lat.Sort()

	syms, _ := lat.BestHyp()
	if len(syms) != 1 || syms[0] != 7 {
		t.Errorf("BestHyp = %v, want [7]", syms)
	}
	words := lat.Words()
	if len(words) != 1 || words[0].StartFrame != 0 || words[0].EndFrame != 1 {
		t.Errorf("Words = %+v", words)
	}
}

func TestLatticeEmpty(t *testing.T) {
	lat := NewLattice(1, -1)
	lat.StartFrame()
	lat.AddFinalNode()
	if syms, score := lat.BestHyp(); syms != nil || score > -1e29 {
		t.Errorf("BestHyp = %v, %g", syms, score)
	}
}

func TestLatticeSaveLoad(t *testing.T) {
	lat := threeWords(t)
	lat.Partial = true
	var buf bytes.Buffer
	if err := lat.Save(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := LoadLattice(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Partial || got.Len() != lat.Len() {
		t.Fatalf("loaded %d states partial=%v", got.Len(), got.Partial)
	}
	syms, score := got.BestHyp()
	if len(syms) != 3 || score != -3 {
		t.Errorf("loaded BestHyp = %v, %g", syms, score)
	}
}

func TestLatStateBestTracksInserts(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
	}{
		{"unbounded", 0},
		{"three edges", 3},
	}
	inserts := []struct {
		index int
		final float64
	}{
		{0, -5}, {1, -3}, {2, -9}, {3, -1}, {1, -0.5}, {4, -7}, {2, -2}, {5, -0.25}, {0, -6}, {6, -4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &LatState{Capacity: tt.capacity}
			for i, in := range inserts {
				s.insert(wordEnd(1, 1, in.index, in.final))
				want := s.Hyps[0].Prob.Final
				for _, h := range s.Hyps {
					want = max(want, h.Prob.Final)
				}
				if got := s.Best().Prob.Final; got != want {
					t.Fatalf("after insert %d: Best = %f, want %f (edges %v)", i, got, want, s.Hyps)
				}
				if tt.capacity > 0 && len(s.Hyps) > tt.capacity {
					t.Fatalf("after insert %d: %d edges, capacity %d", i, len(s.Hyps), tt.capacity)
				}
			}
			s.sort()
			if s.Max != 0 || s.Hyps[0].Prob.Final != -0.25 {
				t.Errorf("sorted best = %+v at %d", s.Hyps[0], s.Max)
			}
		})
	}
}
