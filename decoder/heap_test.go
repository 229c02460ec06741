package decoder

import (
	"errors"
	"math"
	"sort"
	"testing"
)

func hypAt(word int, final float64) *Hyp {
	h := newHyp()
	h.Word = word
	h.Prob.Final = final
	return &h
}

func drain(hh *HypHeap) []float64 {
	var out []float64
	for {
		h, ok := hh.Pop()
		if !ok {
			break
		}
		out = append(out, h.Prob.Final)
	}
	sort.Float64s(out)
	return out
}

func TestNewHypHeapNoCapacity(t *testing.T) {
	if _, err := NewHypHeap(0, 10); !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("err = %v, want ErrNoCapacity", err)
	}
}

func TestHypHeapInsert(t *testing.T) {
	tests := []struct {
		name   string
		max    int
		beam   float64
		offers []*Hyp
		want   []InsertStatus
		kept   []float64
	}{
		{
			name:   "distinct states",
			max:    4,
			beam:   math.Inf(1),
			offers: []*Hyp{hypAt(1, -3), hypAt(2, -1), hypAt(3, -2)},
			want:   []InsertStatus{Inserted, Inserted, Inserted},
			kept:   []float64{-3, -2, -1},
		},
		{
			name:   "same state keeps the better score",
			max:    4,
			beam:   math.Inf(1),
			offers: []*Hyp{hypAt(1, -3), hypAt(1, -5), hypAt(1, -1)},
			want:   []InsertStatus{Inserted, RejectNoReplace, Replaced},
			kept:   []float64{-1},
		},
		{
			name:   "beam",
			max:    4,
			beam:   2,
			offers: []*Hyp{hypAt(1, -1), hypAt(2, -4), hypAt(3, -2.5)},
			want:   []InsertStatus{Inserted, RejectBeam, Inserted},
			kept:   []float64{-2.5, -1},
		},
		{
			name:   "histogram evicts the minimum",
			max:    2,
			beam:   math.Inf(1),
			offers: []*Hyp{hypAt(1, -3), hypAt(2, -2), hypAt(3, -4), hypAt(4, -1)},
			want:   []InsertStatus{Inserted, Inserted, RejectFull, Inserted},
			kept:   []float64{-2, -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hh, err := NewHypHeap(tt.max, tt.beam)
			if err != nil {
				t.Fatal(err)
			}
			for i, h := range tt.offers {
				if got := hh.Insert(h); got != tt.want[i] {
					t.Errorf("offer %d: status %v, want %v", i, got, tt.want[i])
				}
			}
			if hh.Len() > tt.max {
				t.Errorf("Len = %d exceeds %d", hh.Len(), tt.max)
			}
			got := drain(hh)
			if len(got) != len(tt.kept) {
				t.Fatalf("kept %v, want %v", got, tt.kept)
			}
			for i := range got {
				if got[i] != tt.kept[i] {
					t.Errorf("kept %v, want %v", got, tt.kept)
					break
				}
			}
		})
	}
}

func TestHypHeapReplaceAfterBuild(t *testing.T) {
	hh, _ := NewHypHeap(3, math.Inf(1))
	for w := 1; w <= 3; w++ {
		hh.Insert(hypAt(w, float64(-w)))
	}
	if got := hh.Min(); got != -3 {
		t.Fatalf("Min = %g, want -3", got)
	}
	// raising the minimum must move it down the heap
	if st := hh.Insert(hypAt(3, 0)); st != Replaced {
		t.Fatalf("status %v, want replace", st)
	}
	if got := hh.Min(); got != -2 {
		t.Errorf("Min = %g, want -2", got)
	}
	if h, ok := hh.Lookup(hypAt(3, 0)); !ok || h.Prob.Final != 0 {
		t.Errorf("Lookup = %+v, %v", h.Prob, ok)
	}
}

func TestHypHeapPopUnlinks(t *testing.T) {
	hh, _ := NewHypHeap(2, math.Inf(1))
	hh.Insert(hypAt(1, -1))
	if _, ok := hh.Pop(); !ok {
		t.Fatal("Pop on a non-empty heap failed")
	}
	if _, ok := hh.Lookup(hypAt(1, -1)); ok {
		t.Error("popped hypothesis still found")
	}
	if st := hh.Insert(hypAt(1, -5)); st != Inserted {
		t.Errorf("reinsert status %v, want insert", st)
	}
	if !hh.Empty() && hh.Len() != 1 {
		t.Errorf("Len = %d", hh.Len())
	}
}

func TestHypHeapClear(t *testing.T) {
	hh, _ := NewHypHeap(2, 1)
	hh.Insert(hypAt(1, 10))
	hh.Clear()
	if !hh.Empty() || hh.Max() > -1e29 {
		t.Fatalf("Clear left Len=%d Max=%g", hh.Len(), hh.Max())
	}
	if st := hh.Insert(hypAt(1, -100)); st != Inserted {
		t.Errorf("beam survived Clear: %v", st)
	}
}
