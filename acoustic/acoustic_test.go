package acoustic

import (
	"bytes"
	"math"
	"testing"

	"github.com/ieee0824/wordlattice/internal/mathutil"
)

func mustGMM(t *testing.T, means, variances [][]float64, logWeights []float64) *GMM {
	t.Helper()
	g, err := NewGMMWithParams(means, variances, logWeights)
	if err != nil {
		t.Fatalf("NewGMMWithParams: %v", err)
	}
	return g
}

func TestGaussianLogProb(t *testing.T) {
	g := Gaussian{
		Mean:     []float64{0.0},
		Variance: []float64{1.0},
	}
	g.Precompute()

	// Standard normal at x=0: log(1/sqrt(2π)) ≈ -0.9189
	lp := g.LogProb([]float64{0.0})
	expected := -0.5 * math.Log(2*math.Pi)
	if math.Abs(lp-expected) > 1e-9 {
		t.Errorf("LogProb(0) = %f, want %f", lp, expected)
	}

	lp5 := g.LogProb([]float64{5.0})
	if want := expected - 12.5; math.Abs(lp5-want) > 1e-9 {
		t.Errorf("LogProb(5) = %f, want %f", lp5, want)
	}
}

func TestGaussianDiagonal(t *testing.T) {
	g := Gaussian{Mean: []float64{1, -1}, Variance: []float64{2, 0.5}}
	x := []float64{2, 0}
	// -(2 log 2π + log 2 + log 0.5 + 1/2 + 1/0.5) / 2
	want := -(2*math.Log(2*math.Pi) + 0.5 + 2) / 2
	if got := g.LogProb(x); math.Abs(got-want) > 1e-9 {
		t.Errorf("LogProb = %f, want %f", got, want)
	}
}

func TestGMMLogProb(t *testing.T) {
	gmm := mustGMM(t,
		[][]float64{{0.0}, {5.0}},
		[][]float64{{1.0}, {1.0}},
		[]float64{math.Log(0.5), math.Log(0.5)},
	)

	lp0 := gmm.LogProb([]float64{0.0})
	lp25 := gmm.LogProb([]float64{2.5})
	lp5 := gmm.LogProb([]float64{5.0})
	if math.Abs(lp0-lp5) > 1e-9 {
		t.Errorf("symmetric mixture: LogProb(0) = %f, LogProb(5) = %f", lp0, lp5)
	}
	if lp25 >= lp0 {
		t.Errorf("LogProb(2.5) = %f should be below the component peaks %f", lp25, lp0)
	}

	single := Gaussian{Mean: []float64{0}, Variance: []float64{1}}
	want := mathutil.LogAdd(math.Log(0.5)+single.LogProb([]float64{0}), math.Log(0.5)+(-0.5*math.Log(2*math.Pi)-12.5))
	if math.Abs(lp0-want) > 1e-9 {
		t.Errorf("LogProb(0) = %f, want %f", lp0, want)
	}
}

func TestNewGMMWithParamsErrors(t *testing.T) {
	tests := []struct {
		name      string
		means     [][]float64
		variances [][]float64
		weights   []float64
	}{
		{"empty", nil, nil, nil},
		{"count mismatch", [][]float64{{0}}, [][]float64{{1}, {1}}, []float64{0}},
		{"dim mismatch", [][]float64{{0}, {0, 1}}, [][]float64{{1}, {1, 1}}, []float64{0, 0}},
		{"zero variance", [][]float64{{0}}, [][]float64{{0}}, []float64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGMMWithParams(tt.means, tt.variances, tt.weights); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewLeftToRight(t *testing.T) {
	h := NewLeftToRight("a", []int{0, 1, 2})
	if h.NumTransitions() != 5 {
		t.Fatalf("NumTransitions = %d, want 5", h.NumTransitions())
	}
	if h.Transition(-1, 1) != 0 {
		t.Errorf("entry -> first state = %f, want 0", h.Transition(-1, 1))
	}
	if !mathutil.IsLogZero(h.Transition(-1, 2)) {
		t.Error("entry should only reach the first state")
	}
	if h.CanExit(0) || h.CanExit(1) || !h.CanExit(2) {
		t.Error("only the last emitting state reaches the exit")
	}
	if math.Abs(h.ExitProb(2)-math.Log(0.5)) > 1e-12 {
		t.Errorf("ExitProb(2) = %f", h.ExitProb(2))
	}
}

func TestNewPhonemeHMMValidates(t *testing.T) {
	if _, err := NewPhonemeHMM("x", []int{0}, mathutil.NewMat(2, 2)); err == nil {
		t.Error("expected error for 2x2 matrix with one emitting state")
	}
	if _, err := NewPhonemeHMM("x", nil, mathutil.NewMat(2, 2)); err == nil {
		t.Error("expected error for no emitting states")
	}
	if _, err := NewPhonemeHMM("x", []int{0}, mathutil.NewMat(3, 3)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func buildTinyModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel(1)
	for _, mean := range []float64{0, 5} {
		if _, err := m.AddState(mustGMM(t, [][]float64{{mean}}, [][]float64{{0.5}}, []float64{0})); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.AddPhoneme(NewLeftToRight("a", []int{0})); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddPhoneme(NewLeftToRight("i", []int{1})); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestModelAddPhonemeErrors(t *testing.T) {
	m := buildTinyModel(t)
	if _, err := m.AddPhoneme(NewLeftToRight("a", []int{0})); err == nil {
		t.Error("duplicate phoneme should fail")
	}
	if _, err := m.AddPhoneme(NewLeftToRight("u", []int{7})); err == nil {
		t.Error("unknown tied state should fail")
	}
	if _, err := m.AddState(mustGMM(t, [][]float64{{0, 0}}, [][]float64{{1, 1}}, []float64{0})); err == nil {
		t.Error("dimension mismatch should fail")
	}
	if m.PhonemeID("i") != 1 || m.PhonemeID("zz") != -1 {
		t.Error("PhonemeID lookup mismatch")
	}
}

func TestModelSaveLoad(t *testing.T) {
	m := buildTinyModel(t)
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NumStates() != 2 || len(loaded.Phonemes) != 2 || loaded.Dim != 1 {
		t.Fatalf("loaded model shape: %d states, %d phonemes, dim %d", loaded.NumStates(), len(loaded.Phonemes), loaded.Dim)
	}
	x := []float64{4.2}
	for s := range m.States {
		if a, b := m.States[s].LogProb(x), loaded.States[s].LogProb(x); math.Abs(a-b) > 1e-12 {
			t.Errorf("state %d: LogProb %f != %f", s, a, b)
		}
	}
	if loaded.PhonemeID("i") != 1 {
		t.Errorf("PhonemeID(i) = %d after load", loaded.PhonemeID("i"))
	}
}

func TestEmissionsComputeOnce(t *testing.T) {
	m := buildTinyModel(t)
	e := NewEmissions(m)
	if !mathutil.IsLogZero(e.Best()) {
		t.Fatal("fresh cache should have no best value")
	}
	x := []float64{0}
	p := e.Prob(0, x)
	if want := m.States[0].LogProb(x); p != want {
		t.Errorf("Prob = %f, want %f", p, want)
	}
	// Cached: a different observation does not change the stored value.
	if again := e.Prob(0, []float64{5}); again != p {
		t.Errorf("cached Prob = %f, want %f", again, p)
	}
	if e.Best() != p {
		t.Errorf("Best = %f, want %f", e.Best(), p)
	}
	e.Reset()
	if !mathutil.IsLogZero(e.Best()) {
		t.Error("Reset should clear the cache")
	}
	e.Use([]float64{-1, -2})
	if e.Prob(1, x) != -2 {
		t.Errorf("precomputed Prob = %f, want -2", e.Prob(1, x))
	}
}
