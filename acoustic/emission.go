package acoustic

import "github.com/ieee0824/wordlattice/internal/mathutil"

// Emissions caches the emission log-probabilities of one frame, one slot
// per tied state. A slot holding LogZero has not been computed yet.
type Emissions struct {
	model *Model
	probs []float64
}

// NewEmissions creates an empty cache for model.
func NewEmissions(model *Model) *Emissions {
	e := &Emissions{model: model, probs: make([]float64, model.NumStates())}
	e.Reset()
	return e
}

// Reset forgets every computed value.
func (e *Emissions) Reset() {
	mathutil.FillVec(e.probs, mathutil.LogZero)
}

// Use replaces the cache contents with precomputed per-state values.
func (e *Emissions) Use(probs []float64) {
	copy(e.probs, probs)
}

// Table exposes the backing slice so a caller can keep it per frame.
func (e *Emissions) Table() []float64 { return e.probs }

// Swap installs table as the backing slice and returns the previous one.
func (e *Emissions) Swap(table []float64) []float64 {
	old := e.probs
	e.probs = table
	return old
}

// Prob returns the emission log-probability of tied state for x,
// computing it on first use within the frame.
func (e *Emissions) Prob(state int, x []float64) float64 {
	if mathutil.IsLogZero(e.probs[state]) {
		e.probs[state] = e.model.States[state].LogProb(x)
	}
	return e.probs[state]
}

// Best returns the largest value computed so far, or LogZero.
func (e *Emissions) Best() float64 {
	return mathutil.MaxVec(e.probs)
}
