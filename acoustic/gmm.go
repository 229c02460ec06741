package acoustic

import (
	"fmt"
	"math"

	"github.com/ieee0824/wordlattice/internal/mathutil"
)

// Gaussian represents a single multivariate Gaussian component with diagonal covariance.
type Gaussian struct {
	Mean      []float64 `msgpack:"mean"`
	Variance  []float64 `msgpack:"variance"`
	LogWeight float64   `msgpack:"log_weight"` // log mixture prior

	// gconst = dim*log(2π) + Σ log(variance), precomputed
	gconst      float64
	invVariance []float64
}

// Precompute recalculates the cached normalizer and inverse variances.
// Must be called after updating Mean or Variance.
func (g *Gaussian) Precompute() {
	g.gconst = float64(len(g.Mean)) * math.Log(2*math.Pi)
	g.invVariance = make([]float64, len(g.Variance))
	for i, v := range g.Variance {
		g.gconst += math.Log(v)
		g.invVariance[i] = 1.0 / v
	}
}

// LogProb computes the log density of observation x under this Gaussian.
func (g *Gaussian) LogProb(x []float64) float64 {
	if g.invVariance == nil {
		g.Precompute()
	}
	sum := g.gconst
	for i, m := range g.Mean {
		d := x[i] - m
		sum += d * d * g.invVariance[i]
	}
	return sum / -2
}

// GMM is a Gaussian mixture with diagonal covariance. It is the emission
// density of one tied HMM state.
type GMM struct {
	Components []Gaussian `msgpack:"components"`
	Dim        int        `msgpack:"dim"`
}

// NewGMMWithParams creates a GMM from given parameters.
func NewGMMWithParams(means, variances [][]float64, logWeights []float64) (*GMM, error) {
	if len(means) == 0 {
		return nil, fmt.Errorf("gmm: no components")
	}
	if len(variances) != len(means) || len(logWeights) != len(means) {
		return nil, fmt.Errorf("gmm: %d means, %d variances, %d weights", len(means), len(variances), len(logWeights))
	}
	dim := len(means[0])
	g := &GMM{Components: make([]Gaussian, len(means)), Dim: dim}
	for i := range g.Components {
		if len(means[i]) != dim || len(variances[i]) != dim {
			return nil, fmt.Errorf("gmm: component %d has dimension %d/%d, want %d", i, len(means[i]), len(variances[i]), dim)
		}
		for d, v := range variances[i] {
			if v <= 0 {
				return nil, fmt.Errorf("gmm: component %d variance[%d] = %g must be positive", i, d, v)
			}
		}
		g.Components[i] = Gaussian{
			Mean:      append([]float64(nil), means[i]...),
			Variance:  append([]float64(nil), variances[i]...),
			LogWeight: logWeights[i],
		}
		g.Components[i].Precompute()
	}
	return g, nil
}

// Precompute refreshes every component.
func (g *GMM) Precompute() {
	for i := range g.Components {
		g.Components[i].Precompute()
	}
}

// LogProb computes log P(x | this GMM) = log sum_k w_k * N(x; μ_k, σ_k).
func (g *GMM) LogProb(x []float64) float64 {
	logSum := mathutil.LogZero
	for i := range g.Components {
		logSum = mathutil.LogAdd(logSum, g.Components[i].LogWeight+g.Components[i].LogProb(x))
	}
	return logSum
}
