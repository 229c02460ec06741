package decoder

import (
	"errors"
	"fmt"
	"math"
)

// Config holds the search parameters.
type Config struct {
	Beam             float64 // log-domain beam width, +Inf disables beam pruning
	HistogramPruning int     // maximum number of live hypotheses per frame
	GSF              float64 // grammar scale factor
	WIP              float64 // word insertion penalty
	GSFIn            float64 // input grammar scale factor
	GSFOut           float64 // output grammar scale factor
	WIPOut           float64 // output word insertion penalty
	EarlyPruning     bool
	NBest            int // edges kept into the final lattice node, 0 keeps all
	NNode            int // edges kept per lattice state, -1 uses NBest
}

// DefaultConfig returns the usual search parameters.
func DefaultConfig() Config {
	return Config{
		Beam:             math.Inf(1),
		HistogramPruning: 10000,
		GSF:              1,
		WIP:              0,
		GSFIn:            1,
		GSFOut:           1,
		WIPOut:           0,
		EarlyPruning:     true,
		NBest:            1,
		NNode:            -1,
	}
}

// Validate checks the parameters that gate the search.
func (c Config) Validate() error {
	var errs []error
	if c.HistogramPruning < 1 {
		errs = append(errs, fmt.Errorf("%w: histogram pruning %d", ErrNoCapacity, c.HistogramPruning))
	}
	if math.IsNaN(c.Beam) || c.Beam < 0 {
		errs = append(errs, fmt.Errorf("decoder: beam must be non-negative, got %g", c.Beam))
	}
	if c.NBest < 0 {
		errs = append(errs, fmt.Errorf("decoder: nbest must be non-negative, got %d", c.NBest))
	}
	if c.NNode < -1 {
		errs = append(errs, fmt.Errorf("decoder: nnode must be -1 or more, got %d", c.NNode))
	}
	return errors.Join(errs...)
}
