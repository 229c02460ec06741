package mathutil

import "math"

// LogZero represents log(0). Sums that start from LogZero stay far below
// any real log-probability, so they are recognised with IsLogZero rather
// than by equality.
const LogZero = -1e30

// LogOne is log(1).
const LogOne = 0.0

// IsLogZero reports whether x is (an accumulation of) LogZero.
func IsLogZero(x float64) bool {
	return x <= LogZero/2
}

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Uses threshold-based early exit to skip expensive exp/log1p when the
// smaller value contributes less than float64 precision (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if b > a {
		a, b = b, a
	}
	if IsLogZero(b) {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// LogSub returns log(exp(a) - exp(b)), assuming a > b.
func LogSub(a, b float64) float64 {
	if IsLogZero(b) {
		return a
	}
	if a <= b {
		return LogZero
	}
	return a + math.Log1p(-math.Exp(b-a))
}

// Log converts a linear probability to the log domain, mapping 0 to LogZero.
func Log(p float64) float64 {
	if p <= 0 {
		return LogZero
	}
	return math.Log(p)
}
