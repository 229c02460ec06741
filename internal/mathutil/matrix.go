package mathutil

// Mat is a 2D float64 matrix stored as row-major [][]float64.
type Mat = [][]float64

// NewMat creates a rows x cols matrix initialized to zero.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols]
	}
	return m
}

// NewMatFill creates a rows x cols matrix filled with val.
func NewMatFill(rows, cols int, val float64) Mat {
	m := NewMat(rows, cols)
	for i := range m {
		FillVec(m[i], val)
	}
	return m
}

// FillVec fills all elements of an existing vector with val.
func FillVec(v []float64, val float64) {
	for i := range v {
		v[i] = val
	}
}

// MaxVec returns the largest element of v, or LogZero when v is empty.
func MaxVec(v []float64) float64 {
	best := LogZero
	for _, x := range v {
		if x > best {
			best = x
		}
	}
	return best
}
