package feature

// ApplyCMN subtracts the utterance mean from every dimension of raw vectors
// in place. Emission probabilities are left untouched.
func (f *Features) ApplyCMN() {
	if f.Type != Raw || f.Len() == 0 {
		return
	}
	dim := f.Dim()
	mean := make([]float64, dim)
	for _, v := range f.Vectors {
		for d := range mean {
			mean[d] += v[d]
		}
	}
	inv := 1.0 / float64(f.Len())
	for d := range mean {
		mean[d] *= inv
	}
	for _, v := range f.Vectors {
		for d := range mean {
			v[d] -= mean[d]
		}
	}
}

// Delta computes regression coefficients over a window of n frames on each
// side, clamping at the utterance edges.
func Delta(vectors [][]float64, n int) [][]float64 {
	T := len(vectors)
	if T == 0 {
		return nil
	}
	dim := len(vectors[0])
	denom := 0.0
	for k := 1; k <= n; k++ {
		denom += float64(k * k)
	}
	denom *= 2

	out := make([][]float64, T)
	buf := make([]float64, T*dim)
	for t := range vectors {
		out[t] = buf[t*dim : (t+1)*dim]
		for d := 0; d < dim; d++ {
			num := 0.0
			for k := 1; k <= n; k++ {
				next := min(t+k, T-1)
				prev := max(t-k, 0)
				num += float64(k) * (vectors[next][d] - vectors[prev][d])
			}
			out[t][d] = num / denom
		}
	}
	return out
}

// WithDeltas returns a copy of raw vectors extended with delta and
// delta-delta columns, tripling the dimension.
func (f *Features) WithDeltas(window int) *Features {
	if f.Type != Raw || f.Len() == 0 {
		return f
	}
	d1 := Delta(f.Vectors, window)
	d2 := Delta(d1, window)
	dim := f.Dim()
	out := make([][]float64, f.Len())
	buf := make([]float64, f.Len()*dim*3)
	for t, v := range f.Vectors {
		row := buf[t*dim*3 : (t+1)*dim*3]
		copy(row[:dim], v)
		copy(row[dim:2*dim], d1[t])
		copy(row[2*dim:], d2[t])
		out[t] = row
	}
	return &Features{Type: Raw, Vectors: out}
}
