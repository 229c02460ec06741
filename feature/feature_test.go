package feature

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		f       *Features
		wantErr error
	}{
		{"empty", New(Raw, nil), nil},
		{"square", New(EmissionProbabilities, [][]float64{{1, 2}, {3, 4}}), nil},
		{"ragged", New(Raw, [][]float64{{1, 2}, {3}}), ErrRagged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if err := (&Features{Type: 9}).Validate(); err == nil {
		t.Error("unknown type accepted")
	}
}

func TestSaveLoad(t *testing.T) {
	f := New(EmissionProbabilities, [][]float64{{-1, -2.5}, {-0.25, -8}})
	var buf bytes.Buffer
	if err := f.Save(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != EmissionProbabilities || got.Len() != 2 || got.Dim() != 2 || got.Vectors[1][1] != -8 {
		t.Errorf("loaded %+v", got)
	}
}

func TestLoadRejectsRagged(t *testing.T) {
	var buf bytes.Buffer
	if err := New(Raw, [][]float64{{1}, {1, 2}}).Save(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(&buf); !errors.Is(err, ErrRagged) {
		t.Errorf("Load = %v, want ErrRagged", err)
	}
}

func TestApplyCMN(t *testing.T) {
	f := New(Raw, [][]float64{{1, 10}, {3, 20}})
	f.ApplyCMN()
	want := [][]float64{{-1, -5}, {1, 5}}
	for i := range want {
		for d := range want[i] {
			if math.Abs(f.Vectors[i][d]-want[i][d]) > 1e-12 {
				t.Errorf("frame %d dim %d = %f, want %f", i, d, f.Vectors[i][d], want[i][d])
			}
		}
	}

	e := New(EmissionProbabilities, [][]float64{{-1}, {-3}})
	e.ApplyCMN()
	if e.Vectors[0][0] != -1 {
		t.Error("emission probabilities must not be normalized")
	}
}

func TestDelta(t *testing.T) {
	// a linear ramp has a constant slope away from the edges
	ramp := make([][]float64, 9)
	for i := range ramp {
		ramp[i] = []float64{float64(i)}
	}
	d := Delta(ramp, 2)
	for i := 2; i < 7; i++ {
		if math.Abs(d[i][0]-1) > 1e-12 {
			t.Errorf("delta[%d] = %f, want 1", i, d[i][0])
		}
	}
	if Delta(nil, 2) != nil {
		t.Error("Delta(nil) should be nil")
	}
}

func TestWithDeltas(t *testing.T) {
	f := New(Raw, [][]float64{{1, 2}, {2, 3}, {3, 4}})
	g := f.WithDeltas(2)
	if g.Dim() != 6 || g.Len() != 3 {
		t.Fatalf("dims %dx%d", g.Len(), g.Dim())
	}
	if g.Vectors[1][0] != 2 || g.Vectors[1][1] != 3 {
		t.Errorf("static part not copied: %v", g.Vectors[1])
	}
	if f.Dim() != 2 {
		t.Error("WithDeltas modified its receiver")
	}
}
