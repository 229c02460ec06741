// Package feature holds the observation sequences fed to the decoder: raw
// feature vectors scored by the acoustic model, or emission
// log-probabilities computed elsewhere, one value per tied state.
package feature

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// Type tells the decoder how to read a feature vector.
type Type uint8

const (
	// Raw vectors are scored against the Gaussian mixtures.
	Raw Type = iota
	// EmissionProbabilities vectors hold one log-probability per tied state.
	EmissionProbabilities
)

func (t Type) String() string {
	switch t {
	case Raw:
		return "raw"
	case EmissionProbabilities:
		return "emission"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ErrRagged is returned when the vectors of a sequence differ in width.
var ErrRagged = errors.New("feature: vectors differ in dimension")

// Features is one utterance worth of observations.
type Features struct {
	Type    Type        `msgpack:"type"`
	Vectors [][]float64 `msgpack:"vectors"`
}

// New wraps vectors of the given type.
func New(typ Type, vectors [][]float64) *Features {
	return &Features{Type: typ, Vectors: vectors}
}

// Len returns the number of frames.
func (f *Features) Len() int { return len(f.Vectors) }

// Dim returns the vector width, or 0 for an empty sequence.
func (f *Features) Dim() int {
	if len(f.Vectors) == 0 {
		return 0
	}
	return len(f.Vectors[0])
}

// Validate checks the type and that every vector has the same width.
func (f *Features) Validate() error {
	if f.Type > EmissionProbabilities {
		return fmt.Errorf("feature: unknown type %d", f.Type)
	}
	dim := f.Dim()
	for t, v := range f.Vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: frame %d has %d values, frame 0 has %d", ErrRagged, t, len(v), dim)
		}
	}
	return nil
}

// Save writes the sequence with msgpack.
func (f *Features) Save(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(f)
}

// Load reads and validates a sequence written by Save.
func Load(r io.Reader) (*Features, error) {
	var f Features
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("feature: decode: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Features, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Load(fh)
}

// SaveFile writes the sequence to path.
func (f *Features) SaveFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Save(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
