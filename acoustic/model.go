package acoustic

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Model holds the phoneme HMMs and the tied emission densities they share.
// It is read-only once built and may be shared by concurrent searches.
type Model struct {
	Phonemes []*PhonemeHMM `msgpack:"phonemes"`
	States   []*GMM        `msgpack:"states"`
	Dim      int           `msgpack:"dim"`

	index map[string]int
}

// NewModel creates an empty acoustic model for features of dimension dim.
func NewModel(dim int) *Model {
	return &Model{Dim: dim, index: make(map[string]int)}
}

// AddState registers a tied emission density and returns its id.
func (m *Model) AddState(g *GMM) (int, error) {
	if g.Dim != m.Dim {
		return -1, fmt.Errorf("acoustic: state dimension %d, model dimension %d", g.Dim, m.Dim)
	}
	m.States = append(m.States, g)
	return len(m.States) - 1, nil
}

// AddPhoneme registers a phoneme HMM and returns its id.
func (m *Model) AddPhoneme(h *PhonemeHMM) (int, error) {
	if err := h.validate(); err != nil {
		return -1, err
	}
	if _, ok := m.index[h.Name]; ok {
		return -1, fmt.Errorf("acoustic: duplicate phoneme %q", h.Name)
	}
	for _, s := range h.States {
		if s < 0 || s >= len(m.States) {
			return -1, fmt.Errorf("acoustic: phoneme %q references unknown state %d", h.Name, s)
		}
	}
	m.Phonemes = append(m.Phonemes, h)
	m.index[h.Name] = len(m.Phonemes) - 1
	return len(m.Phonemes) - 1, nil
}

// PhonemeID returns the id of the named phoneme, or -1.
func (m *Model) PhonemeID(name string) int {
	if id, ok := m.index[name]; ok {
		return id
	}
	return -1
}

// NumStates returns the number of tied emission densities.
func (m *Model) NumStates() int { return len(m.States) }

// Save serializes the model to a writer using msgpack encoding.
func (m *Model) Save(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(m)
}

// Load deserializes and validates an acoustic model from a reader.
func Load(r io.Reader) (*Model, error) {
	var raw Model
	if err := msgpack.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("acoustic: decode: %w", err)
	}
	m := NewModel(raw.Dim)
	for i, g := range raw.States {
		g.Precompute()
		if _, err := m.AddState(g); err != nil {
			return nil, fmt.Errorf("acoustic: state %d: %w", i, err)
		}
	}
	for _, h := range raw.Phonemes {
		if _, err := m.AddPhoneme(h); err != nil {
			return nil, err
		}
	}
	return m, nil
}
