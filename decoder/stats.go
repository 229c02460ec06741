package decoder

import "context"

// Level is the expansion step a hypothesis was produced by.
type Level uint8

const (
	LevelHMM Level = iota
	LevelLex
	LevelWord
	numLevels
)

func (l Level) String() string {
	switch l {
	case LevelHMM:
		return "hmm"
	case LevelLex:
		return "lex"
	case LevelWord:
		return "word"
	}
	return "unknown"
}

const numStatus = int(Replaced) + 1

// FrameStats summarises one frame of the search.
type FrameStats struct {
	Frame        int
	HeapSize     int
	HeapCapacity int
	Max          float64
	Min          float64
	Limit        float64
	Beam         float64
	EarlyPruning bool

	// Inserts counts heap insert outcomes per expansion level.
	Inserts [numLevels][numStatus]int

	WordHyps      int // word ends sent to the lattice
	LatticeStates int // lattice states created in the frame
	Expanded      int // word transitions tried
	Accepted      int // word transitions kept
}

// Count returns the number of inserts at level with status st.
func (s *FrameStats) Count(level Level, st InsertStatus) int {
	return s.Inserts[level][st]
}

// StatsSink receives per-frame statistics from a search.
type StatsSink interface {
	RecordFrameStats(ctx context.Context, s FrameStats)
}
