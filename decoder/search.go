package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ieee0824/wordlattice/acoustic"
	"github.com/ieee0824/wordlattice/feature"
	"github.com/ieee0824/wordlattice/internal/mathutil"
)

var (
	// ErrFeatureMismatch is returned when the feature width does not fit
	// the acoustic model.
	ErrFeatureMismatch = errors.New("decoder: feature dimension does not match the acoustic model")
	// ErrNoFrames is returned for an empty feature sequence.
	ErrNoFrames = errors.New("decoder: no feature frames")
)

// Search holds the private state of one decoding: two hypothesis heaps
// swapped every frame, the emission cache and the word visit marks. A
// Search is not safe for concurrent use; run one per goroutine.
type Search struct {
	d *Decoder

	heap     *HypHeap
	prevHeap *HypHeap

	emissions *acoustic.Emissions
	cache     [][]float64
	useCache  bool
	cacheFor  *feature.Features
	featType  feature.Type
	feat      []float64

	visit    []uint32
	visitGen uint32

	bestAc       float64
	earlyPruning bool
	nFrames      int

	stats  StatsSink
	cur    FrameStats
	ctx    context.Context
	logger *slog.Logger
}

// SearchOption configures a Search.
type SearchOption func(*Search)

// WithStatsSink reports per-frame statistics to sink.
func WithStatsSink(sink StatsSink) SearchOption {
	return func(s *Search) { s.stats = sink }
}

// WithEmissionCache keeps the emission table of every frame across Decode
// calls, so decoding the same utterance again skips the Gaussian
// evaluations already done. The cache belongs to one *feature.Features:
// Decode drops it when given another one. Vectors changed in place are not
// detected; call ClearEmissionCache after changing them.
func WithEmissionCache() SearchOption {
	return func(s *Search) { s.useCache = true }
}

// WithLogger sets the logger used for search warnings.
func WithLogger(l *slog.Logger) SearchOption {
	return func(s *Search) { s.logger = l }
}

// NewSearch creates a search over d.
func NewSearch(d *Decoder, opts ...SearchOption) (*Search, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	heap, err := NewHypHeap(d.Config.HistogramPruning, d.Config.Beam)
	if err != nil {
		return nil, err
	}
	prev, err := NewHypHeap(d.Config.HistogramPruning, d.Config.Beam)
	if err != nil {
		return nil, err
	}
	s := &Search{
		d:         d,
		heap:      heap,
		prevHeap:  prev,
		emissions: acoustic.NewEmissions(d.HMM),
		visit:     make([]uint32, d.Vocab.Len()),
		bestAc:    mathutil.LogZero,
		ctx:       context.Background(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Decoder returns the decoder the search runs on.
func (s *Search) Decoder() *Decoder { return s.d }

// Frames returns the number of frames processed by the last Decode.
func (s *Search) Frames() int { return s.nFrames }

// Reset prepares the search for a new decoding. The emission cache, when
// enabled, is kept.
func (s *Search) Reset() {
	s.heap.Clear()
	s.prevHeap.Clear()
	s.nFrames = 0
	s.bestAc = mathutil.LogZero
	s.earlyPruning = false
	if !s.useCache {
		s.emissions.Reset()
	}
}

// ClearEmissionCache drops the emission tables kept by WithEmissionCache.
func (s *Search) ClearEmissionCache() {
	s.cache = nil
	s.cacheFor = nil
}

// Decode runs the search over feats and returns the lattice. The context
// is checked between frames.
func (s *Search) Decode(ctx context.Context, feats *feature.Features) (*Lattice, error) {
	if err := feats.Validate(); err != nil {
		return nil, err
	}
	if feats.Len() == 0 {
		return nil, ErrNoFrames
	}
	switch feats.Type {
	case feature.EmissionProbabilities:
		if feats.Dim() != s.d.HMM.NumStates() {
			return nil, fmt.Errorf("%w: %d emission values per frame, %d tied states", ErrFeatureMismatch, feats.Dim(), s.d.HMM.NumStates())
		}
	default:
		if feats.Dim() != s.d.HMM.Dim {
			return nil, fmt.Errorf("%w: dimension %d, model dimension %d", ErrFeatureMismatch, feats.Dim(), s.d.HMM.Dim)
		}
	}

	if s.useCache && s.cacheFor != feats {
		s.ClearEmissionCache()
		s.cacheFor = feats
	}
	s.Reset()
	s.ctx = ctx
	s.featType = feats.Type
	cfg := s.d.Config
	lat := NewLattice(cfg.NBest, cfg.NNode)

	s.initialStage(lat, feats.Vectors[0])
	for s.nFrames < feats.Len() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.viterbiFrame(lat, feats.Vectors[s.nFrames])
	}
	s.endStage(lat)
	return lat, nil
}

// startFrame swaps the heaps and prepares the emission table of the frame.
func (s *Search) startFrame(lat *Lattice, vec []float64) {
	s.nFrames++
	s.prevHeap.Clear()
	s.heap, s.prevHeap = s.prevHeap, s.heap
	lat.StartFrame()

	s.cur = FrameStats{Frame: s.nFrames - 1, HeapCapacity: s.heap.Cap(), Beam: s.heap.Beam()}

	if s.useCache {
		for len(s.cache) < s.nFrames {
			table := make([]float64, s.d.HMM.NumStates())
			mathutil.FillVec(table, mathutil.LogZero)
			s.cache = append(s.cache, table)
		}
		s.emissions.Swap(s.cache[s.nFrames-1])
	} else if s.featType != feature.EmissionProbabilities {
		s.emissions.Reset()
	}
	if s.featType == feature.EmissionProbabilities {
		s.emissions.Use(vec)
	}
	s.feat = vec
	s.bestAc = mathutil.LogZero
	s.earlyPruning = false
}

// endFrame reports the frame statistics.
func (s *Search) endFrame(lat *Lattice) {
	if s.stats == nil {
		return
	}
	s.cur.HeapSize = s.heap.Len()
	s.cur.Max = s.heap.Max()
	s.cur.Min = s.heap.Min()
	s.cur.Limit = s.heap.Limit()
	s.cur.EarlyPruning = s.earlyPruning
	s.cur.LatticeStates = len(lat.FrameStates())
	s.stats.RecordFrameStats(s.ctx, s.cur)
}

// computeBestAc takes the best emission computed in the frame as the bound
// for early pruning. Pruning is off when nothing was computed.
func (s *Search) computeBestAc() {
	s.bestAc = s.emissions.Best()
	s.earlyPruning = s.d.Config.EarlyPruning && !mathutil.IsLogZero(s.bestAc)
}

func (s *Search) emission(h *Hyp) float64 {
	tied := s.d.HMM.Phonemes[h.Phoneme].TiedState(h.HMMState)
	if s.featType == feature.EmissionProbabilities {
		return s.emissions.Table()[tied]
	}
	return s.emissions.Prob(tied, s.feat)
}

func (s *Search) insert(level Level, h *Hyp) InsertStatus {
	st := s.heap.Insert(h)
	s.cur.Inserts[level][st]++
	return st
}

// nextVisit starts a new set of visited words and returns its mark.
func (s *Search) nextVisit() uint32 {
	s.visitGen++
	if s.visitGen == 0 {
		clear(s.visit)
		s.visitGen = 1
	}
	return s.visitGen
}

// visited marks word with gen and reports whether it already carried it.
// Words are only marked when mark is true.
func (s *Search) visited(word int, gen uint32, mark bool) bool {
	if word >= len(s.visit) {
		s.visit = append(s.visit, make([]uint32, word+1-len(s.visit))...)
	}
	if s.visit[word] == gen {
		return true
	}
	if mark {
		s.visit[word] = gen
	}
	return false
}
