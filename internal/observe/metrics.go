// Package observe records search statistics through the OpenTelemetry
// Metrics API. A package-level default [Metrics] instance ([DefaultMetrics])
// uses the global meter provider; tests should use [NewMetrics] with their
// own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ieee0824/wordlattice/decoder"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/ieee0824/wordlattice"

// Metrics holds the metric instruments of the recognizer. It implements
// [decoder.StatsSink]. All fields are safe for concurrent use.
type Metrics struct {
	// --- Per frame ---

	// Frames counts decoded frames.
	Frames metric.Int64Counter

	// HeapSize records the number of live hypotheses at the end of a frame.
	HeapSize metric.Int64Histogram

	// Inserts counts hypothesis heap inserts. Attributes:
	//   attribute.String("level", ...), attribute.String("status", ...)
	Inserts metric.Int64Counter

	// WordHyps counts word ends sent to the lattice.
	WordHyps metric.Int64Counter

	// LatticeStates counts lattice states created.
	LatticeStates metric.Int64Counter

	// WordExpansions counts word transitions. Attribute:
	//   attribute.Bool("accepted", ...)
	WordExpansions metric.Int64Counter

	// EarlyPruningFrames counts frames where the early pruning bound was active.
	EarlyPruningFrames metric.Int64Counter

	// --- Per utterance ---

	// DecodeDuration tracks the wall time of one decoding.
	DecodeDuration metric.Float64Histogram

	// PartialDecodings counts utterances no hypothesis could complete.
	PartialDecodings metric.Int64Counter

	// DecodeErrors counts failed decodings.
	DecodeErrors metric.Int64Counter
}

var _ decoder.StatsSink = (*Metrics)(nil)

// heapBuckets covers histogram pruning bounds up to the usual 10000.
var heapBuckets = []float64{
	10, 50, 100, 250, 500, 1000, 2500, 5000, 10000,
}

var durationBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Frames, err = m.Int64Counter("wordlattice.search.frames",
		metric.WithDescription("Total decoded frames."),
	); err != nil {
		return nil, err
	}
	if met.HeapSize, err = m.Int64Histogram("wordlattice.search.heap_size",
		metric.WithDescription("Live hypotheses at the end of a frame."),
		metric.WithExplicitBucketBoundaries(heapBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Inserts, err = m.Int64Counter("wordlattice.search.inserts",
		metric.WithDescription("Hypothesis heap inserts by expansion level and outcome."),
	); err != nil {
		return nil, err
	}
	if met.WordHyps, err = m.Int64Counter("wordlattice.search.word_hyps",
		metric.WithDescription("Word ends recorded in the lattice."),
	); err != nil {
		return nil, err
	}
	if met.LatticeStates, err = m.Int64Counter("wordlattice.search.lattice_states",
		metric.WithDescription("Lattice states created."),
	); err != nil {
		return nil, err
	}
	if met.WordExpansions, err = m.Int64Counter("wordlattice.search.word_expansions",
		metric.WithDescription("Word transitions tried, by whether the heap kept them."),
	); err != nil {
		return nil, err
	}
	if met.EarlyPruningFrames, err = m.Int64Counter("wordlattice.search.early_pruning_frames",
		metric.WithDescription("Frames decoded with the early pruning bound active."),
	); err != nil {
		return nil, err
	}

	if met.DecodeDuration, err = m.Float64Histogram("wordlattice.decode.duration",
		metric.WithDescription("Wall time of one decoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PartialDecodings, err = m.Int64Counter("wordlattice.decode.partial",
		metric.WithDescription("Utterances decoded without reaching a grammar end."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("wordlattice.decode.errors",
		metric.WithDescription("Failed decodings."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrameStats implements [decoder.StatsSink].
func (m *Metrics) RecordFrameStats(ctx context.Context, s decoder.FrameStats) {
	m.Frames.Add(ctx, 1)
	m.HeapSize.Record(ctx, int64(s.HeapSize))
	for level := decoder.LevelHMM; level <= decoder.LevelWord; level++ {
		for st := decoder.RejectBeam; st <= decoder.Replaced; st++ {
			n := s.Count(level, st)
			if n == 0 {
				continue
			}
			m.Inserts.Add(ctx, int64(n), metric.WithAttributes(
				attribute.String("level", level.String()),
				attribute.String("status", st.String()),
			))
		}
	}
	if s.WordHyps > 0 {
		m.WordHyps.Add(ctx, int64(s.WordHyps))
	}
	if s.LatticeStates > 0 {
		m.LatticeStates.Add(ctx, int64(s.LatticeStates))
	}
	if s.Accepted > 0 {
		m.WordExpansions.Add(ctx, int64(s.Accepted), metric.WithAttributes(attribute.Bool("accepted", true)))
	}
	if rejected := s.Expanded - s.Accepted; rejected > 0 {
		m.WordExpansions.Add(ctx, int64(rejected), metric.WithAttributes(attribute.Bool("accepted", false)))
	}
	if s.EarlyPruning {
		m.EarlyPruningFrames.Add(ctx, 1)
	}
}

// RecordDecode records the outcome of one decoding.
func (m *Metrics) RecordDecode(ctx context.Context, seconds float64, partial bool, err error) {
	if err != nil {
		m.DecodeErrors.Add(ctx, 1)
		return
	}
	m.DecodeDuration.Record(ctx, seconds)
	if partial {
		m.PartialDecodings.Add(ctx, 1)
	}
}
