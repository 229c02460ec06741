package wordlattice

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ieee0824/wordlattice/acoustic"
	"github.com/ieee0824/wordlattice/config"
	"github.com/ieee0824/wordlattice/decoder"
	"github.com/ieee0824/wordlattice/feature"
	"github.com/ieee0824/wordlattice/internal/observe"
	"github.com/ieee0824/wordlattice/internal/store"
)

const testARPA = `\data\
ngram 1=4
ngram 2=3

\1-grams:
-1.0	</s>
-99	<s>	0
-0.5	a	0
-0.5	b	0

\2-grams:
-0.30103	<s>	a
-0.30103	a	b
0	b	</s>
\end\
`

// writeTinyModels writes a two-word model set: words a and b, one phoneme
// each with a single emitting state.
func writeTinyModels(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	am := acoustic.NewModel(1)
	for i, p := range []string{"a", "b"} {
		g, err := acoustic.NewGMMWithParams([][]float64{{5 * float64(i)}}, [][]float64{{1}}, []float64{0})
		if err != nil {
			t.Fatal(err)
		}
		s, err := am.AddState(g)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := am.AddPhoneme(acoustic.NewLeftToRight(p, []int{s})); err != nil {
			t.Fatal(err)
		}
	}
	hmmPath := filepath.Join(dir, "am.msgpack")
	f, err := os.Create(hmmPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Save(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	cfg := config.Default()
	cfg.Models.HMM = hmmPath
	cfg.Models.Lexicon = write("words.dict", "a\ta\nb\tb\n")
	cfg.Models.Grammar = write("lm.arpa", testARPA)
	if err := config.Validate(cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func frames(pattern string) *feature.Features {
	var vecs [][]float64
	for _, c := range pattern {
		v := []float64{-10, -10}
		v[c-'a'] = 0
		vecs = append(vecs, v)
	}
	return feature.New(feature.EmissionProbabilities, vecs)
}

func TestRecognizerDecode(t *testing.T) {
	cfg := writeTinyModels(t)
	r, err := NewRecognizer(cfg)
	if err != nil {
		t.Fatalf("NewRecognizer: %v", err)
	}
	defer r.Close()

	u, err := r.Decode(context.Background(), "utt", frames("aabb"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if u.Result.Text != "a b" {
		t.Errorf("Text = %q, want %q", u.Result.Text, "a b")
	}
	if u.Name != "utt" || u.Lattice == nil {
		t.Errorf("utterance = %+v", u)
	}
}

func TestRecognizerDecodeBatch(t *testing.T) {
	cfg := writeTinyModels(t)
	cfg.Batch.Workers = 2
	cfg.Store.InMemory = true

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	r, err := NewRecognizer(cfg, WithMetrics(m))
	if err != nil {
		t.Fatalf("NewRecognizer: %v", err)
	}
	defer r.Close()

	inputs := []Input{
		{Name: "one", Features: frames("aabb")},
		{Name: "two", Features: frames("aaaa")},
		{Name: "three", Features: frames("aabb")},
	}
	got, err := r.DecodeBatch(context.Background(), inputs)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	want := []string{"a b", "a", "a b"}
	for i, u := range got {
		if u.Name != inputs[i].Name || u.Result.Text != want[i] {
			t.Errorf("result %d = %q %q, want %q %q", i, u.Name, u.Result.Text, inputs[i].Name, want[i])
		}
	}

	stored := 0
	for rec, err := range r.Store.List(context.Background()) {
		if err != nil {
			t.Fatal(err)
		}
		if rec.Lattice == nil || rec.Result == nil {
			t.Errorf("incomplete record %s", rec.ID)
		}
		stored++
	}
	if stored != len(inputs) {
		t.Errorf("stored %d records, want %d", stored, len(inputs))
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var frameCount int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "wordlattice.search.frames" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				frameCount += dp.Value
			}
		}
	}
	if frameCount != 12 {
		t.Errorf("frames recorded = %d, want 12", frameCount)
	}
}

func TestRecognizerDecodeError(t *testing.T) {
	cfg := writeTinyModels(t)
	r, err := NewRecognizer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	inputs := []Input{
		{Name: "ok", Features: frames("aabb")},
		{Name: "bad", Features: feature.New(feature.EmissionProbabilities, [][]float64{{0, 0, 0}})},
	}
	if _, err := r.DecodeBatch(context.Background(), inputs); err == nil {
		t.Error("batch with a mismatched input succeeded")
	}
}

func TestNewRecognizerFromModelsInvalid(t *testing.T) {
	if _, err := NewRecognizerFromModels(&decoder.Decoder{}); err == nil {
		t.Error("empty decoder accepted")
	}
}

func TestRecognizerSharedStore(t *testing.T) {
	cfg := writeTinyModels(t)
	s, err := store.Open(store.Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	r, err := NewRecognizer(cfg, WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	u, err := r.Decode(context.Background(), "utt", frames("aabb"))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Get(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("store closed or record missing: %v", err)
	}
	if rec.Utterance != "utt" {
		t.Errorf("record = %+v", rec)
	}
}

func TestRecognizerDecoderConfigOption(t *testing.T) {
	cfg := writeTinyModels(t)
	dc := decoder.DefaultConfig()
	dc.NBest = 3
	r, err := NewRecognizer(cfg, WithDecoderConfig(dc))
	if err != nil {
		t.Fatal(err)
	}
	if r.Decoder.Config.NBest != 3 {
		t.Errorf("NBest = %d, want 3", r.Decoder.Config.NBest)
	}
}

func TestRecognizerLoggerReceivesModelWarnings(t *testing.T) {
	cfg := writeTinyModels(t)
	lex := filepath.Join(t.TempDir(), "a.dict")
	if err := os.WriteFile(lex, []byte("a\ta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Models.Lexicon = lex

	var logs bytes.Buffer
	r, err := NewRecognizer(cfg, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	if err == nil {
		r.Close()
	}
	if got := logs.String(); !strings.Contains(got, "word not in lexicon") || !strings.Contains(got, "word=b") {
		t.Errorf("missing pronunciation not logged to the recognizer logger: %q", got)
	}
}
