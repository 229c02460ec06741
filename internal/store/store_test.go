package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ieee0824/wordlattice/decoder"
)

func newTestStore(t *testing.T) *LatticeStore {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(text string) *Record {
	lat := decoder.NewLattice(1, -1)
	lat.NFrames = 3
	return &Record{
		Utterance: "utt-" + text,
		Result:    &decoder.Result{Text: text, LogScore: -4.5, Words: []decoder.Word{{Text: text, EndFrame: 2}}},
		Lattice:   lat,
	}
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
	}

	rec := sampleRecord("hello")
	id, err := s.Put(ctx, rec)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id == uuid.Nil || rec.ID != id || rec.CreatedAt.IsZero() {
		t.Fatalf("Put did not assign id and time: %+v", rec)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Utterance != "utt-hello" || got.Result.Text != "hello" || got.Lattice.NFrames != 3 {
		t.Errorf("Get = %+v", got)
	}
	if len(got.Result.Words) != 1 || got.Result.Words[0].EndFrame != 2 {
		t.Errorf("words = %+v", got.Result.Words)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	want := map[string]bool{"a": true, "b": true, "c": true}
	for text := range want {
		if _, err := s.Put(ctx, sampleRecord(text)); err != nil {
			t.Fatal(err)
		}
	}
	seen := map[string]bool{}
	for rec, err := range s.List(ctx) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		seen[rec.Result.Text] = true
	}
	if len(seen) != len(want) {
		t.Errorf("listed %v, want %v", seen, want)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Error("Open without a directory succeeded")
	}
}
