package vocab

import (
	"errors"
	"testing"
)

func TestVocabAddIsIdempotent(t *testing.T) {
	v := New()
	a := v.Add("a")
	b := v.Add("b")
	if again := v.Add("a"); again != a {
		t.Errorf("Add(a) twice = %d, want %d", again, a)
	}
	if v.Len() != 2 {
		t.Errorf("Len = %d, want 2", v.Len())
	}
	if v.Name(b) != "b" {
		t.Errorf("Name(%d) = %q", b, v.Name(b))
	}
	if v.ID("zzz") != None {
		t.Error("unknown word should map to None")
	}
	if v.Name(None) != "" {
		t.Error("Name(None) should be empty")
	}
}

func TestVocabCategory(t *testing.T) {
	v := FromWords("one", "$NUM")
	if v.Category(0) != NoCategory {
		t.Error("words default to NoCategory")
	}
	v.SetCategory(1, 0)
	if v.Category(1) != 0 {
		t.Errorf("Category = %d, want 0", v.Category(1))
	}
}

func TestExtendedPlainAndPhrase(t *testing.T) {
	e := NewExtended(nil, nil)
	a := e.Add("a")
	if got := e.Symbol(a).Input; len(got) != 1 || e.In.Name(got[0]) != "a" {
		t.Fatalf("plain symbol input = %v", got)
	}
	p, err := e.AddPhrase("new_york", []string{"new", "york"}, []string{"NY"}, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	if e.InputWord(p, 1) != e.In.ID("york") {
		t.Errorf("InputWord(p, 1) = %d", e.InputWord(p, 1))
	}
	if e.InputWord(p, 2) != None {
		t.Error("InputWord past the end should be None")
	}
	if e.IsLastInput(p, 0) || !e.IsLastInput(p, 1) {
		t.Error("IsLastInput mismatch")
	}
	if got := e.InputString(p, "_"); got != "new_york" {
		t.Errorf("InputString = %q", got)
	}
	if got := e.OutputString(p, " "); got != "NY" {
		t.Errorf("OutputString = %q", got)
	}
	if got := e.String([]int{a, p}); got != "a new_york" {
		t.Errorf("String = %q", got)
	}
}

func TestExtendedPhraseErrors(t *testing.T) {
	e := NewExtended(nil, nil)
	if _, err := e.AddPhrase("x", nil, nil, 0); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
	e.Add("x")
	if _, err := e.AddPhrase("x", []string{"x"}, nil, 0); err == nil {
		t.Error("duplicate phrase should fail")
	}
}
