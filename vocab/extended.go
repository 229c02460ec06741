package vocab

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when a phrase has no input words.
var ErrEmptyInput = errors.New("vocab: extended symbol needs at least one input word")

// Symbol is a grammar symbol. It expands to a sequence of lexicon words
// (Input) and optionally emits output words scored by an output grammar.
type Symbol struct {
	ID     int
	Name   string
	Input  []int
	Output []int
	Score  float64
}

// Extended is the grammar-level vocabulary. Plain words map to a single
// input word; phrases map to several.
type Extended struct {
	In  *Vocab
	Out *Vocab

	names   *Vocab
	symbols []Symbol
}

// NewExtended creates an extended vocabulary over the given input and
// output vocabularies. Nil vocabularies are created empty.
func NewExtended(in, out *Vocab) *Extended {
	if in == nil {
		in = New()
	}
	if out == nil {
		out = New()
	}
	return &Extended{In: in, Out: out, names: New()}
}

// Add registers a plain single-word symbol and returns its id.
func (e *Extended) Add(name string) int {
	if id := e.names.ID(name); id != None {
		return id
	}
	id := e.names.Add(name)
	e.symbols = append(e.symbols, Symbol{ID: id, Name: name, Input: []int{e.In.Add(name)}})
	return id
}

// AddPhrase registers a symbol that expands to several input words and
// emits output words with an additional combined score.
func (e *Extended) AddPhrase(name string, input, output []string, score float64) (int, error) {
	if len(input) == 0 {
		return None, fmt.Errorf("%w: %q", ErrEmptyInput, name)
	}
	if id := e.names.ID(name); id != None {
		return None, fmt.Errorf("vocab: duplicate extended symbol %q", name)
	}
	id := e.names.Add(name)
	sym := Symbol{ID: id, Name: name, Score: score}
	for _, w := range input {
		sym.Input = append(sym.Input, e.In.Add(w))
	}
	for _, w := range output {
		sym.Output = append(sym.Output, e.Out.Add(w))
	}
	e.symbols = append(e.symbols, sym)
	return id, nil
}

// ID returns the id of the named symbol or None.
func (e *Extended) ID(name string) int { return e.names.ID(name) }

// Name returns the name of symbol id.
func (e *Extended) Name(id int) string { return e.names.Name(id) }

// Len returns the number of extended symbols.
func (e *Extended) Len() int { return len(e.symbols) }

// Symbol returns the symbol with the given id, or nil.
func (e *Extended) Symbol(id int) *Symbol {
	if id < 0 || id >= len(e.symbols) {
		return nil
	}
	return &e.symbols[id]
}

// InputWord returns the input word at position pos of symbol id, or None
// past the end of the sequence.
func (e *Extended) InputWord(id, pos int) int {
	s := e.Symbol(id)
	if s == nil || pos < 0 || pos >= len(s.Input) {
		return None
	}
	return s.Input[pos]
}

// IsLastInput reports whether pos is the last input position of symbol id.
func (e *Extended) IsLastInput(id, pos int) bool {
	s := e.Symbol(id)
	return s == nil || pos+1 >= len(s.Input)
}

// String joins symbol names with spaces.
func (e *Extended) String(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, e.Name(id))
	}
	return strings.Join(parts, " ")
}

// InputString joins the input words of the symbols with sep.
func (e *Extended) InputString(id int, sep string) string {
	s := e.Symbol(id)
	if s == nil {
		return ""
	}
	parts := make([]string, 0, len(s.Input))
	for _, w := range s.Input {
		parts = append(parts, e.In.Name(w))
	}
	return strings.Join(parts, sep)
}

// OutputString joins the output words of the symbol with sep.
func (e *Extended) OutputString(id int, sep string) string {
	s := e.Symbol(id)
	if s == nil {
		return ""
	}
	parts := make([]string, 0, len(s.Output))
	for _, w := range s.Output {
		parts = append(parts, e.Out.Name(w))
	}
	return strings.Join(parts, sep)
}
