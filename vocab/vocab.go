// Package vocab holds the symbol tables shared by the lexicon, the grammars
// and the decoder.
package vocab

// None marks the absence of a symbol.
const None = -1

// NoCategory marks a word that does not open a category sub-grammar.
const NoCategory = -1

// Vocab maps word strings to dense integer ids.
type Vocab struct {
	names    []string
	ids      map[string]int
	category []int
}

// New creates an empty vocabulary.
func New() *Vocab {
	return &Vocab{ids: make(map[string]int)}
}

// FromWords creates a vocabulary holding words in order.
func FromWords(words ...string) *Vocab {
	v := New()
	for _, w := range words {
		v.Add(w)
	}
	return v
}

// Add inserts name if needed and returns its id.
func (v *Vocab) Add(name string) int {
	if id, ok := v.ids[name]; ok {
		return id
	}
	id := len(v.names)
	v.names = append(v.names, name)
	v.category = append(v.category, NoCategory)
	v.ids[name] = id
	return id
}

// ID returns the id of name or None.
func (v *Vocab) ID(name string) int {
	if id, ok := v.ids[name]; ok {
		return id
	}
	return None
}

// Name returns the string for id. Out of range ids yield "".
func (v *Vocab) Name(id int) string {
	if id < 0 || id >= len(v.names) {
		return ""
	}
	return v.names[id]
}

// Len returns the number of words.
func (v *Vocab) Len() int { return len(v.names) }

// Names returns the words ordered by id.
func (v *Vocab) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// SetCategory tags word id as the entry symbol of category cat.
func (v *Vocab) SetCategory(id, cat int) {
	if id >= 0 && id < len(v.category) {
		v.category[id] = cat
	}
}

// Category returns the category opened by id, or NoCategory.
func (v *Vocab) Category(id int) int {
	if id < 0 || id >= len(v.category) {
		return NoCategory
	}
	return v.category[id]
}
