// Package language loads back-off n-gram language models.
package language

import (
	"strings"

	"github.com/ieee0824/wordlattice/internal/mathutil"
)

// Entry is one n-gram line: the words (history then predicted word), the
// natural-log probability and the back-off weight of the words as a history.
type Entry struct {
	Words      []string
	LogProb    float64
	LogBackoff float64
	HasBackoff bool
}

// NGramModel represents an n-gram language model of arbitrary order.
type NGramModel struct {
	Order   int
	Entries [][]Entry // Entries[k-1] holds the k-grams in file order

	index []map[string]int
}

// NewNGramModel creates an empty n-gram model.
func NewNGramModel(order int) *NGramModel {
	m := &NGramModel{}
	m.grow(order)
	return m
}

func (m *NGramModel) grow(order int) {
	for len(m.Entries) < order {
		m.Entries = append(m.Entries, nil)
		m.index = append(m.index, make(map[string]int))
	}
	if order > m.Order {
		m.Order = order
	}
}

func key(words []string) string { return strings.Join(words, " ") }

// Add inserts or replaces an n-gram entry.
func (m *NGramModel) Add(e Entry) {
	n := len(e.Words)
	m.grow(n)
	k := key(e.Words)
	if i, ok := m.index[n-1][k]; ok {
		m.Entries[n-1][i] = e
		return
	}
	m.index[n-1][k] = len(m.Entries[n-1])
	m.Entries[n-1] = append(m.Entries[n-1], e)
}

// Lookup returns the entry for words.
func (m *NGramModel) Lookup(words ...string) (Entry, bool) {
	n := len(words)
	if n == 0 || n > len(m.index) {
		return Entry{}, false
	}
	i, ok := m.index[n-1][key(words)]
	if !ok {
		return Entry{}, false
	}
	return m.Entries[n-1][i], true
}

// LogProb returns the log probability of a word given its history.
// Uses backoff when the exact n-gram is not found.
func (m *NGramModel) LogProb(history []string, word string) float64 {
	if len(history) > m.Order-1 {
		history = history[len(history)-(m.Order-1):]
	}
	bo := 0.0
	for {
		words := append(append([]string(nil), history...), word)
		if e, ok := m.Lookup(words...); ok {
			return bo + e.LogProb
		}
		if len(history) == 0 {
			return mathutil.LogZero
		}
		if h, ok := m.Lookup(history...); ok && h.HasBackoff {
			bo += h.LogBackoff
		}
		history = history[1:]
	}
}

// SentenceLogProb returns the total log probability of a sentence (word sequence).
// Automatically adds <s> at the beginning and </s> at the end.
func (m *NGramModel) SentenceLogProb(words []string) float64 {
	total := 0.0
	history := []string{"<s>"}
	for _, w := range words {
		total += m.LogProb(history, w)
		history = append(history, w)
	}
	total += m.LogProb(history, "</s>")
	return total
}

// Vocab returns all words in the unigram vocabulary in file order.
func (m *NGramModel) Vocab() []string {
	if len(m.Entries) == 0 {
		return nil
	}
	words := make([]string, 0, len(m.Entries[0]))
	for _, e := range m.Entries[0] {
		words = append(words, e.Words[0])
	}
	return words
}
