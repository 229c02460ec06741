package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Entry represents a single pronunciation for a word.
type Entry struct {
	Word     string
	Prob     float64  // linear pronunciation probability
	Phonemes []string // phoneme sequence
}

// Dictionary holds word-to-pronunciation mappings.
type Dictionary struct {
	Entries map[string][]Entry // word -> list of alternative pronunciations
	order   []string
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{
		Entries: make(map[string][]Entry),
	}
}

// Add adds a pronunciation entry to the dictionary.
func (d *Dictionary) Add(word string, prob float64, phonemes []string) {
	if _, ok := d.Entries[word]; !ok {
		d.order = append(d.order, word)
	}
	d.Entries[word] = append(d.Entries[word], Entry{
		Word:     word,
		Prob:     prob,
		Phonemes: phonemes,
	})
}

// Load reads a pronunciation dictionary from a tab-separated file.
// Format: word<TAB>[probability<TAB>]phoneme1 phoneme2 phoneme3 ...
// A missing probability means 1.
func Load(r io.Reader) (*Dictionary, error) {
	d := NewDictionary()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("line %d: expected 2 or 3 tab-separated fields, got %d", lineNum, len(parts))
		}

		prob := 1.0
		if len(parts) == 3 {
			p, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse probability: %w", lineNum, err)
			}
			if p < 0 || p > 1 {
				return nil, fmt.Errorf("line %d: probability %g out of [0,1]", lineNum, p)
			}
			prob = p
		}

		phonemes := strings.Fields(parts[len(parts)-1])
		if len(phonemes) == 0 {
			return nil, fmt.Errorf("line %d: word %q has no phonemes", lineNum, parts[0])
		}
		d.Add(strings.TrimSpace(parts[0]), prob, phonemes)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return d, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Lookup returns all pronunciation variants for a word.
func (d *Dictionary) Lookup(word string) []Entry {
	return d.Entries[word]
}

// Words returns all words in the dictionary in insertion order.
func (d *Dictionary) Words() []string {
	words := make([]string, len(d.order))
	copy(words, d.order)
	return words
}
