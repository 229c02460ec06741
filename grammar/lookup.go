package grammar

import "sort"

// lookup finds the best arc for a word in one state. The concrete strategy
// is picked once per state from its fan-out.
type lookup interface {
	find(word int) (Arc, bool)
	kind() string
}

// linearLookup scans the arcs; used for states with at most two words.
type linearLookup struct {
	arcs []Arc
}

func (l linearLookup) find(word int) (Arc, bool) {
	for _, a := range l.arcs {
		if a.Word == word {
			return a, true
		}
	}
	return Arc{}, false
}

func (linearLookup) kind() string { return "linear" }

// binaryLookup holds the best arc per word sorted by word.
type binaryLookup struct {
	arcs []Arc
}

func (b binaryLookup) find(word int) (Arc, bool) {
	i := sort.Search(len(b.arcs), func(i int) bool { return b.arcs[i].Word >= word })
	if i < len(b.arcs) && b.arcs[i].Word == word {
		return b.arcs[i], true
	}
	return Arc{}, false
}

func (binaryLookup) kind() string { return "binary" }

// directLookup indexes arcs by word id; used when a state covers most of
// the vocabulary.
type directLookup struct {
	arcs  []Arc
	index []int32
}

func (d directLookup) find(word int) (Arc, bool) {
	if word < 0 || word >= len(d.index) || d.index[word] < 0 {
		return Arc{}, false
	}
	return d.arcs[d.index[word]], true
}

func (directLookup) kind() string { return "direct" }

// buildLookup expects arcs sorted by descending probability, so the first
// arc seen for a word is its best one.
func buildLookup(arcs []Arc, vocabSize int) lookup {
	best := make([]Arc, 0, len(arcs))
	seen := make(map[int]bool, len(arcs))
	for _, a := range arcs {
		if !seen[a.Word] {
			seen[a.Word] = true
			best = append(best, a)
		}
	}

	// two extra words leave room for the sentence markers
	if len(best)+2 > int(float64(vocabSize)*0.9) {
		size := vocabSize
		for _, a := range best {
			if a.Word >= size {
				size = a.Word + 1
			}
		}
		index := make([]int32, size)
		for i := range index {
			index[i] = -1
		}
		for i, a := range best {
			if a.Word >= 0 {
				index[a.Word] = int32(i)
			}
		}
		return directLookup{arcs: best, index: index}
	}
	if len(best) <= 2 {
		return linearLookup{arcs: best}
	}
	sort.Slice(best, func(i, j int) bool { return best[i].Word < best[j].Word })
	return binaryLookup{arcs: best}
}
