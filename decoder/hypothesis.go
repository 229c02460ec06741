package decoder

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/ieee0824/wordlattice/grammar"
	"github.com/ieee0824/wordlattice/internal/mathutil"
	"github.com/ieee0824/wordlattice/vocab"
)

// Probability holds the sub-scores of a hypothesis. Final is the weighted
// sum of the others and is updated alongside them, never derived later.
type Probability struct {
	Acoustic float64 `msgpack:"ac"`
	LM       float64 `msgpack:"lm"`
	InLM     float64 `msgpack:"in_lm"`
	OutLM    float64 `msgpack:"out_lm"`
	WIPOut   float64 `msgpack:"wip_out"`
	Final    float64 `msgpack:"final"`
}

// ZeroProbability is the score of the empty path.
var ZeroProbability = Probability{}

// Hyp is a partial path at one frame: a position in the grammar, the
// lexicon automaton of the current word and the HMM of the current phoneme.
// Hyps are values and are copied on every expansion.
type Hyp struct {
	State    grammar.StateID // grammar target state
	History  grammar.StateID // grammar source state
	StateIn  grammar.StateID
	StateOut grammar.StateID

	HMMState int
	Phoneme  int
	LexState int

	Word int // input word being traversed
	Ext  int // extended symbol
	Pos  int // position in the input sequence of Ext

	// Filler marks a silence or pause taken inside a phrase. It keeps the
	// phrase position but is not a word of the phrase.
	Filler bool

	Category        int
	HistoryCategory grammar.StateID

	Index int // lattice state this hyp extends, -1 before the first word
	Prob  Probability
}

func newHyp() Hyp {
	return Hyp{
		State:           grammar.NoState,
		History:         grammar.NoState,
		StateIn:         grammar.NoState,
		StateOut:        grammar.NoState,
		Word:            vocab.None,
		Ext:             vocab.None,
		Category:        vocab.NoCategory,
		HistoryCategory: grammar.NoState,
		Index:           -1,
		Prob:            Probability{Final: mathutil.LogZero},
	}
}

// hypKey identifies the composite search state two hyps compete for.
type hypKey struct {
	hmmState, lexState, phoneme, word int
	history, state                    grammar.StateID
	ext, pos, category                int
}

func (h *Hyp) key() hypKey {
	return hypKey{
		hmmState: h.HMMState,
		lexState: h.LexState,
		phoneme:  h.Phoneme,
		word:     h.Word,
		history:  h.History,
		state:    h.State,
		ext:      h.Ext,
		pos:      h.Pos,
		category: h.Category,
	}
}

func (k hypKey) hash() uint64 {
	var buf [9 * 8]byte
	fields := [9]int64{
		int64(k.hmmState), int64(k.lexState), int64(k.phoneme), int64(k.word),
		int64(k.history), int64(k.state), int64(k.ext), int64(k.pos), int64(k.category),
	}
	for i, f := range fields {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(f))
	}
	return xxhash.Sum64(buf[:])
}
