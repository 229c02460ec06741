package grammar

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ieee0824/wordlattice/internal/mathutil"
	"github.com/ieee0824/wordlattice/language"
	"github.com/ieee0824/wordlattice/vocab"
)

// NGramOptions configures FromNGram.
type NGramOptions struct {
	Specials     Specials
	SilenceScore float64
	ForceSilence bool
	Logger       *slog.Logger // nil uses slog.Default
}

type historyTable map[string]StateID

func historyKey(name []int) string {
	var b strings.Builder
	for i, w := range name {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(w))
	}
	return b.String()
}

func (h historyTable) find(name []int) (StateID, bool) {
	s, ok := h[historyKey(name)]
	return s, ok
}

// FromNGram converts a back-off n-gram model into a grammar. Every history
// of order below the model order becomes a state; the arc for w after
// history h goes to the longest suffix of h+w that is itself a state.
func FromNGram(lm *language.NGramModel, symbols Symbols, opts NGramOptions) (*Grammar, error) {
	if lm.Order < 1 {
		return nil, fmt.Errorf("grammar: empty n-gram model")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := New(symbols, opts.Specials)
	g.IsNGram = true
	g.Order = lm.Order
	g.SilenceScore = opts.SilenceScore
	g.ForceSilence = opts.ForceSilence

	table := historyTable{}
	addState := func(name []int, bo float64) StateID {
		s := g.AddState(name...)
		g.States[s].Backoff = bo
		table[historyKey(name)] = s
		return s
	}
	ids := func(words []string) []int {
		out := make([]int, len(words))
		for i, w := range words {
			out[i] = symbols.Add(w)
		}
		return out
	}

	// unigram state first so it is state 0
	addState(nil, mathutil.LogZero)
	for k := 1; k < lm.Order; k++ {
		for _, e := range lm.Entries[k-1] {
			name := ids(e.Words)
			bo := 0.0
			if e.HasBackoff {
				bo = e.LogBackoff
			}
			if name[len(name)-1] == g.EndWord {
				bo = mathutil.LogZero
			}
			if s, ok := table.find(name); ok {
				g.States[s].Backoff = bo
				continue
			}
			addState(name, bo)
		}
	}

	for k := 1; k <= lm.Order; k++ {
		for _, e := range lm.Entries[k-1] {
			name := ids(e.Words)
			history, word := name[:k-1], name[k-1]
			from, ok := table.find(history)
			if !ok {
				logger.Warn("unseen n-gram history, assuming a back-off weight of 0", "history", strings.Join(e.Words[:k-1], " "))
				from = addState(append([]int(nil), history...), 0)
			}
			target := append([]int(nil), name...)
			to, ok := table.find(target)
			for !ok {
				target = target[1:]
				to, ok = table.find(target)
			}
			g.AddArc(from, word, e.LogProb, to)
		}
	}

	if g.EndWord != vocab.None {
		if _, ok := table.find([]int{g.EndWord}); !ok {
			addState([]int{g.EndWord}, mathutil.LogZero)
		}
	}

	// back-off arcs; states created here are processed by the same loop
	for i := 0; i < len(g.States); i++ {
		st := &g.States[i]
		if len(st.Name) == 0 || mathutil.IsLogZero(st.Backoff) {
			st.Backoff = mathutil.LogZero
			st.BackoffState = NoState
			continue
		}
		lower := st.Name[1:]
		to, ok := table.find(lower)
		if !ok {
			names := make([]string, len(lower))
			for j, w := range lower {
				names[j] = symbols.Name(w)
			}
			logger.Warn("unseen n-gram history, assuming a back-off weight of 0", "history", strings.Join(names, " "))
			to = addState(append([]int(nil), lower...), 0)
			st = &g.States[i]
		}
		st.BackoffState = to
	}

	initial := StateID(0)
	if g.StartWord != vocab.None {
		if s, ok := table.find([]int{g.StartWord}); ok {
			initial = s
		}
	}
	if g.SilenceWord != vocab.None && g.ForceSilence {
		s := g.AddState()
		g.AddArc(s, g.SilenceWord, 0, initial)
		initial = s
	}
	g.AddInitial(initial, 0)
	if g.EndWord != vocab.None {
		end, _ := table.find([]int{g.EndWord})
		g.AddFinal(end, 0)
	}

	if err := g.Complete(); err != nil {
		return nil, err
	}
	return g, nil
}
