package decoder

import (
	"github.com/ieee0824/wordlattice/grammar"
	"github.com/ieee0824/wordlattice/internal/mathutil"
	"github.com/ieee0824/wordlattice/vocab"
)

// expansionContext is the lattice state words are expanded from. Category
// entry recurses with a modified copy.
type expansionContext struct {
	state           grammar.StateID
	category        int
	historyCategory grammar.StateID
	index           int
	best            LatHyp
}

func contextOf(ls *LatState) expansionContext {
	return expansionContext{
		state:           ls.State,
		category:        ls.Category,
		historyCategory: ls.HistoryCategory,
		index:           ls.Index,
		best:            *ls.Best(),
	}
}

// expandHMMTransition moves prev to emitting state transition-1 of its
// phoneme.
func (s *Search) expandHMMTransition(prev *Hyp, transition int) {
	ph := s.d.HMM.Phonemes[prev.Phoneme]
	h := *prev
	h.HMMState = transition - 1
	h.Prob.Acoustic = s.emission(&h) + ph.Transition(prev.HMMState, transition)
	h.Prob.Final += h.Prob.Acoustic
	h.Prob.Acoustic += prev.Prob.Acoustic
	s.insert(LevelHMM, &h)
}

// expandLexTransition enters the next phoneme of every pronunciation edge
// leaving the lexicon state of prev.
func (s *Search) expandLexTransition(prev *Hyp) {
	m := s.d.Lex.Model(prev.Word)
	h := *prev
	for _, e := range m.States[prev.LexState].Edges {
		h.Phoneme = e.Phoneme
		h.LexState = e.To
		ph := s.d.HMM.Phonemes[e.Phoneme]
		for p := 1; p < ph.NumTransitions()-1; p++ {
			entry := ph.Trans[0][p]
			if mathutil.IsLogZero(entry) {
				continue
			}
			h.HMMState = p - 1
			h.Prob.Acoustic = e.Prob + entry + s.emission(&h)
			h.Prob.Final = prev.Prob.Final + h.Prob.Acoustic
			h.Prob.Acoustic += prev.Prob.Acoustic
			s.insert(LevelLex, &h)
		}
	}
}

// expandWordTransition starts word h.Word. The caller fills in the grammar
// fields, the lattice index and a final score holding everything but the
// acoustic part; the acoustic score restarts with the word.
func (s *Search) expandWordTransition(h *Hyp) {
	m := s.d.Lex.Model(h.Word)
	if m == nil {
		return
	}
	finalMinusAcoustic := h.Prob.Final
	for _, e := range m.States[m.Initial].Edges {
		h.Phoneme = e.Phoneme
		h.LexState = e.To
		ph := s.d.HMM.Phonemes[e.Phoneme]
		for p := 1; p < ph.NumTransitions()-1; p++ {
			entry := ph.Trans[0][p]
			if mathutil.IsLogZero(entry) {
				continue
			}
			h.HMMState = p - 1
			h.Prob.Acoustic = e.Prob + entry + s.emission(h)
			h.Prob.Final = finalMinusAcoustic + h.Prob.Acoustic
			st := s.insert(LevelWord, h)
			s.cur.Expanded++
			if st.Accepted() {
				s.cur.Accepted++
			}
		}
	}
}

// expandPhraseTransition continues a multi-word symbol with its next input
// word. Silence and pause may be taken inside the phrase.
func (s *Search) expandPhraseTransition(prev *Hyp) {
	d, cfg := s.d, s.d.Config
	g := d.Grammar

	if !d.Vocab.IsLastInput(prev.Ext, prev.Pos) {
		h := *prev
		h.Pos++
		h.Word = d.Vocab.InputWord(h.Ext, h.Pos)
		h.Filler = false
		// the grammar scores were added when the phrase started
		h.Prob.LM = 0
		h.Prob.OutLM = 0
		h.Prob.WIPOut = 0
		h.Prob.InLM = 0
		if d.InGrammar != nil {
			arc, _ := d.InGrammar.FillWordState(h.StateIn, h.Word)
			h.Prob.InLM = arc.Prob
			h.StateIn = arc.Next
			h.Prob.Final += arc.Prob * cfg.GSFIn
		}
		if h.Ext != g.EndWord {
			h.Prob.Final -= cfg.WIP
		}
		s.expandWordTransition(&h)
	}

	for _, filler := range [...]int{g.SilenceWord, g.PauseWord} {
		if filler == vocab.None {
			continue
		}
		h := *prev
		h.Word = d.Vocab.InputWord(filler, 0)
		h.Filler = true
		h.Prob.LM = g.SilenceScore
		h.Prob.OutLM = 0
		h.Prob.InLM = 0
		h.Prob.Final += h.Prob.LM*cfg.GSF - cfg.WIP
		s.expandWordTransition(&h)
	}
}

// passesEarlyPruning reports whether a word whose score without the
// acoustic part is final can still enter the beam.
func (s *Search) passesEarlyPruning(final float64) bool {
	return !s.earlyPruning || final+s.bestAc > s.heap.Limit()
}

// expandWordsFromLatState expands the words leaving the grammar state of c,
// walking the back-off chain down to the unigram state. Arcs are sorted, so
// the first word that fails early pruning ends the walk. initialProb is
// added to every word score.
func (s *Search) expandWordsFromLatState(c expansionContext, initialProb float64) {
	d, cfg := s.d, s.d.Config
	g := d.Grammar
	cur := c.state
	best := &c.best

	isFinal := false
	catEnd := mathutil.LogZero
	if c.category != vocab.NoCategory {
		cg := d.category(c.category)
		if i := cg.IsFinalState(cur); i >= 0 {
			// the category is complete, resume in the parent grammar
			catEnd = cg.Final[i].Prob
			cur = c.historyCategory
			isFinal = true
		} else {
			g = cg
		}
	}

	if cur == grammar.NoState {
		return
	}
	seen := append(make([]grammar.StateID, 0, 8), cur)
	for len(g.States[cur].Arcs) == 0 {
		if seen, cur = g.NextBackoff(seen); cur == grammar.NoState {
			return
		}
	}
	seen = append(seen[:0], cur)

	if s.earlyPruning {
		bestLM := g.States[cur].Arcs[0].Prob*cfg.GSF - cfg.WIP
		if d.InGrammar != nil && best.StateIn != grammar.NoState {
			if arcs := d.InGrammar.States[best.StateIn].Arcs; len(arcs) > 0 {
				bestLM += arcs[0].Prob * cfg.GSFIn
			}
		}
		if d.OutGrammar != nil && best.StateOut != grammar.NoState {
			if arcs := d.OutGrammar.States[best.StateOut].Arcs; len(arcs) > 0 {
				bestLM += arcs[0].Prob * cfg.GSFOut
			}
		}
		if best.Prob.Final+s.bestAc+bestLM <= s.heap.Limit() {
			return
		}
	}

	backoff := initialProb
	gen := s.nextVisit()
walk:
	for cur != grammar.NoState {
		st := &g.States[cur]
		for _, arc := range st.Arcs {
			sym := d.Vocab.Symbol(arc.Word)
			if sym == nil {
				continue
			}

			if cat := d.Vocab.In.Category(sym.Input[0]); cat != vocab.NoCategory && (c.category == vocab.NoCategory || isFinal) {
				cg := d.category(cat)
				for _, init := range cg.Initial {
					sub := c
					sub.category = cat
					sub.historyCategory = arc.Next
					sub.state = init.State
					s.expandWordsFromLatState(sub, arc.Prob+init.Prob)
				}
				continue
			}

			// an n-gram expands each word once, from the most specific state
			if g.IsNGram && s.visited(arc.Word, gen, !mathutil.IsLogZero(st.Backoff)) {
				continue
			}
			if arc.Word == g.StartWord || arc.Word == g.EndWord {
				continue
			}

			h := Hyp{
				State:    arc.Next,
				History:  cur,
				StateIn:  best.StateIn,
				StateOut: best.StateOut,
				Word:     sym.Input[0],
				Ext:      arc.Word,
				Index:    c.index,
			}
			if isFinal {
				h.Category = vocab.NoCategory
				h.HistoryCategory = grammar.NoState
			} else {
				h.Category = c.category
				h.HistoryCategory = c.historyCategory
			}

			h.Prob.LM = arc.Prob + backoff
			if isFinal {
				h.Prob.LM += catEnd
			}
			h.Prob.Final = best.Prob.Final + h.Prob.LM*cfg.GSF + sym.Score

			if d.InGrammar != nil {
				in, _ := d.InGrammar.FillWordState(best.StateIn, h.Word)
				h.Prob.InLM = in.Prob
				h.StateIn = in.Next
				h.Prob.Final += in.Prob * cfg.GSFIn
			}

			if len(sym.Output) > 0 {
				for _, w := range sym.Output {
					if d.OutGrammar != nil {
						out, _ := d.OutGrammar.FillWordState(h.StateOut, w)
						h.Prob.OutLM += out.Prob
						h.StateOut = out.Next
					}
					if d.OutGrammar == nil || w != d.OutGrammar.EndWord {
						h.Prob.WIPOut -= cfg.WIPOut
					}
				}
				h.Prob.Final += h.Prob.OutLM*cfg.GSFOut - h.Prob.WIPOut
			}

			if h.Ext != g.EndWord {
				h.Prob.Final -= cfg.WIP
			}

			if !s.passesEarlyPruning(h.Prob.Final) {
				break walk
			}
			s.expandWordTransition(&h)
		}
		backoff += st.Backoff
		seen, cur = g.NextBackoff(seen)
	}

	for _, filler := range [...]int{g.SilenceWord, g.PauseWord} {
		if filler == vocab.None {
			continue
		}
		h := Hyp{
			State:           c.state,
			History:         c.state,
			StateIn:         best.StateIn,
			StateOut:        best.StateOut,
			Word:            d.Vocab.InputWord(filler, 0),
			Ext:             filler,
			Category:        c.category,
			HistoryCategory: c.historyCategory,
			Index:           c.index,
		}
		if best.Index == -1 {
			h.History = grammar.NoState
		}
		h.Prob.LM = d.Grammar.SilenceScore
		h.Prob.Final = best.Prob.Final + h.Prob.LM*cfg.GSF - cfg.WIP
		if s.passesEarlyPruning(h.Prob.Final) {
			s.expandWordTransition(&h)
		}
	}
}

// expandWordsFromLattice expands from every lattice state created in the
// current frame: grammar words after a complete symbol, the next input
// word inside a phrase.
func (s *Search) expandWordsFromLattice(lat *Lattice) {
	d := s.d
	g := d.Grammar
	s.computeBestAc()

	for i := lat.InitialIndex; i < len(lat.States); i++ {
		ls := lat.States[i]
		best := ls.Best()
		if best == nil {
			continue
		}
		if d.Vocab.IsLastInput(best.Ext, best.Pos) {
			if g.EndWord == vocab.None || best.Ext != g.EndWord {
				s.expandWordsFromLatState(contextOf(ls), 0)
			}
			continue
		}

		h := Hyp{
			State:           ls.State,
			History:         grammar.NoState,
			StateIn:         best.StateIn,
			StateOut:        best.StateOut,
			Word:            best.Word,
			Ext:             best.Ext,
			Pos:             best.Pos,
			Filler:          best.Filler,
			Category:        ls.Category,
			HistoryCategory: ls.HistoryCategory,
			Index:           i,
			Prob:            best.Prob,
		}
		if best.Index != -1 {
			h.History = lat.States[best.Index].State
		}
		s.expandPhraseTransition(&h)
	}
}

// initialStage expands the first words from every initial grammar state
// using the first feature vector.
func (s *Search) initialStage(lat *Lattice, vec []float64) {
	d := s.d
	stateIn, stateOut := grammar.NoState, grammar.NoState
	if d.InGrammar != nil {
		stateIn = d.InGrammar.Initial[0].State
	}
	if d.OutGrammar != nil {
		stateOut = d.OutGrammar.Initial[0].State
	}

	s.startFrame(lat, vec)
	for _, e := range d.Grammar.Initial {
		c := expansionContext{
			state:           e.State,
			category:        vocab.NoCategory,
			historyCategory: grammar.NoState,
			index:           -1,
			best: LatHyp{
				Ext:      vocab.None,
				Word:     vocab.None,
				Index:    -1,
				StateIn:  stateIn,
				StateOut: stateOut,
			},
		}
		s.expandWordsFromLatState(c, e.Prob)
	}
	s.endFrame(lat)
}

// viterbiFrame advances every surviving hypothesis of the previous frame by
// one observation. Hypotheses leaving the last phoneme of a word go to the
// lattice, from which the next words are expanded.
func (s *Search) viterbiFrame(lat *Lattice, vec []float64) {
	d := s.d
	s.startFrame(lat, vec)

	for {
		prev, ok := s.prevHeap.Pop()
		if !ok {
			break
		}
		if s.prevHeap.Limit() > prev.Prob.Final {
			continue
		}

		ph := d.HMM.Phonemes[prev.Phoneme]
		exit := ph.Exit()
		row := ph.Trans[prev.HMMState+1]
		// column 0 is the non-emitting entry and is never a target
		for t := 1; t <= exit; t++ {
			p := row[t]
			if mathutil.IsLogZero(p) {
				continue
			}
			if t != exit {
				s.expandHMMTransition(&prev, t)
				continue
			}
			prev.Prob.Acoustic += p
			prev.Prob.Final += p
			if prev.LexState != d.Lex.Model(prev.Word).End {
				s.expandLexTransition(&prev)
			} else {
				lat.Insert(&prev)
				s.cur.WordHyps++
			}
		}
	}

	s.expandWordsFromLattice(lat)
	s.endFrame(lat)
}

// endStage closes the utterance: hypotheses at the end of a word get the
// probability of ending the grammar and enter the lattice. When none can
// end the grammar every acoustically complete hypothesis is used instead.
func (s *Search) endStage(lat *Lattice) {
	d, cfg := s.d, s.d.Config
	g := d.Grammar
	// complete words are recorded after the last observation
	lat.StartFrame()

	var partial []Hyp
	finals := 0
	for {
		h, ok := s.heap.Pop()
		if !ok {
			break
		}
		ph := d.HMM.Phonemes[h.Phoneme]
		m := d.Lex.Model(h.Word)
		if !ph.CanExit(h.HMMState) || h.LexState != m.End {
			continue
		}
		exit := ph.ExitProb(h.HMMState)
		h.Prob.Final += exit
		h.Prob.Acoustic += exit

		// with forced silence the closing silence carries no grammar score
		if g.IsNGram && g.SilenceWord != vocab.None && g.ForceSilence {
			h.Prob.Final -= h.Prob.LM * cfg.GSF
			h.Prob.LM = 0
		}

		// a category hyp must also close its category
		catDone := true
		state := h.State
		if h.Category != vocab.NoCategory {
			cg := d.category(h.Category)
			if i := cg.IsFinalState(h.State); i >= 0 {
				p := cg.Final[i].Prob
				h.Prob.LM += p
				h.Prob.Final += p * cfg.GSF
				state = h.HistoryCategory
			} else {
				catDone = false
			}
		}

		// a phrase must be complete
		isFinal := catDone && d.Vocab.IsLastInput(h.Ext, h.Pos)
		if g.IsNGram {
			isFinal = isFinal && g.IsEndWord(h.Ext)
			if catDone {
				s.addProbabilityToFinalGrammarState(&h, state)
			}
		} else if isFinal {
			if i := g.IsFinalState(state); i >= 0 {
				p := g.Final[i].Prob
				h.Prob.LM += p
				h.Prob.Final += p * cfg.GSF
			} else {
				isFinal = false
			}
		}

		if in := d.InGrammar; in != nil && in.EndWord != vocab.None && h.Word != in.EndWord {
			arc, _ := in.FillWordState(h.StateIn, in.EndWord)
			h.Prob.InLM += arc.Prob
			h.StateIn = arc.Next
			h.Prob.Final += arc.Prob * cfg.GSFIn
		}
		if out := d.OutGrammar; out != nil && out.EndWord != vocab.None {
			arc, _ := out.FillWordState(h.StateOut, out.EndWord)
			h.Prob.OutLM += arc.Prob
			h.StateOut = arc.Next
			h.Prob.Final += arc.Prob * cfg.GSFOut
		}

		if isFinal {
			lat.Insert(&h)
			finals++
		} else if finals == 0 {
			partial = append(partial, h)
		}
	}

	if finals == 0 {
		s.logger.Warn("complete decoding not possible, using partial decoding",
			"frames", s.nFrames, "hypotheses", len(partial))
		lat.Partial = true
		for i := range partial {
			lat.Insert(&partial[i])
		}
	}
	lat.AddFinalNode()
	lat.Sort()
}

// addProbabilityToFinalGrammarState adds the n-gram probability of the end
// word after state, reached through back-off.
func (s *Search) addProbabilityToFinalGrammarState(h *Hyp, state grammar.StateID) {
	if state == grammar.NoState {
		return
	}
	if p, ok := s.d.Grammar.EndProbability(state); ok {
		h.Prob.LM += p
		h.Prob.Final += p * s.d.Config.GSF
	}
}
