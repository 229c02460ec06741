package decoder

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ieee0824/wordlattice/vocab"
)

// SLFOptions carries the names and scale factors written into a lattice
// file. Decoder.SLFOptions fills it from the models.
type SLFOptions struct {
	Utterance string
	GSF       float64
	WIP       float64

	// SilenceScore is written as x1scale when HasSilence is set.
	HasSilence   bool
	SilenceScore float64
	HasInput     bool
	GSFIn        float64
	HasOutput    bool
	GSFOut       float64
	WIPOut       float64

	WordName func(word int) string // input word name
	Output   func(ext int) string  // output words of a symbol joined by "_"
	IsFiller func(ext int) bool    // silence or pause symbol
}

// SLFOptions returns the lattice file options of d for utterance name.
func (d *Decoder) SLFOptions(name string) SLFOptions {
	g := d.Grammar
	opts := SLFOptions{
		Utterance:    name,
		GSF:          d.Config.GSF,
		WIP:          d.Config.WIP,
		HasSilence:   g.SilenceWord != vocab.None || g.PauseWord != vocab.None,
		SilenceScore: g.SilenceScore,
		HasInput:     d.InGrammar != nil,
		GSFIn:        d.Config.GSFIn,
		HasOutput:    d.OutGrammar != nil,
		GSFOut:       d.Config.GSFOut,
		WIPOut:       d.Config.WIPOut,
		WordName:     d.Vocab.In.Name,
		Output: func(ext int) string {
			return d.Vocab.OutputString(ext, "_")
		},
		IsFiller: func(ext int) bool {
			return ext != vocab.None && (ext == g.SilenceWord || ext == g.PauseWord)
		},
	}
	return opts
}

// reachable marks the states from which the sink can be reached.
func (l *Lattice) reachable() []bool {
	seen := make([]bool, len(l.States))
	if len(l.States) == 0 {
		return seen
	}
	stack := []int{len(l.States) - 1}
	seen[len(l.States)-1] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range l.States[i].Hyps {
			if e.Index >= 0 && !seen[e.Index] {
				seen[e.Index] = true
				stack = append(stack, e.Index)
			}
		}
	}
	return seen
}

// WriteSLF writes the part of the lattice that reaches the final node in
// HTK standard lattice format. Node 0 is the utterance start; times are
// frame counts.
func (l *Lattice) WriteSLF(w io.Writer, opts SLFOptions) error {
	seen := l.reachable()
	node := make([]int, len(l.States))
	nodes, links := 1, 0
	for i, ok := range seen {
		if !ok {
			continue
		}
		node[i] = nodes
		nodes++
		links += len(l.States[i].Hyps)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "VERSION=1.0")
	fmt.Fprintf(bw, "UTTERANCE=%s\n", opts.Utterance)
	fmt.Fprintf(bw, "lmscale=%.2f\n", opts.GSF)
	fmt.Fprintf(bw, "wdpenalty=%.2f\n", -opts.WIP)
	if opts.HasSilence {
		fmt.Fprintf(bw, "x1scale=%.2f\n", opts.SilenceScore)
	}
	if opts.HasInput {
		fmt.Fprintf(bw, "x2scale=%.2f\n", opts.GSFIn)
	}
	if opts.HasOutput {
		fmt.Fprintf(bw, "x3scale=%.2f\n", opts.GSFOut)
	}
	if opts.WIPOut != 0 {
		fmt.Fprintf(bw, "x4scale=%.2f\n", -opts.WIPOut)
	}
	fmt.Fprintf(bw, "N=%d L=%d\n", nodes, links)

	fmt.Fprintln(bw, "I=0 t=0")
	for i, ok := range seen {
		if ok {
			fmt.Fprintf(bw, "I=%d t=%d\n", node[i], l.States[i].T)
		}
	}

	j := 0
	for i, ok := range seen {
		if !ok {
			continue
		}
		s := l.States[i]
		for k := range s.Hyps {
			e := &s.Hyps[k]
			from := 0
			if e.Index >= 0 {
				from = node[e.Index]
			}
			fmt.Fprintf(bw, "J=%d S=%d E=%d", j, from, node[i])
			j++
			l.writeSLFEdge(bw, s, e, &opts)
			fmt.Fprintln(bw)
		}
	}
	return bw.Flush()
}

func (l *Lattice) writeSLFEdge(bw *bufio.Writer, s *LatState, e *LatHyp, opts *SLFOptions) {
	word := "!NULL"
	if e.Word != vocab.None && opts.WordName != nil {
		word = strings.ReplaceAll(opts.WordName(e.Word), " ", "_")
	}
	fmt.Fprintf(bw, " W=%s a=%f", word, e.Prob.Acoustic)

	if e.Filler || (opts.IsFiller != nil && opts.IsFiller(e.Ext)) {
		score := e.Prob.LM
		if opts.SilenceScore != 0 {
			score /= opts.SilenceScore
		} else {
			score = 1
		}
		fmt.Fprintf(bw, " x1=%f", score)
	} else {
		fmt.Fprintf(bw, " l=%f", e.Prob.LM)
	}

	switch {
	case e.Ext == vocab.None:
		fmt.Fprint(bw, " O=!NULL")
	case e.Lead() && opts.Output != nil:
		if out := opts.Output(e.Ext); out != "" {
			fmt.Fprintf(bw, " O=%s", out)
		}
	}
	if s.Category != vocab.NoCategory {
		fmt.Fprintf(bw, " div=c:%d", s.Category)
	}
	if opts.HasInput {
		fmt.Fprintf(bw, " x2=%f", e.Prob.InLM)
	}
	if opts.HasOutput {
		fmt.Fprintf(bw, " x3=%f x4=1", e.Prob.OutLM)
	}
}
