package grammar

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ieee0824/wordlattice/internal/mathutil"
	"github.com/ieee0824/wordlattice/vocab"
)

func (g *Grammar) stateLabel(s *State) string {
	parts := make([]string, len(s.Name))
	for i, w := range s.Name {
		parts[i] = g.Symbols.Name(w)
	}
	return strings.Join(parts, " ")
}

func (g *Grammar) hasBackoffArc(s *State) bool {
	return s.BackoffState != NoState && !mathutil.IsLogZero(s.Backoff)
}

// WriteDOT writes the grammar as a Graphviz digraph.
func (g *Grammar) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph grammar {")
	fmt.Fprintln(bw, "rankdir=LR;")
	for _, e := range g.Initial {
		fmt.Fprintf(bw, "node [shape = circle, style = filled]; S%d\n", e.State)
	}
	for _, e := range g.Final {
		fmt.Fprintf(bw, "node [shape = doublecircle, style = solid]; S%d\n", e.State)
	}
	fmt.Fprintln(bw, "node [shape = circle, style = solid];")
	for i := range g.States {
		fmt.Fprintf(bw, "S%d [ label = \"S%d\\n%s\"]\n", i, i, g.stateLabel(&g.States[i]))
	}
	for i := range g.States {
		s := &g.States[i]
		for _, a := range s.Arcs {
			fmt.Fprintf(bw, "S%d -> S%d [ label = \"%s: %g\"]\n", i, a.Next, g.Symbols.Name(a.Word), a.Prob)
		}
		if g.hasBackoffArc(s) {
			fmt.Fprintf(bw, "S%d -> S%d [ label = \"<BACKOFF>: %g\"]\n", i, s.BackoffState, s.Backoff)
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// WriteSLF writes the grammar in HTK standard lattice format. Back-off arcs
// become !NULL links. Phrase symbols are written with underscores.
func (g *Grammar) WriteSLF(w io.Writer) error {
	bw := bufio.NewWriter(w)
	links := 0
	for i := range g.States {
		links += len(g.States[i].Arcs)
		if g.hasBackoffArc(&g.States[i]) {
			links++
		}
	}
	fmt.Fprintln(bw, "VERSION=1.0")
	fmt.Fprintln(bw, "UTTERANCE=grammar")
	fmt.Fprintln(bw, "lmscale=1")
	fmt.Fprintln(bw, "wdpenalty=0")
	fmt.Fprintf(bw, "N=%d L=%d\n", len(g.States), links)
	for i := range g.States {
		fmt.Fprintf(bw, "I=%d\n", i)
	}
	ext, _ := g.Symbols.(*vocab.Extended)
	j := 0
	for i := range g.States {
		s := &g.States[i]
		for _, a := range s.Arcs {
			word := strings.ReplaceAll(g.Symbols.Name(a.Word), " ", "_")
			fmt.Fprintf(bw, "J=%d S=%d E=%d W=%s", j, i, a.Next, word)
			if ext != nil {
				if out := ext.OutputString(a.Word, "_"); out != "" {
					fmt.Fprintf(bw, " O=%s", out)
				}
			}
			fmt.Fprintf(bw, " l=%f\n", a.Prob)
			j++
		}
		if g.hasBackoffArc(s) {
			fmt.Fprintf(bw, "J=%d S=%d E=%d W=!NULL l=%f\n", j, i, s.BackoffState, s.Backoff)
			j++
		}
	}
	return bw.Flush()
}
