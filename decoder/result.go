package decoder

import (
	"strings"

	"github.com/ieee0824/wordlattice/vocab"
)

// Word is a recognized symbol with its frame span.
type Word struct {
	Text       string  `json:"text" msgpack:"text"`
	StartFrame int     `json:"start_frame" msgpack:"start_frame"`
	EndFrame   int     `json:"end_frame" msgpack:"end_frame"`
	LogScore   float64 `json:"log_score" msgpack:"log_score"`
	Acoustic   float64 `json:"acoustic" msgpack:"acoustic"`
	LM         float64 `json:"lm" msgpack:"lm"`
	Filler     bool    `json:"filler,omitempty" msgpack:"filler,omitempty"`
}

// Result is the best path of a lattice in text form.
type Result struct {
	Text     string  `json:"text" msgpack:"text"`
	Words    []Word  `json:"words" msgpack:"words"`
	LogScore float64 `json:"log_score" msgpack:"log_score"`
	Partial  bool    `json:"partial,omitempty" msgpack:"partial,omitempty"`
}

// Result reads the best path of l. Silence and pause are listed in Words
// but left out of Text.
func (d *Decoder) Result(l *Lattice) *Result {
	_, score := l.BestHyp()
	res := &Result{LogScore: score, Partial: l.Partial}
	var text []string
	g := d.Grammar
	for _, lw := range l.Words() {
		w := Word{
			Text:       d.Vocab.Name(lw.Ext),
			StartFrame: lw.StartFrame,
			EndFrame:   lw.EndFrame,
			LogScore:   lw.Score,
			Acoustic:   lw.Acoustic,
			LM:         lw.LM,
			Filler:     lw.Ext != vocab.None && (lw.Ext == g.SilenceWord || lw.Ext == g.PauseWord),
		}
		res.Words = append(res.Words, w)
		if !w.Filler {
			text = append(text, w.Text)
		}
	}
	res.Text = strings.Join(text, " ")
	return res
}
