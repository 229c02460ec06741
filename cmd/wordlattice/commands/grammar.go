package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/wordlattice/config"
	"github.com/ieee0824/wordlattice/grammar"
	"github.com/ieee0824/wordlattice/language"
	"github.com/ieee0824/wordlattice/vocab"
)

var grammarCmd = &cobra.Command{
	Use:   "grammar <dot|slf>",
	Short: "Write the grammar as a graph",
	Long: `Read the grammar named by --grammar (or models.grammar in the configuration)
and write it to stdout as a Graphviz digraph (dot) or an HTK lattice (slf).
Only the grammar is loaded.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"dot", "slf"},
	RunE:      runGrammar,
}

func runGrammar(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return err
		}
	}
	applyFlags(cmd, cfg)
	if cfg.Models.Grammar == "" {
		return errors.New("no grammar given: use --grammar or models.grammar")
	}

	g, err := loadGrammar(cfg)
	if err != nil {
		return err
	}
	switch args[0] {
	case "dot":
		return g.WriteDOT(cmd.OutOrStdout())
	case "slf":
		return g.WriteSLF(cmd.OutOrStdout())
	}
	return fmt.Errorf("unknown grammar format %q", args[0])
}

func loadGrammar(cfg *config.Config) (*grammar.Grammar, error) {
	ext := vocab.NewExtended(nil, nil)
	switch cfg.Models.GrammarType {
	case config.GrammarFSM:
		return grammar.LoadFSMFile(cfg.Models.Grammar, ext)
	case config.GrammarNGram, "":
		lm, err := language.LoadARPAFile(cfg.Models.Grammar)
		if err != nil {
			return nil, err
		}
		return grammar.FromNGram(lm, ext, grammar.NGramOptions{
			Specials:     cfg.Vocab,
			SilenceScore: cfg.Search.SilenceScore,
			ForceSilence: cfg.Search.ForceSilence,
		})
	}
	return nil, fmt.Errorf("unknown grammar type %q", cfg.Models.GrammarType)
}
