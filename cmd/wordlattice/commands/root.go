package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/wordlattice/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	hmmPath     string
	lexiconPath string
	grammarPath string
	grammarType string

	beam      float64
	histogram int
	gsf       float64
	wip       float64
	nbest     int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wordlattice",
	Short: "Viterbi word decoder producing sentences and word lattices",
	Long: `wordlattice decodes feature sequences with an HMM acoustic model, a
pronunciation lexicon and an n-gram or finite-state grammar.

Models are named in a YAML configuration file or with flags; flags win.

Examples:
  # Decode two utterances with an n-gram grammar
  wordlattice decode --hmm am.msgpack --lexicon words.dict --grammar lm.arpa utt1.feat utt2.feat

  # Write the lattices too
  wordlattice -f wordlattice.yaml decode --slf-dir lattices/ utt1.feat

  # Draw a finite-state grammar
  wordlattice grammar dot --grammar-type fsm --grammar digits.yaml | dot -Tpng > digits.png`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "f", "", "configuration file (YAML)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&hmmPath, "hmm", "", "acoustic model (msgpack)")
	pf.StringVar(&lexiconPath, "lexicon", "", "pronunciation dictionary")
	pf.StringVar(&grammarPath, "grammar", "", "grammar file (ARPA or YAML FSM)")
	pf.StringVar(&grammarType, "grammar-type", "", "grammar type: ngram or fsm")
	pf.Float64Var(&beam, "beam", 0, "beam width, natural log")
	pf.IntVar(&histogram, "histogram", 0, "maximum live hypotheses per frame")
	pf.Float64Var(&gsf, "gsf", 0, "grammar scale factor")
	pf.Float64Var(&wip, "wip", 0, "word insertion penalty")
	pf.IntVar(&nbest, "nbest", 0, "lattice edges kept into the final node")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(grammarCmd)
	rootCmd.AddCommand(latticeCmd)
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	setLogLevel(level)
}

func setLogLevel(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadConfig builds the configuration from the file given with --config
// and the flags that were set, then validates it. A configuration file
// must be complete on its own.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, err
		}
		if !verbose {
			setLogLevel(cfg.LogLevel.Level())
		}
	}
	applyFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("hmm") {
		cfg.Models.HMM = hmmPath
	}
	if flags.Changed("lexicon") {
		cfg.Models.Lexicon = lexiconPath
	}
	if flags.Changed("grammar") {
		cfg.Models.Grammar = grammarPath
	}
	if flags.Changed("grammar-type") {
		cfg.Models.GrammarType = config.GrammarType(grammarType)
	}
	if flags.Changed("beam") {
		cfg.Search.Beam = beam
	}
	if flags.Changed("histogram") {
		cfg.Search.HistogramPruning = histogram
	}
	if flags.Changed("gsf") {
		cfg.Search.GSF = gsf
	}
	if flags.Changed("wip") {
		cfg.Search.WIP = wip
	}
	if flags.Changed("nbest") {
		cfg.Search.NBest = nbest
	}
}
