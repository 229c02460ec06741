package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ieee0824/wordlattice"
	"github.com/ieee0824/wordlattice/decoder"
	"github.com/ieee0824/wordlattice/feature"
	"github.com/ieee0824/wordlattice/internal/observe"
)

var (
	slfDir       string
	outputFormat string
	showWords    bool
	workers      int
)

var decodeCmd = &cobra.Command{
	Use:   "decode <features>...",
	Short: "Decode feature files",
	Long: `Decode one or more feature files (msgpack) and print the best sentence of
each. With several files they are decoded in parallel.

Output formats:
  text   one "name<TAB>sentence" line per file (default)
  json   one JSON object per file
  yaml   a YAML document per file`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVar(&slfDir, "slf-dir", "", "write an HTK lattice per file into this directory")
	decodeCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml")
	decodeCmd.Flags().BoolVar(&showWords, "words", false, "list word spans in text output")
	decodeCmd.Flags().IntVarP(&workers, "workers", "j", 0, "parallel decoders (0 uses the configuration)")
}

type decodeOutput struct {
	Utterance string `json:"utterance" yaml:"utterance"`
	ID        string `json:"id" yaml:"id"`
	decoder.Result `yaml:",inline"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	switch outputFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	if slfDir != "" {
		if err := checkLatticeNames(args); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.Batch.Workers = workers
	}

	inputs := make([]wordlattice.Input, 0, len(args))
	for _, path := range args {
		feats, err := feature.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		inputs = append(inputs, wordlattice.Input{Name: utteranceName(path), Features: feats})
	}

	rec, err := wordlattice.NewRecognizer(cfg, wordlattice.WithMetrics(observe.DefaultMetrics()))
	if err != nil {
		return err
	}
	defer rec.Close()

	utts, err := rec.DecodeBatch(cmd.Context(), inputs)
	if err != nil {
		return err
	}

	if slfDir != "" {
		if err := os.MkdirAll(slfDir, 0o755); err != nil {
			return err
		}
		for _, u := range utts {
			if err := writeLattice(rec.Decoder, u, filepath.Join(slfDir, u.Name+".lat")); err != nil {
				return err
			}
		}
	}

	out := cmd.OutOrStdout()
	for _, u := range utts {
		if err := printUtterance(out, u); err != nil {
			return err
		}
	}
	return nil
}

func utteranceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// checkLatticeNames rejects inputs whose lattice files would overwrite each
// other in the --slf-dir directory.
func checkLatticeNames(paths []string) error {
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		name := utteranceName(path)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%s and %s both write %s.lat", prev, path, name)
		}
		seen[name] = path
	}
	return nil
}

func writeLattice(d *decoder.Decoder, u *wordlattice.Utterance, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := u.Lattice.WriteSLF(f, d.SLFOptions(u.Name)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printUtterance(w io.Writer, u *wordlattice.Utterance) error {
	switch outputFormat {
	case "json":
		return json.NewEncoder(w).Encode(decodeOutput{Utterance: u.Name, ID: u.ID.String(), Result: *u.Result})
	case "yaml":
		data, err := yaml.Marshal(decodeOutput{Utterance: u.Name, ID: u.ID.String(), Result: *u.Result})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "---\n%s", data)
		return err
	}
	return printResultText(w, u.Name, u.Result)
}

func printResultText(w io.Writer, name string, res *decoder.Result) error {
	mark := ""
	if res.Partial {
		mark = " (partial)"
	}
	if _, err := fmt.Fprintf(w, "%s\t%s%s\n", name, res.Text, mark); err != nil {
		return err
	}
	if !showWords {
		return nil
	}
	for _, wd := range res.Words {
		if _, err := fmt.Fprintf(w, "\t%5d %5d  %-20s %12.3f %12.3f\n",
			wd.StartFrame, wd.EndFrame, wd.Text, wd.Acoustic, wd.LM); err != nil {
			return err
		}
	}
	return nil
}
