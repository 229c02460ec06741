package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ieee0824/wordlattice"
	"github.com/ieee0824/wordlattice/internal/store"
)

var storeDir string

var latticeCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Inspect stored lattices",
	Long: `Inspect the lattice store filled by decode when store.dir is configured.

Examples:
  wordlattice lattice list --store data/lattices
  wordlattice lattice show --store data/lattices 3f0c...
  wordlattice -f wordlattice.yaml lattice slf 3f0c... > utt.lat`,
}

var latticeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored utterances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.LatticeStore) error {
			w := cmd.OutOrStdout()
			for rec, err := range s.List(ctx) {
				if err != nil {
					return err
				}
				text := ""
				if rec.Result != nil {
					text = rec.Result.Text
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID, rec.CreatedAt.Format(time.RFC3339), rec.Utterance, text)
			}
			return nil
		})
	},
}

var latticeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the result of a stored utterance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		return withStore(cmd, func(ctx context.Context, s *store.LatticeStore) error {
			rec, err := s.Get(ctx, id)
			if err != nil {
				return err
			}
			showWords = true
			return printResultText(cmd.OutOrStdout(), rec.Utterance, rec.Result)
		})
	},
}

var latticeSLFCmd = &cobra.Command{
	Use:   "slf <id>",
	Short: "Write a stored lattice in HTK format",
	Long: `Write a stored lattice in HTK standard lattice format. Word names come from
the models, so the configuration used for decoding is required.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// the recognizer must not open the store a second time
		cfg.Store.Dir, cfg.Store.InMemory = "", false
		rec, err := wordlattice.NewRecognizer(cfg)
		if err != nil {
			return err
		}
		defer rec.Close()
		return withStore(cmd, func(ctx context.Context, s *store.LatticeStore) error {
			r, err := s.Get(ctx, id)
			if err != nil {
				return err
			}
			return writeStoredLattice(cmd.OutOrStdout(), rec, r)
		})
	},
}

func init() {
	latticeCmd.PersistentFlags().StringVar(&storeDir, "store", "", "lattice store directory (default store.dir)")
	latticeCmd.AddCommand(latticeListCmd)
	latticeCmd.AddCommand(latticeShowCmd)
	latticeCmd.AddCommand(latticeSLFCmd)
}

func withStore(cmd *cobra.Command, fn func(context.Context, *store.LatticeStore) error) error {
	dir := storeDir
	if dir == "" && cfgFile != "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir = cfg.Store.Dir
	}
	if dir == "" {
		return errors.New("no lattice store: use --store or store.dir")
	}
	s, err := store.Open(store.Options{Dir: dir})
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), s)
}

func writeStoredLattice(w io.Writer, rec *wordlattice.Recognizer, r *store.Record) error {
	if r.Lattice == nil {
		return fmt.Errorf("record %s has no lattice", r.ID)
	}
	return r.Lattice.WriteSLF(w, rec.Decoder.SLFOptions(r.Utterance))
}
