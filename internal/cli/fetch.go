package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/creatorstation/radarlcd/internal/evict"
	"github.com/creatorstation/radarlcd/internal/fetch"
	"github.com/creatorstation/radarlcd/internal/journal"
	"github.com/creatorstation/radarlcd/internal/store"
	"github.com/spf13/cobra"
)

var flagPrune bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch cycle and print the cached window",
	Long: `Resolve the newest radar frame, download every missing frame of the window
into the cache directory and print the window, oldest first.

With --prune, cached frames outside the new window are deleted afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		dir, err := openCache(cfg)
		if err != nil {
			return err
		}

		recorder, closeJournal, err := journal.Open(ctx, cfg.JournalURI)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer closeJournal()

		frames := store.New()
		window, err := fetch.New(newSource(cfg), dir, frames, fetchConfig(cfg), fetch.WithJournal(recorder)).RunCycle(ctx)
		if err != nil {
			return err
		}

		for _, id := range window {
			fmt.Println(dir.Path(id))
		}

		if flagPrune {
			res := evict.New(dir, frames, nil).Sweep()
			fmt.Printf("Pruned %d of %d cached frame(s).\n", len(res.Removed), res.Scanned)
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d frame(s) could not be deleted", len(res.Failed))
			}
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the newest frame available remotely",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		src := newSource(cfg)
		latest, err := src.ResolveLatest(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", latest.Key(), src.ImageURL(latest))
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&flagPrune, "prune", false, "delete cached frames outside the window")
}
