package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creatorstation/radarlcd/internal/api"
	"github.com/creatorstation/radarlcd/internal/display"
	"github.com/creatorstation/radarlcd/internal/evict"
	"github.com/creatorstation/radarlcd/internal/fetch"
	"github.com/creatorstation/radarlcd/internal/journal"
	"github.com/creatorstation/radarlcd/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
)

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := openCache(cfg)
	if err != nil {
		return err
	}
	frames := store.New()

	recorder, closeJournal, err := journal.Open(ctx, cfg.JournalURI)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer closeJournal()

	fetcher := fetch.New(newSource(cfg), dir, frames, fetchConfig(cfg), fetch.WithJournal(recorder))

	sinks, web := newSinks(cfg)
	trigger, soft, err := newTrigger(cfg)
	if err != nil {
		return err
	}
	backlight, err := newBacklight(cfg)
	if err != nil {
		return err
	}

	screen := display.New(display.Deps{
		Frames:       frames,
		Artifacts:    dir,
		Sink:         sinks,
		Trigger:      trigger,
		Backlight:    backlight,
		Sweeper:      evict.New(dir, frames, nil),
		Fetcher:      fetcher,
		Placeholders: display.LoadPlaceholders(cfg.NotReadyImage, cfg.ErrorImage, cfg.DisplayWidth, cfg.DisplayHeight),
	}, displayConfig(cfg))

	var wg sync.WaitGroup
	var app *fiber.App
	if cfg.HTTPAddr != "" {
		app = fiber.New(fiber.Config{DisableStartupMessage: true})
		api.MountController(app.Group("/"), api.Deps{
			Context:   ctx,
			Frames:    frames,
			Artifacts: dir,
			Fetcher:   fetcher,
			Trigger:   soft,
			Screen:    web,
			Location:  cfg.Location(),
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Listening on %s", cfg.HTTPAddr)
			if err := app.Listen(cfg.HTTPAddr); err != nil {
				log.Printf("HTTP server stopped: %v", err)
			}
		}()
	}

	screen.Startup(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fetcher.Run(ctx); err != nil {
			log.Printf("Fetch scheduler stopped: %v", err)
		}
	}()

	screen.Loop(ctx)
	log.Println("Shutting down")

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("Error shutting down HTTP server: %v", err)
		}
	}
	wg.Wait()
	return nil
}
