package cli

import (
	"fmt"
	"log"

	"github.com/creatorstation/radarlcd/internal/cache"
	"github.com/creatorstation/radarlcd/internal/config"
	"github.com/creatorstation/radarlcd/internal/display"
	"github.com/creatorstation/radarlcd/internal/fetch"
	"github.com/creatorstation/radarlcd/internal/gpio"
	"github.com/creatorstation/radarlcd/internal/sink"
	"github.com/creatorstation/radarlcd/internal/source"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newSource(cfg *config.Config) *source.HTTPSource {
	return source.NewHTTP(source.Config{
		PageURL:        cfg.PageURL,
		ImageURLFormat: cfg.ImageURLFormat,
		ElementID:      cfg.ElementID,
		Location:       cfg.Location(),
		Step:           cfg.FrameStep,
		Timeout:        cfg.FetchTimeout,
		Retries:        cfg.FetchRetries,
		RetryWait:      cfg.FetchTimeout / 30,
		RetryMaxWait:   cfg.FetchTimeout / 3,
	})
}

func openCache(cfg *config.Config) (*cache.Dir, error) {
	dir, err := cache.Open(cfg.CacheDir, cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return dir, nil
}

func fetchConfig(cfg *config.Config) fetch.Config {
	return fetch.Config{
		WindowSize: cfg.WindowSize,
		Step:       cfg.FrameStep,
		Interval:   cfg.FetchInterval,
		MaxBackoff: cfg.MaxBackoff,
	}
}

func displayConfig(cfg *config.Config) display.Config {
	return display.Config{
		Tick:             cfg.TickInterval,
		BacklightTimeout: cfg.BacklightTimeout,
		EvictInterval:    cfg.EvictInterval,
		FrameDelay:       cfg.FrameDelay,
	}
}

// newSinks renders to the framebuffer when one is configured, and always to
// the web sink backing the HTTP surface.
func newSinks(cfg *config.Config) (sink.Multi, *sink.Web) {
	web := sink.NewWeb(cfg.DisplayWidth, cfg.DisplayHeight)
	sinks := sink.Multi{web}
	if cfg.Framebuffer != "" {
		sinks = append(sinks, sink.NewFramebuffer(cfg.Framebuffer, cfg.DisplayWidth, cfg.DisplayHeight))
	} else {
		log.Println("No framebuffer configured, logging renders instead")
		sinks = append(sinks, sink.Log{})
	}
	return sinks, web
}

// newTrigger combines the button pin, when configured, with the software
// trigger pressed over HTTP.
func newTrigger(cfg *config.Config) (gpio.AnyTrigger, *gpio.SoftTrigger, error) {
	soft := &gpio.SoftTrigger{}
	trig := gpio.AnyTrigger{soft}
	if cfg.TriggerPin != "" {
		pin, err := gpio.NewPinTrigger(cfg.TriggerPin)
		if err != nil {
			return nil, nil, err
		}
		trig = append(trig, pin)
	}
	return trig, soft, nil
}

func newBacklight(cfg *config.Config) (display.Backlight, error) {
	if cfg.BacklightPin == "" {
		return gpio.LogBacklight{}, nil
	}
	pin, err := gpio.NewPinBacklight(cfg.BacklightPin)
	if err != nil {
		return nil, err
	}
	return pin, nil
}
