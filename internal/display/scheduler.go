// Package display drives the foreground presentation loop. It never waits on
// the network: it reacts to the trigger, the backlight and eviction timers,
// and to the newest published frame.
package display

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/creatorstation/radarlcd/internal/evict"
	"github.com/creatorstation/radarlcd/internal/frame"
)

// ErrMissingArtifact is logged when a frame to render has no artifact; the
// error placeholder is shown instead.
var ErrMissingArtifact = errors.New("frame artifact missing")

// Sink shows an image. progress is nil for a plain frame, or the position
// of the frame within a sequence sweep in (0, 1].
type Sink interface {
	Render(image []byte, progress *float64) error
}

type Trigger interface {
	Read() bool
}

type Backlight interface {
	Set(on bool) error
}

type Frames interface {
	Snapshot() frame.Window
	Latest() (frame.Identity, error)
}

type Artifacts interface {
	Read(id frame.Identity) ([]byte, error)
}

type Sweeper interface {
	Sweep() evict.Result
}

type Fetcher interface {
	RunCycle(ctx context.Context) (frame.Window, error)
}

type Config struct {
	Tick             time.Duration
	BacklightTimeout time.Duration
	EvictInterval    time.Duration
	// FrameDelay is how long each frame of a sequence sweep stays on screen.
	FrameDelay time.Duration
}

type Deps struct {
	Frames       Frames
	Artifacts    Artifacts
	Sink         Sink
	Trigger      Trigger
	Backlight    Backlight
	Sweeper      Sweeper
	Fetcher      Fetcher
	Placeholders Placeholders
	Logger       *log.Logger
	Now          func() time.Time
}

// Scheduler is the display state machine. Everything below deps is owned by
// the goroutine running Startup and Loop.
type Scheduler struct {
	deps Deps
	cfg  Config

	triggerPrev  bool
	backlightOn  bool
	backlightOff Deadline
	evictAt      Deadline
	lastShown    frame.Identity
}

func New(deps Deps, cfg Config) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	now := deps.Now()
	return &Scheduler{
		deps:         deps,
		cfg:          cfg,
		backlightOff: NewDeadline(now, cfg.BacklightTimeout),
		evictAt:      NewDeadline(now, cfg.EvictInterval),
	}
}

// Startup shows the not-ready placeholder, lights the display, runs one
// fetch cycle synchronously and shows the newest frame.
func (s *Scheduler) Startup(ctx context.Context) {
	s.render(s.deps.Placeholders.NotReady, nil)
	s.setBacklight(true)

	if _, err := s.deps.Fetcher.RunCycle(ctx); err != nil {
		s.deps.Logger.Printf("Initial fetch failed: %v", err)
	}
	s.renderLatest()

	now := s.deps.Now()
	s.backlightOff = NewDeadline(now, s.cfg.BacklightTimeout)
	s.evictAt = NewDeadline(now, s.cfg.EvictInterval)
}

// Loop runs Step every Tick until ctx is cancelled.
func (s *Scheduler) Loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step(ctx, s.deps.Now())
		}
	}
}

// Run is Startup followed by Loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.Startup(ctx)
	s.Loop(ctx)
}

// Step samples the inputs once and performs whatever became due.
func (s *Scheduler) Step(ctx context.Context, now time.Time) {
	if pressed := s.deps.Trigger.Read(); pressed != s.triggerPrev {
		s.triggerPrev = pressed
		if pressed {
			s.setBacklight(true)
			s.renderSequence(ctx)
			s.backlightOff.Reset(now)
		}
	}

	if s.backlightOn && s.backlightOff.Due(now) {
		s.setBacklight(false)
	}

	if s.evictAt.Due(now) {
		res := s.deps.Sweeper.Sweep()
		if len(res.Removed) > 0 || len(res.Failed) > 0 {
			s.deps.Logger.Printf("Eviction sweep removed %d artifacts, %d failures", len(res.Removed), len(res.Failed))
		}
		s.evictAt.Reset(now)
	}

	if latest, err := s.deps.Frames.Latest(); err == nil && !latest.Equal(s.lastShown) {
		s.renderLatest()
	}
}

// renderSequence shows every frame of the window oldest first with a
// progress bar, then the newest frame alone.
func (s *Scheduler) renderSequence(ctx context.Context) {
	window := s.deps.Frames.Snapshot()
	if len(window) == 0 {
		s.render(s.deps.Placeholders.Error, nil)
		return
	}

	for i, id := range window {
		progress := float64(i+1) / float64(len(window))
		s.renderFrame(id, &progress)
		if !sleep(ctx, s.cfg.FrameDelay) {
			return
		}
	}
	last, _ := window.Last()
	s.renderFrame(last, nil)
	s.lastShown = last
}

func (s *Scheduler) renderLatest() {
	last, ok := s.deps.Frames.Snapshot().Last()
	if !ok {
		s.render(s.deps.Placeholders.Error, nil)
		return
	}
	s.renderFrame(last, nil)
	s.lastShown = last
}

func (s *Scheduler) renderFrame(id frame.Identity, progress *float64) {
	data, err := s.deps.Artifacts.Read(id)
	if err != nil {
		s.deps.Logger.Println(fmt.Errorf("%w: %s: %v", ErrMissingArtifact, id.Key(), err))
		data = s.deps.Placeholders.Error
	}
	s.render(data, progress)
}

func (s *Scheduler) render(data []byte, progress *float64) {
	if err := s.deps.Sink.Render(data, progress); err != nil {
		s.deps.Logger.Printf("Error rendering frame: %v", err)
	}
}

func (s *Scheduler) setBacklight(on bool) {
	if err := s.deps.Backlight.Set(on); err != nil {
		s.deps.Logger.Printf("Error switching backlight: %v", err)
	}
	s.backlightOn = on
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
