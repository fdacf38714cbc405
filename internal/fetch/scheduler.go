// Package fetch keeps the cached frame window current. A cycle resolves the
// newest remote frame, makes sure every frame of the window is on disk, and
// publishes the window only when all of them are.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/creatorstation/radarlcd/internal/frame"
	"github.com/creatorstation/radarlcd/internal/journal"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Source is the remote side of the cache.
type Source interface {
	ResolveLatest(ctx context.Context) (frame.Identity, error)
	Fetch(ctx context.Context, id frame.Identity) ([]byte, error)
}

// Artifacts is the on-disk side of the cache.
type Artifacts interface {
	Exists(id frame.Identity) bool
	Write(id frame.Identity, data []byte) error
}

// Publisher receives the windows produced by the scheduler.
type Publisher interface {
	Publish(w frame.Window)
	Stage(w frame.Window)
	Unstage()
}

type State string

const (
	Idle       State = "idle"
	Resolving  State = "resolving"
	Fetching   State = "fetching"
	Publishing State = "publishing"
)

type Config struct {
	WindowSize int
	Step       time.Duration
	// Interval is the cron cadence of cycles.
	Interval time.Duration
	// MaxBackoff caps how long repeated failures may push the next cycle out.
	MaxBackoff time.Duration
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State               State          `json:"state"`
	LastCycle           *journal.Cycle `json:"last_cycle,omitempty"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	SkipTicks           int            `json:"skip_ticks"`
}

type Scheduler struct {
	source    Source
	artifacts Artifacts
	store     Publisher
	journal   journal.Recorder
	cfg       Config
	logger    *log.Logger
	now       func() time.Time

	running sync.Mutex

	mu     sync.Mutex
	status Status
}

type Option func(*Scheduler)

func WithJournal(r journal.Recorder) Option { return func(s *Scheduler) { s.journal = r } }

func WithLogger(l *log.Logger) Option { return func(s *Scheduler) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

func New(source Source, artifacts Artifacts, store Publisher, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:    source,
		artifacts: artifacts,
		store:     store,
		journal:   journal.Nop{},
		cfg:       cfg,
		logger:    log.Default(),
		now:       time.Now,
		status:    Status{State: Idle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run schedules a cycle every Interval until ctx is cancelled. A cycle still
// running at cancellation is abandoned without publishing.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cron.PrintfLogger(s.logger)
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(s.cfg.Interval), cron.FuncJob(func() { s.tick(ctx) }))

	c.Start()
	s.logger.Printf("Fetch cycle scheduled every %v", s.cfg.Interval)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Println("Fetch scheduler stopped")
	return nil
}

// tick is the scheduled entry point; it honors the failure backoff.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.status.SkipTicks > 0 {
		s.status.SkipTicks--
		left := s.status.SkipTicks
		s.mu.Unlock()
		s.logger.Printf("Backing off after %d failed cycles, %d more ticks to skip", s.Status().ConsecutiveFailures, left)
		return
	}
	s.mu.Unlock()

	if _, err := s.RunCycle(ctx); errors.Is(err, ErrCycleInProgress) {
		s.logger.Println("Skipping scheduled fetch: a cycle is already running")
	}
}

// RunCycle runs one cycle now. It returns the published window, or the error
// that made the cycle publish nothing. It fails fast with ErrCycleInProgress
// if another cycle is running.
func (s *Scheduler) RunCycle(ctx context.Context) (frame.Window, error) {
	if !s.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.running.Unlock()
	return s.runLocked(ctx)
}

// Start runs one cycle in the background. Like RunCycle it fails with
// ErrCycleInProgress when a cycle is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.TryLock() {
		return ErrCycleInProgress
	}
	go func() {
		defer s.running.Unlock()
		s.runLocked(ctx)
	}()
	return nil
}

func (s *Scheduler) runLocked(ctx context.Context) (frame.Window, error) {
	rec := journal.Cycle{ID: uuid.NewString(), StartedAt: s.now()}
	s.logger.Printf("[%s] Starting fetch cycle", rec.ID[:8])

	window, err := s.cycle(ctx, &rec)
	rec.FinishedAt = s.now()
	if err != nil {
		rec.Error = err.Error()
	}
	s.finish(rec)

	if err != nil {
		s.logger.Printf("[%s] Fetch cycle %s: %v", rec.ID[:8], rec.Outcome, err)
	} else {
		s.logger.Printf("[%s] Fetch cycle published %s (%d fetched, %d reused)", rec.ID[:8], rec.Latest, rec.Fetched, rec.Reused)
	}

	jctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if jerr := s.journal.Record(jctx, rec); jerr != nil {
		s.logger.Printf("[%s] Error recording fetch cycle: %v", rec.ID[:8], jerr)
	}
	return window, err
}

func (s *Scheduler) cycle(ctx context.Context, rec *journal.Cycle) (frame.Window, error) {
	defer s.setState(Idle)

	s.setState(Resolving)
	latest, err := s.source.ResolveLatest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.cancelled(ctx, rec)
		}
		rec.Outcome = journal.ResolveFailed
		return nil, &ResolveError{Err: err}
	}
	rec.Latest = latest.Key()

	window := frame.NewWindow(latest, s.cfg.WindowSize, s.cfg.Step)
	if len(window) == 0 {
		rec.Outcome = journal.ResolveFailed
		return nil, &ResolveError{Err: fmt.Errorf("empty window for %s", latest)}
	}

	s.setState(Fetching)
	s.store.Stage(window)
	published := false
	defer func() {
		if !published {
			s.store.Unstage()
		}
	}()

	for _, id := range window {
		if ctx.Err() != nil {
			return nil, s.cancelled(ctx, rec)
		}
		if s.artifacts.Exists(id) {
			rec.Reused++
			continue
		}
		s.logger.Printf("[%s] Downloading frame %s", rec.ID[:8], id.Key())
		data, err := s.source.Fetch(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, s.cancelled(ctx, rec)
			}
			rec.Outcome = journal.FetchFailed
			return nil, &FetchError{ID: id, Err: err}
		}
		if err := s.artifacts.Write(id, data); err != nil {
			rec.Outcome = journal.FetchFailed
			return nil, &FetchError{ID: id, Err: err}
		}
		rec.Fetched++
	}
	if ctx.Err() != nil {
		return nil, s.cancelled(ctx, rec)
	}
	for _, id := range window {
		if !s.artifacts.Exists(id) {
			rec.Outcome = journal.FetchFailed
			return nil, &FetchError{ID: id, Err: ErrArtifactMissing}
		}
	}

	s.setState(Publishing)
	s.store.Publish(window)
	published = true
	rec.Outcome = journal.Published
	return window, nil
}

func (s *Scheduler) cancelled(ctx context.Context, rec *journal.Cycle) error {
	rec.Outcome = journal.Cancelled
	return fmt.Errorf("fetch cycle abandoned: %w", ctx.Err())
}

// finish updates the status and the failure backoff. After k consecutive
// failures the next 2^(k-1)-1 scheduled ticks are skipped, capped by MaxBackoff.
func (s *Scheduler) finish(rec journal.Cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastCycle = &rec
	switch rec.Outcome {
	case journal.Published:
		s.status.ConsecutiveFailures = 0
		s.status.SkipTicks = 0
	case journal.Cancelled:
	default:
		s.status.ConsecutiveFailures++
		s.status.SkipTicks = s.backoffTicks(s.status.ConsecutiveFailures)
	}
}

func (s *Scheduler) backoffTicks(failures int) int {
	maxTicks := 0
	if s.cfg.Interval > 0 {
		maxTicks = int(s.cfg.MaxBackoff/s.cfg.Interval) - 1
	}
	if maxTicks < 0 {
		maxTicks = 0
	}
	ticks := 1
	for i := 1; i < failures && ticks <= maxTicks; i++ {
		ticks *= 2
	}
	ticks--
	if ticks > maxTicks {
		ticks = maxTicks
	}
	return ticks
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.status.State = st
	s.mu.Unlock()
}

// Status returns a copy of the current status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	if st.LastCycle != nil {
		c := *st.LastCycle
		st.LastCycle = &c
	}
	return st
}
