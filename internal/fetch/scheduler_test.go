package fetch

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/creatorstation/radarlcd/internal/cache"
	"github.com/creatorstation/radarlcd/internal/frame"
	"github.com/creatorstation/radarlcd/internal/journal"
	"github.com/creatorstation/radarlcd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const step = 5 * time.Minute

var quiet = log.New(io.Discard, "", 0)

func at(h, m int) frame.Identity {
	return frame.At(time.Date(2024, 7, 1, h, m, 0, 0, time.UTC), step)
}

type fakeSource struct {
	mu         sync.Mutex
	latest     frame.Identity
	resolveErr error
	failOn     map[string]error
	fetched    []string
	onFetch    func(id frame.Identity)
}

func (f *fakeSource) ResolveLatest(ctx context.Context) (frame.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return frame.Identity{}, f.resolveErr
	}
	return f.latest, nil
}

func (f *fakeSource) Fetch(ctx context.Context, id frame.Identity) ([]byte, error) {
	if f.onFetch != nil {
		f.onFetch(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[id.Key()]; err != nil {
		return nil, err
	}
	f.fetched = append(f.fetched, id.Key())
	return []byte("png:" + id.Key()), nil
}

func (f *fakeSource) fetchedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

type memJournal struct {
	mu     sync.Mutex
	cycles []journal.Cycle
}

func (m *memJournal) Record(ctx context.Context, c journal.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, c)
	return nil
}

type fixture struct {
	src     *fakeSource
	dir     *cache.Dir
	store   *store.Store
	journal *memJournal
	sched   *Scheduler
}

func newFixture(t *testing.T, size int) *fixture {
	t.Helper()
	dir, err := cache.Open(filepath.Join(t.TempDir(), "tmp"), time.UTC)
	require.NoError(t, err)
	f := &fixture{
		src:     &fakeSource{latest: at(12, 0)},
		dir:     dir,
		store:   store.New(),
		journal: &memJournal{},
	}
	f.sched = New(f.src, f.dir, f.store, Config{
		WindowSize: size,
		Step:       step,
		Interval:   90 * time.Second,
		MaxBackoff: 15 * time.Minute,
	}, WithLogger(quiet), WithJournal(f.journal))
	return f
}

func TestCyclePublishesWindow(t *testing.T) {
	f := newFixture(t, 3)

	w, err := f.sched.RunCycle(context.Background())

	require.NoError(t, err)
	want := []string{"20240701_115000", "20240701_115500", "20240701_120000"}
	assert.Equal(t, want, w.Keys())
	assert.Equal(t, want, f.store.Snapshot().Keys())
	assert.NoError(t, f.store.Snapshot().Validate(3, step))
	for _, id := range w {
		assert.True(t, f.dir.Exists(id))
	}
	assert.Empty(t, f.store.Staged())

	require.Len(t, f.journal.cycles, 1)
	c := f.journal.cycles[0]
	assert.Equal(t, journal.Published, c.Outcome)
	assert.Equal(t, 3, c.Fetched)
	assert.Equal(t, "20240701_120000", c.Latest)
	assert.NotEmpty(t, c.ID)
}

func TestCycleWindowSizeTwelve(t *testing.T) {
	f := newFixture(t, 12)

	w, err := f.sched.RunCycle(context.Background())

	require.NoError(t, err)
	assert.NoError(t, w.Validate(12, step))
	last, _ := w.Last()
	assert.True(t, last.Equal(at(12, 0)))
}

func TestCycleReusesCachedArtifacts(t *testing.T) {
	f := newFixture(t, 3)
	require.NoError(t, f.dir.Write(at(11, 55), []byte("cached")))

	_, err := f.sched.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"20240701_115000", "20240701_120000"}, f.src.fetchedKeys())
	data, err := f.dir.Read(at(11, 55))
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), data)
}

func TestSameLatestTwiceDownloadsOnce(t *testing.T) {
	f := newFixture(t, 3)

	first, err := f.sched.RunCycle(context.Background())
	require.NoError(t, err)
	second, err := f.sched.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Len(t, f.src.fetchedKeys(), 3)
	assert.Equal(t, 3, f.journal.cycles[1].Reused)
	assert.Zero(t, f.journal.cycles[1].Fetched)
}

func TestAdvancingLatestFetchesOnlyNewFrame(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.sched.RunCycle(context.Background())
	require.NoError(t, err)

	f.src.latest = at(12, 5)
	w, err := f.sched.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"20240701_115500", "20240701_120000", "20240701_120500"}, w.Keys())
	assert.Equal(t, []string{"20240701_115000", "20240701_115500", "20240701_120000", "20240701_120500"}, f.src.fetchedKeys())
}

func TestResolveFailureKeepsWindow(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.sched.RunCycle(context.Background())
	require.NoError(t, err)
	before := f.store.Snapshot()

	f.src.resolveErr = errors.New("connection refused")
	f.src.latest = at(12, 5)
	_, err = f.sched.RunCycle(context.Background())

	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, f.store.Snapshot().Equal(before))
	assert.Equal(t, journal.ResolveFailed, f.sched.Status().LastCycle.Outcome)
	assert.Equal(t, 1, f.sched.Status().ConsecutiveFailures)
}

func TestFetchFailureIsAllOrNothing(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.sched.RunCycle(context.Background())
	require.NoError(t, err)
	before := f.store.Snapshot()

	f.src.latest = at(12, 10)
	f.src.failOn = map[string]error{"20240701_121000": errors.New("404 Not Found")}
	_, err = f.sched.RunCycle(context.Background())

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "20240701_121000", ferr.ID.Key())
	assert.True(t, f.store.Snapshot().Equal(before), "a failed cycle publishes nothing")
	assert.Empty(t, f.store.Staged())
	assert.Equal(t, journal.FetchFailed, f.journal.cycles[1].Outcome)
	assert.Contains(t, f.journal.cycles[1].Error, "404")
}

func TestFetchFailureBeforeFirstPublish(t *testing.T) {
	f := newFixture(t, 3)
	f.src.failOn = map[string]error{"20240701_115500": errors.New("timeout")}

	_, err := f.sched.RunCycle(context.Background())

	require.Error(t, err)
	_, lerr := f.store.Latest()
	assert.ErrorIs(t, lerr, store.ErrEmpty)
}

func TestVanishedArtifactAbortsPublish(t *testing.T) {
	f := newFixture(t, 3)
	require.NoError(t, f.dir.Write(at(11, 55), []byte("cached")))
	f.src.onFetch = func(id frame.Identity) {
		if id.Equal(at(12, 0)) {
			require.NoError(t, f.dir.Remove(at(11, 55)))
		}
	}

	_, err := f.sched.RunCycle(context.Background())

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.Equal(t, "20240701_115500", ferr.ID.Key())
	_, lerr := f.store.Latest()
	assert.ErrorIs(t, lerr, store.ErrEmpty)
	assert.Empty(t, f.store.Staged())
	assert.Equal(t, journal.FetchFailed, f.journal.cycles[0].Outcome)
}

func TestCandidatesAreStagedWhileFetching(t *testing.T) {
	f := newFixture(t, 3)
	var staged []string
	f.src.onFetch = func(id frame.Identity) {
		if staged == nil {
			staged = f.store.Staged().Keys()
		}
	}

	_, err := f.sched.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"20240701_115000", "20240701_115500", "20240701_120000"}, staged)
}

func TestCancelledCycleDoesNotPublish(t *testing.T) {
	f := newFixture(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	f.src.onFetch = func(id frame.Identity) { cancel() }

	_, err := f.sched.RunCycle(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.Snapshot())
	assert.Empty(t, f.store.Staged())
	assert.Equal(t, journal.Cancelled, f.journal.cycles[0].Outcome)
	assert.Zero(t, f.sched.Status().ConsecutiveFailures, "shutdown is not a failure")
}

func TestConcurrentCycleRejected(t *testing.T) {
	f := newFixture(t, 3)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.src.onFetch = func(id frame.Identity) {
		once.Do(func() { close(entered) })
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.sched.RunCycle(context.Background())
		done <- err
	}()
	<-entered

	assert.Equal(t, Fetching, f.sched.Status().State)
	_, err := f.sched.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Idle, f.sched.Status().State)
}

func TestStartRunsInBackground(t *testing.T) {
	f := newFixture(t, 3)
	release := make(chan struct{})
	f.src.onFetch = func(id frame.Identity) { <-release }

	require.NoError(t, f.sched.Start(context.Background()))
	assert.ErrorIs(t, f.sched.Start(context.Background()), ErrCycleInProgress)

	close(release)
	assert.Eventually(t, func() bool {
		st := f.sched.Status()
		return st.State == Idle && st.LastCycle != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"20240701_115000", "20240701_115500", "20240701_120000"}, f.store.Snapshot().Keys())
}

func TestBackoffSkipsTicks(t *testing.T) {
	f := newFixture(t, 3)
	f.src.resolveErr = errors.New("dns failure")
	ctx := context.Background()

	f.sched.tick(ctx) // failure 1: no skip
	assert.Equal(t, 0, f.sched.Status().SkipTicks)
	f.sched.tick(ctx) // failure 2: skip 1
	assert.Equal(t, 1, f.sched.Status().SkipTicks)
	f.sched.tick(ctx) // skipped
	assert.Len(t, f.journal.cycles, 2)
	f.sched.tick(ctx) // failure 3: skip 3
	assert.Equal(t, 3, f.sched.Status().SkipTicks)

	f.src.resolveErr = nil
	for i := 0; i < 3; i++ {
		f.sched.tick(ctx)
	}
	assert.Len(t, f.journal.cycles, 3)
	f.sched.tick(ctx)
	assert.Len(t, f.journal.cycles, 4)
	assert.Equal(t, journal.Published, f.journal.cycles[3].Outcome)
	assert.Zero(t, f.sched.Status().ConsecutiveFailures)
}

func TestBackoffIsCapped(t *testing.T) {
	f := newFixture(t, 3)

	assert.Equal(t, 0, f.sched.backoffTicks(1))
	assert.Equal(t, 1, f.sched.backoffTicks(2))
	assert.Equal(t, 7, f.sched.backoffTicks(4))
	assert.Equal(t, 9, f.sched.backoffTicks(5), "15m cap at 90s cadence")
	assert.Equal(t, 9, f.sched.backoffTicks(50))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, 3)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
