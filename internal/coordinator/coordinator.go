// Package coordinator keeps the device snapshot fresh: it polls the Aldes
// API on a fixed interval and owns the single published snapshot that all
// consumers read.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiagfernandes/aldes-bridge/internal/logger"
	"github.com/tiagfernandes/aldes-bridge/internal/models"
)

// ErrNoSnapshot indicates a refresh failed before any snapshot was ever
// applied; the bridge has no state to serve yet.
var ErrNoSnapshot = errors.New("no device snapshot available")

const (
	// defaultPollInterval is deliberately tight so commanded-state
	// verification observes writes quickly.
	defaultPollInterval = time.Minute
	// fetchTimeout bounds one refresh cycle.
	fetchTimeout = 10 * time.Second
)

// Fetcher is the slice of the API client the coordinator needs.
type Fetcher interface {
	FetchData(ctx context.Context) (*models.DeviceSnapshot, error)
}

// Coordinator polls a Fetcher and publishes immutable snapshots.
type Coordinator struct {
	api      Fetcher
	log      *logger.Logger
	interval time.Duration

	skipNext atomic.Bool

	mu       sync.RWMutex
	snapshot *models.DeviceSnapshot

	subsMu sync.Mutex
	subs   map[chan *models.DeviceSnapshot]struct{}

	verifyMu sync.Mutex
	verify   map[string]*verifyTask

	runMu  sync.Mutex
	runCtx context.Context
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithInterval overrides the polling interval.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

// New creates a coordinator. Run starts the poll loop.
func New(api Fetcher, log *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:      api,
		log:      log,
		interval: defaultPollInterval,
		subs:     make(map[chan *models.DeviceSnapshot]struct{}),
		verify:   make(map[string]*verifyTask),
		runCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run refreshes immediately, then on every tick until ctx is cancelled.
// Run usually executes in its own goroutine; the run context is published
// under a mutex because verification tasks read it from handler
// goroutines.
func (c *Coordinator) Run(ctx context.Context) {
	c.setRunContext(ctx)
	if err := c.Refresh(ctx); err != nil {
		c.log.Warnw("initial refresh failed", "err", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Infow("coordinator stopping")
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.log.Warnw("refresh failed", "err", err)
			}
		}
	}
}

// Refresh performs one poll cycle. A set skip-next flag consumes the tick
// without touching the snapshot. A nil result or an error preserves the
// previous snapshot when one exists; only with no prior snapshot does the
// failure surface to the caller.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.skipNext.CompareAndSwap(true, false) {
		c.log.Debugw("skipping poll after local write")
		return nil
	}
	return c.refresh(ctx)
}

// refresh fetches unconditionally, ignoring the skip-next flag. Used by
// verification tasks, which need a fresh read of server state.
func (c *Coordinator) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	snap, err := c.api.FetchData(ctx)
	if err != nil || snap == nil {
		if prev := c.Snapshot(); prev != nil {
			c.log.Warnw("fetch produced no snapshot, keeping previous", "err", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoSnapshot, err)
		}
		return ErrNoSnapshot
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

func (c *Coordinator) setRunContext(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.runCtx = ctx
}

func (c *Coordinator) runContext() context.Context {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.runCtx
}

// Snapshot returns the current snapshot, or nil before the first
// successful refresh. The returned value is never mutated afterwards.
func (c *Coordinator) Snapshot() *models.DeviceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Ready reports whether at least one snapshot has been applied.
func (c *Coordinator) Ready() bool {
	return c.Snapshot() != nil
}

// SkipNextUpdate arms the skip flag. Callers set it right after an
// optimistic local write so the next poll cannot clobber the written
// state with a stale server read.
func (c *Coordinator) SkipNextUpdate() {
	c.skipNext.Store(true)
}

// OverwritePlanning replaces one planning program on the in-memory
// snapshot as a local, un-persisted edit, and publishes the result.
func (c *Coordinator) OverwritePlanning(program models.PlanningProgram, slots []models.PlanningSlot) error {
	c.mu.Lock()
	if c.snapshot == nil {
		c.mu.Unlock()
		return ErrNoSnapshot
	}
	snap := c.snapshot.Clone()
	snap.SetPlanning(program, slots)
	c.snapshot = snap
	c.mu.Unlock()

	c.log.Infow("planning overwritten locally", "program", string(program), "slots", len(slots))
	c.publish(snap)
	return nil
}

// Subscribe registers a channel receiving every applied snapshot. The
// returned func unregisters it. Slow subscribers are skipped, never
// blocking the poll loop.
func (c *Coordinator) Subscribe() (<-chan *models.DeviceSnapshot, func()) {
	ch := make(chan *models.DeviceSnapshot, 1)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	cancel := func() {
		c.subsMu.Lock()
		delete(c.subs, ch)
		c.subsMu.Unlock()
	}
	return ch, cancel
}

func (c *Coordinator) publish(snap *models.DeviceSnapshot) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
