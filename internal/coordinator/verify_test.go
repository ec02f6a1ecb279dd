package coordinator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tiagfernandes/aldes-bridge/internal/logger"
	"github.com/tiagfernandes/aldes-bridge/internal/models"
)

func TestScheduleVerification_ResendsOnceWhenNotReflected(t *testing.T) {
	t.Parallel()

	// The fetch keeps returning mode off, so the check never passes.
	f := &stubFetcher{results: []fetchResult{{snap: snapWithModem("M1")}}}
	c := newTestCoordinator(f)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	var resends atomic.Int32
	c.ScheduleVerification("air-mode", 10*time.Millisecond,
		func(snap *models.DeviceSnapshot) bool {
			return snap.Indicator.CurrentAirMode == models.AirModeHeatComfort
		},
		func(ctx context.Context) error {
			resends.Add(1)
			return nil
		})

	deadline := time.Now().Add(2 * time.Second)
	for resends.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("verification never re-sent the command")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The task re-sends at most once.
	time.Sleep(100 * time.Millisecond)
	if got := resends.Load(); got != 1 {
		t.Errorf("expected exactly 1 re-send, got %d", got)
	}
}

func TestScheduleVerification_NoResendWhenReflected(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{results: []fetchResult{{snap: snapWithModem("M1")}}}
	c := newTestCoordinator(f)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	var resends atomic.Int32
	done := make(chan struct{})
	c.ScheduleVerification("air-mode", 10*time.Millisecond,
		func(snap *models.DeviceSnapshot) bool {
			close(done)
			return true
		},
		func(ctx context.Context) error {
			resends.Add(1)
			return nil
		})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("verification check never ran")
	}
	time.Sleep(50 * time.Millisecond)
	if got := resends.Load(); got != 0 {
		t.Errorf("expected no re-send for a reflected command, got %d", got)
	}
}

func TestScheduleVerification_NewerCommandSupersedes(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{results: []fetchResult{{snap: snapWithModem("M1")}}}
	c := newTestCoordinator(f)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	var firstResends, secondResends atomic.Int32
	never := func(*models.DeviceSnapshot) bool { return false }

	c.ScheduleVerification("air-mode", 500*time.Millisecond, never,
		func(ctx context.Context) error { firstResends.Add(1); return nil })
	c.ScheduleVerification("air-mode", 10*time.Millisecond, never,
		func(ctx context.Context) error { secondResends.Add(1); return nil })

	deadline := time.Now().Add(2 * time.Second)
	for secondResends.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("superseding verification never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(600 * time.Millisecond)
	if got := firstResends.Load(); got != 0 {
		t.Errorf("superseded verification must not re-send, got %d", got)
	}
	if got := secondResends.Load(); got != 1 {
		t.Errorf("expected exactly 1 re-send from the replacement, got %d", got)
	}
}

func TestScheduleVerification_ConcurrentWithRun(t *testing.T) {
	t.Parallel()

	// Mode writes arm verifications from handler goroutines while the
	// poll loop is starting up; both touch the run context.
	f := &stubFetcher{results: []fetchResult{{snap: snapWithModem("M1")}}}
	c := New(f, logger.Get(logger.ErrorLevel), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	for i := 0; i < 10; i++ {
		c.ScheduleVerification("air-mode", time.Minute,
			func(*models.DeviceSnapshot) bool { return true },
			func(context.Context) error { return nil })
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestScheduleVerification_DefaultDelay(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{results: []fetchResult{{snap: snapWithModem("M1")}}}
	c := newTestCoordinator(f)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	before := f.callCount()
	c.ScheduleVerification("water-mode", 0,
		func(*models.DeviceSnapshot) bool { return true },
		func(context.Context) error { return nil })

	// With the 15s default delay nothing runs within this window.
	time.Sleep(50 * time.Millisecond)
	if got := f.callCount(); got != before {
		t.Errorf("verification ran before its delay elapsed: %d fetches", got-before)
	}
}
