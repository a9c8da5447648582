package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alexjbarnes/notesync/internal/netmon"
)

// DefaultSyncInterval is the periodic pass interval while online.
const DefaultSyncInterval = 30 * time.Second

// Trigger names what started a pass.
type Trigger string

const (
	TriggerStart  Trigger = "start"
	TriggerOnline Trigger = "online"
	TriggerTick   Trigger = "tick"
	TriggerWrite  Trigger = "write"
)

// Ticker is the subset of *time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Scheduler starts passes on startup, on every offline to online edge,
// on a periodic tick while online, and after successful write-path
// pushes. Passes run on their own goroutine so a trigger that arrives
// mid-pass reaches the engine and is dropped rather than queued.
type Scheduler struct {
	engine    *Engine
	monitor   *netmon.Monitor
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	logger    *slog.Logger

	// onPass observes every finished pass. Used by tests.
	onPass func(Trigger, Report)
}

// NewScheduler returns a scheduler for engine. A non-positive interval
// uses DefaultSyncInterval.
func NewScheduler(engine *Engine, monitor *netmon.Monitor, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	return &Scheduler{
		engine:    engine,
		monitor:   monitor,
		interval:  interval,
		newTicker: newTimeTicker,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Run blocks until ctx is cancelled, then waits for an in-flight pass to
// finish.
func (s *Scheduler) Run(ctx context.Context) error {
	transitions, unsubscribe := s.monitor.Subscribe()
	defer unsubscribe()

	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	fire := func(t Trigger) {
		wg.Add(1)

		go func() {
			defer wg.Done()
			s.run(ctx, t)
		}()
	}

	fire(TriggerStart)

	for {
		select {
		case <-ctx.Done():
			return nil

		case tr := <-transitions:
			if tr.Direction == netmon.Online {
				fire(TriggerOnline)
			}

		case <-ticker.C():
			if s.engine.IsOnline() {
				fire(TriggerTick)
			}

		case <-s.engine.Requests():
			fire(TriggerWrite)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, t Trigger) {
	report := s.engine.TriggerSync(ctx)

	switch report.Outcome {
	case OutcomeDropped:
		s.logger.Debug("pass already running, trigger dropped", slog.String("trigger", string(t)))
	case OutcomeSkipped:
		s.logger.Debug("offline, pass skipped", slog.String("trigger", string(t)))
	case OutcomeFailed:
		s.logger.Warn("pass failed",
			slog.String("trigger", string(t)),
			slog.String("error", report.Err.Error()),
		)
	default:
		s.logger.Debug("pass finished",
			slog.String("trigger", string(t)),
			slog.Duration("took", report.Duration),
		)
	}

	if s.onPass != nil {
		s.onPass(t, report)
	}
}
