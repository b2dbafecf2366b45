package backup

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Scheduler runs the backup job periodically via a background goroutine.
type Scheduler struct {
	runFn    func(ctx context.Context) error
	interval time.Duration
	sf       singleflight.Group // coalesces overlapping runs (ticker + manual trigger)
	trigger  chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates and starts a periodic scheduler. The runFn is called
// on each tick and on every Trigger. If interval is 0, no goroutine is started.
func NewScheduler(runFn func(ctx context.Context) error, interval time.Duration) *Scheduler {
	s := &Scheduler{
		runFn:    runFn,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if interval > 0 {
		go s.run()
	} else {
		close(s.done)
	}

	return s
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-ticker.C:
		case <-s.trigger:
		case <-s.stop:
			return
		}
		if err := s.RunOnce(context.Background()); err != nil {
			slog.Error("scheduled backup run failed", "error", err)
		}
	}
}

// Trigger requests a run outside the regular schedule. Requests made while a
// run is pending are dropped.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunOnce executes a single run. Concurrent callers share one execution
// rather than starting a second job.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, err, shared := s.sf.Do("run", func() (any, error) {
		return nil, s.runFn(ctx)
	})
	if shared {
		slog.Debug("backup run coalesced with one already in progress")
	}
	return err
}

// Shutdown stops the periodic scheduler and waits for it to finish.
func (s *Scheduler) Shutdown() {
	close(s.stop)
	<-s.done
}
