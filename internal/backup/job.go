package backup

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/hatemosphere/pgrotate/internal/rotation"
)

// Report summarizes one job run across all tiers.
type Report struct {
	RunID      string
	StartedAt  time.Time // the "now" every tier was evaluated against
	FinishedAt time.Time
	Outcomes   []Outcome
	Complete   bool // every tier was attempted
}

// Failed returns the outcomes that recorded at least one error.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if len(o.Errors) > 0 {
			failed = append(failed, o)
		}
	}
	return failed
}

// Recorder receives the report of every finished run.
type Recorder interface {
	Record(ctx context.Context, report Report) error
}

// Job runs the rotator over a fixed, ordered set of tiers.
type Job struct {
	tiers     []rotation.Tier
	rotator   *Rotator
	producer  Producer
	clock     Clock
	recorders []Recorder
}

// NewJob creates a job. A nil clock uses SystemClock.
func NewJob(tiers []rotation.Tier, store Store, producer Producer, layout Layout, clock Clock, recorders ...Recorder) *Job {
	if clock == nil {
		clock = SystemClock
	}
	return &Job{
		tiers:     tiers,
		rotator:   NewRotator(store, producer, layout),
		producer:  producer,
		clock:     clock,
		recorders: recorders,
	}
}

// Run processes every tier in order. A failing tier never stops the ones
// after it; the report is complete once all tiers have been attempted.
func (j *Job) Run(ctx context.Context) Report {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: j.clock.Now(),
	}
	log := slog.With("run_id", report.RunID)
	log.Info("running backup script", "tiers", len(j.tiers))

	// Producers may cache state (e.g. a local dump) for the duration of a run.
	if r, ok := j.producer.(interface{ Release() }); ok {
		defer r.Release()
	}

	for _, tier := range j.tiers {
		report.Outcomes = append(report.Outcomes, j.rotateTier(ctx, tier, report.StartedAt, report.RunID))
	}

	report.FinishedAt = j.clock.Now()
	report.Complete = true
	log.Info("backup script complete",
		"tiers", len(report.Outcomes),
		"failed", len(report.Failed()),
	)

	for _, rec := range j.recorders {
		if err := rec.Record(ctx, report); err != nil {
			log.Warn("failed to record run report", "error", err)
		}
	}
	return report
}

// rotateTier isolates a tier so that a panic is recorded as that tier's failure.
func (j *Job) rotateTier(ctx context.Context, tier rotation.Tier, now time.Time, runID string) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("tier rotation panicked", "tier", string(tier.Name), "run_id", runID, "panic", p, "stack", string(debug.Stack()))
			out = Outcome{
				Tier:   tier,
				State:  StateFailed,
				Errors: append(out.Errors, fmt.Errorf("tier %s panicked: %v", tier.Name, p)),
			}
		}
	}()
	return j.rotator.Rotate(ctx, tier, now, runID)
}
