package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/hatemosphere/pgrotate/internal/backup"
)

var (
	tierRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgrotate_tier_runs_total",
			Help: "Total number of tier rotations by terminal state.",
		},
		[]string{"tier", "state"},
	)
	artifactsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgrotate_artifacts_created_total",
			Help: "Total number of backups created.",
		},
		[]string{"tier"},
	)
	artifactsEvictedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgrotate_artifacts_evicted_total",
			Help: "Total number of backups deleted by retention.",
		},
		[]string{"tier"},
	)
	tierErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgrotate_tier_errors_total",
			Help: "Total number of tier errors by stage.",
		},
		[]string{"tier", "stage"},
	)
	tierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgrotate_tier_duration_seconds",
			Help:    "Duration of a single tier rotation in seconds.",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"tier"},
	)
	lastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgrotate_last_run_timestamp_seconds",
			Help: "Unix time the last backup run finished.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		tierRunsTotal,
		artifactsCreatedTotal,
		artifactsEvictedTotal,
		tierErrorsTotal,
		tierDuration,
		lastRunTimestamp,
	)
}

// Recorder updates the Prometheus collectors from run reports.
type Recorder struct{}

// Record implements backup.Recorder.
func (Recorder) Record(_ context.Context, report backup.Report) error {
	for _, o := range report.Outcomes {
		tier := string(o.Tier.Name)
		tierRunsTotal.WithLabelValues(tier, string(o.State)).Inc()
		tierDuration.WithLabelValues(tier).Observe(o.Duration.Seconds())
		if o.Created {
			artifactsCreatedTotal.WithLabelValues(tier).Inc()
		}
		if o.Deleted {
			artifactsEvictedTotal.WithLabelValues(tier).Inc()
		}
		if o.ListFailed {
			tierErrorsTotal.WithLabelValues(tier, "list").Inc()
		}
		switch o.State {
		case backup.StateFailed:
			tierErrorsTotal.WithLabelValues(tier, "decide").Inc()
		case backup.StateCreateError:
			tierErrorsTotal.WithLabelValues(tier, "create").Inc()
		case backup.StateDeleteError:
			tierErrorsTotal.WithLabelValues(tier, "delete").Inc()
		}
	}
	lastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
	return nil
}

// Pusher sends the collected metrics to a Prometheus Pushgateway after each
// run. Used by one-shot invocations that exit before they could be scraped.
type Pusher struct {
	pusher *push.Pusher
}

// NewPusher creates a Pusher for the given gateway URL and job name.
func NewPusher(url, job string) *Pusher {
	return &Pusher{pusher: push.New(url, job).Gatherer(prometheus.DefaultGatherer)}
}

// Record implements backup.Recorder.
func (p *Pusher) Record(ctx context.Context, _ backup.Report) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
