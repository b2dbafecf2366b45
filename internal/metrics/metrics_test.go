package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatemosphere/pgrotate/internal/backup"
	"github.com/hatemosphere/pgrotate/internal/rotation"
)

func TestRecorder_CountsOutcomes(t *testing.T) {
	created := testutil.ToFloat64(artifactsCreatedTotal.WithLabelValues("day"))
	evicted := testutil.ToFloat64(artifactsEvictedTotal.WithLabelValues("day"))
	createErrs := testutil.ToFloat64(tierErrorsTotal.WithLabelValues("week", "create"))
	listErrs := testutil.ToFloat64(tierErrorsTotal.WithLabelValues("week", "list"))

	finished := time.Date(2023, time.January, 3, 10, 0, 5, 0, time.UTC)
	report := backup.Report{
		FinishedAt: finished,
		Outcomes: []backup.Outcome{
			{Tier: rotation.Tier{Name: rotation.Day}, State: backup.StateRotated, Created: true, Deleted: true},
			{Tier: rotation.Tier{Name: rotation.Week}, State: backup.StateCreateError, ListFailed: true},
		},
	}
	require.NoError(t, Recorder{}.Record(context.Background(), report))

	assert.Equal(t, created+1, testutil.ToFloat64(artifactsCreatedTotal.WithLabelValues("day")))
	assert.Equal(t, evicted+1, testutil.ToFloat64(artifactsEvictedTotal.WithLabelValues("day")))
	assert.Equal(t, createErrs+1, testutil.ToFloat64(tierErrorsTotal.WithLabelValues("week", "create")))
	assert.Equal(t, listErrs+1, testutil.ToFloat64(tierErrorsTotal.WithLabelValues("week", "list")))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(lastRunTimestamp))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	require.NoError(t, Recorder{}.Record(context.Background(), backup.Report{
		FinishedAt: time.Now(),
		Outcomes:   []backup.Outcome{{Tier: rotation.Tier{Name: rotation.Month}, State: backup.StateSkipped}},
	}))

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pgrotate_tier_runs_total{state="skipped",tier="month"}`)
}

func TestPusher_PushesToGateway(t *testing.T) {
	var gotPath string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	p := NewPusher(gw.URL, "pgrotate")
	require.NoError(t, p.Record(context.Background(), backup.Report{}))
	assert.Equal(t, "/metrics/job/pgrotate", gotPath)
}

func TestPusher_GatewayError(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gw.Close()

	err := NewPusher(gw.URL, "pgrotate").Record(context.Background(), backup.Report{})
	assert.Error(t, err)
}
