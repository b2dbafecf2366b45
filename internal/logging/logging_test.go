package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitHandler_RoutesByLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log := slog.New(New("text", slog.LevelInfo, &stdout, &stderr)).With("run_id", "r1")

	log.Debug("hidden")
	log.Info("creating backup", "tier", "day")
	log.Warn("backup eviction failed")
	log.Error("error getting files")

	assert.Contains(t, stdout.String(), "creating backup")
	assert.Contains(t, stdout.String(), "run_id=r1")
	assert.NotContains(t, stdout.String(), "hidden")
	assert.NotContains(t, stdout.String(), "error getting files")

	assert.Contains(t, stderr.String(), "backup eviction failed")
	assert.Contains(t, stderr.String(), "error getting files")
	assert.Contains(t, stderr.String(), "run_id=r1")
	assert.NotContains(t, stderr.String(), "creating backup")
}

func TestSplitHandler_JSONGroups(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log := slog.New(New("json", slog.LevelDebug, &stdout, &stderr)).WithGroup("audit")

	log.Debug("visible", "tier", "week")
	assert.Contains(t, stdout.String(), `"audit":{"tier":"week"}`)
	assert.Zero(t, stderr.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}
