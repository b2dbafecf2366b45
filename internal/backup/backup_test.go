package backup

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hatemosphere/pgrotate/internal/rotation"
)

func TestLayout(t *testing.T) {
	l := Layout{Environment: "prod", Extension: ".psql"}

	assert.Equal(t, "prod/day/", l.Prefix(rotation.Day))
	assert.Equal(t, "prod/week/2023:01:02:03:04:05.psql", l.Key(rotation.Week, "2023:01:02:03:04:05"))
	assert.Equal(t, "2023:01:02:03:04:05", l.Identifier("prod/week/2023:01:02:03:04:05.psql"))
	assert.Equal(t, "2023:01:02:03:04:05", l.Identifier("prod/week/2023:01:02:03:04:05.psql.gz"))
	assert.Equal(t, "2023:01:02:03:04:05", l.Identifier("prod/week/2023:01:02:03:04:05"))
}

func TestLayout_NoExtension(t *testing.T) {
	l := Layout{Environment: "dev"}
	key := l.Key(rotation.Year, "2024:01:01:00:00:00")
	assert.Equal(t, "dev/year/2024:01:01:00:00:00", key)
	assert.Equal(t, "2024:01:01:00:00:00", l.Identifier(key))
}

func TestProductionError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ProductionError{Key: "k", Reason: "upload dump", Err: errBoom})
	assert.ErrorIs(t, err, ErrProductionFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "upload dump")

	var pe *ProductionError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "k", pe.Key)
}

func TestStoreError_Unwraps(t *testing.T) {
	err := &StoreError{Op: "Delete", Key: "prod/day/x", Err: fmt.Errorf("%w: 404", ErrNotFound)}
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, "delete prod/day/x: object not found: 404", err.Error())
}
