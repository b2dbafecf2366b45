package backup

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hatemosphere/pgrotate/internal/rotation"
)

// Errors reported by Store and Producer implementations.
var (
	// ErrStoreUnavailable covers transport, auth and other service failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned when deleting an object that does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrProductionFailed is matched by every *ProductionError.
	ErrProductionFailed = errors.New("backup production failed")
)

// Store is the object store holding backup artifacts.
type Store interface {
	// List returns the keys of all objects under prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a single object by key.
	Delete(ctx context.Context, key string) error
}

// Producer materializes a new backup at the given storage key.
type Producer interface {
	Produce(ctx context.Context, key string) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in local time.
var SystemClock Clock = ClockFunc(time.Now)

// StoreError records the store operation and key that failed.
type StoreError struct {
	Op  string // "List", "Upload", "Delete"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", strings.ToLower(e.Op), e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ProductionError describes why a backup could not be produced.
type ProductionError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ProductionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("produce %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("produce %s: %s", e.Key, e.Reason)
}

func (e *ProductionError) Unwrap() error { return e.Err }

func (e *ProductionError) Is(target error) bool { return target == ErrProductionFailed }

// Layout maps tiers and artifact identifiers onto object keys of the form
// {environment}/{tier}/{identifier}{extension}.
type Layout struct {
	Environment string // e.g. "prod" or "dev"
	Extension   string // e.g. ".psql"; may be empty
}

// Prefix returns the key prefix shared by every artifact of a tier.
func (l Layout) Prefix(g rotation.Granularity) string {
	return path.Join(l.Environment, string(g)) + "/"
}

// Key returns the object key for an artifact.
func (l Layout) Key(g rotation.Granularity, id string) string {
	return path.Join(l.Environment, string(g), id) + l.Extension
}

// Identifier extracts the artifact identifier from an object key: the base
// name up to its first dot. Identifiers never contain dots, so this also
// accepts keys written with a different extension.
func (l Layout) Identifier(key string) string {
	base := path.Base(key)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}
