package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hatemosphere/pgrotate/internal/audit"
	"github.com/hatemosphere/pgrotate/internal/rotation"
)

// State is the terminal state a tier run ended in.
type State string

const (
	StateSkipped     State = "skipped"      // no new artifact due
	StateFailed      State = "failed"       // decision could not be made
	StateCreateError State = "create-error" // production failed, nothing evicted
	StateCreated     State = "created"      // created, nothing to evict
	StateDeleteError State = "delete-error" // created, eviction failed
	StateRotated     State = "rotated"      // created and oldest evicted
)

// Outcome reports what happened to one tier during a run.
type Outcome struct {
	Tier      rotation.Tier
	State     State
	CreatedID string // set when creation was attempted
	EvictedID string // set when deletion was attempted

	ListFailed      bool
	CreateAttempted bool
	Created         bool
	DeleteAttempted bool
	Deleted         bool

	Errors   []error
	Duration time.Duration
}

// Err joins every error recorded for the tier, or nil.
func (o Outcome) Err() error {
	switch len(o.Errors) {
	case 0:
		return nil
	case 1:
		return o.Errors[0]
	}
	return fmt.Errorf("%d errors: %v", len(o.Errors), o.Errors)
}

// Rotator applies the retention policy to a single tier.
type Rotator struct {
	store    Store
	producer Producer
	layout   Layout
}

// NewRotator creates a rotator over the given collaborators.
func NewRotator(store Store, producer Producer, layout Layout) *Rotator {
	return &Rotator{store: store, producer: producer, layout: layout}
}

// Rotate lists the tier, creates a new artifact if one is due and evicts the
// oldest artifact when the tier exceeds its retention count. Every failure is
// recorded on the outcome; nothing is retried.
func (r *Rotator) Rotate(ctx context.Context, tier rotation.Tier, now time.Time, runID string) (out Outcome) {
	started := time.Now()
	out.Tier = tier
	defer func() { out.Duration = time.Since(started) }()

	g := tier.Name
	log := slog.With("tier", string(g), "run_id", runID)

	// A listing failure is treated as an empty tier: better an extra backup
	// than silently skipping one.
	keys, err := r.store.List(ctx, r.layout.Prefix(g))
	if err != nil {
		log.Error("error getting files", "error", err)
		out.ListFailed = true
		out.Errors = append(out.Errors, fmt.Errorf("list %s: %w", g, err))
		keys = nil
	}

	keyByID := make(map[string]string, len(keys))
	ids := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		id := r.layout.Identifier(k)
		if _, dup := keyByID[id]; dup {
			continue
		}
		keyByID[id] = k
		ids = append(ids, id)
	}
	sort.Strings(ids)

	due, err := rotation.IsDue(g, ids, now)
	if err != nil {
		log.Error("cannot decide whether backup is due", "error", err)
		out.State = StateFailed
		out.Errors = append(out.Errors, fmt.Errorf("decide %s: %w", g, err))
		return out
	}
	if !due {
		log.Info("backup not due", "latest", ids[len(ids)-1])
		out.State = StateSkipped
		return out
	}

	id := rotation.NewArtifactID(now)
	key := r.layout.Key(g, id)
	out.CreateAttempted = true
	out.CreatedID = id
	log.Info("creating backup", "name", id, "key", key)

	if err := r.producer.Produce(ctx, key); err != nil {
		log.Error("error creating backup", "name", id, "error", err)
		audit.Event{RunID: runID, Tier: string(g), Action: "create", Status: "failed", Artifact: id, Reason: err.Error()}.Warn("backup creation failed")
		out.State = StateCreateError
		out.Errors = append(out.Errors, fmt.Errorf("create %s/%s: %w", g, id, err))
		return out
	}
	out.Created = true
	audit.Event{RunID: runID, Tier: string(g), Action: "create", Status: "succeeded", Artifact: id}.Info("backup created")

	if _, exists := keyByID[id]; !exists {
		keyByID[id] = key
		ids = append(ids, id)
		sort.Strings(ids)
	}

	victim, ok := rotation.EvictionCandidate(tier.MaxBackups, ids)
	if !ok {
		out.State = StateCreated
		return out
	}

	out.DeleteAttempted = true
	out.EvictedID = victim
	if err := r.store.Delete(ctx, keyByID[victim]); err != nil {
		log.Error("error deleting old backup", "name", victim, "error", err)
		audit.Event{RunID: runID, Tier: string(g), Action: "evict", Status: "failed", Artifact: victim, Reason: err.Error()}.Warn("backup eviction failed")
		out.State = StateDeleteError
		out.Errors = append(out.Errors, fmt.Errorf("evict %s/%s: %w", g, victim, err))
		return out
	}
	out.Deleted = true
	out.State = StateRotated
	log.Info("deleted old backup", "name", victim)
	audit.Event{RunID: runID, Tier: string(g), Action: "evict", Status: "succeeded", Artifact: victim}.Info("backup evicted")
	return out
}
