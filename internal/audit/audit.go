// Package audit records an append-only trail of user actions. Writes are
// best effort: a failed audit write is logged and counted but never fails
// the operation that triggered it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casedesk.io/internal/identity"
	"casedesk.io/internal/ids"
	"casedesk.io/internal/obs"
)

// DefaultRetentionYears is applied when no retention is configured.
const DefaultRetentionYears = 3

// Entry is one immutable audit row. RetentionUntil is fixed at write time;
// later retention changes never affect rows already written.
type Entry struct {
	ID             string    `json:"id"`
	OccurredAt     time.Time `json:"occurredAt"`
	UserID         *int64    `json:"userId,omitempty"`
	Username       string    `json:"username"`
	Action         string    `json:"action"`
	EntityType     string    `json:"entityType"`
	EntityID       string    `json:"entityId"`
	Snapshot       string    `json:"snapshot,omitempty"`
	RetentionUntil time.Time `json:"retentionUntil"`
}

// Query narrows audit listings.
type Query struct {
	Username   string
	EntityType string
	Action     string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// Store describes audit persistence.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, q Query) ([]Entry, error)
	// DeleteExpired removes entries whose retention horizon lies strictly
	// before the given instant and reports how many rows went away.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Recorder writes audit entries with a fixed retention horizon.
type Recorder struct {
	store     Store
	retention time.Duration
	now       func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRetentionYears overrides the retention horizon.
func WithRetentionYears(years int) RecorderOption {
	return func(r *Recorder) {
		if years > 0 {
			r.retention = time.Duration(years) * 365 * 24 * time.Hour
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder with the default retention.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:     store,
		retention: DefaultRetentionYears * 365 * 24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one audit row. The snapshot is serialized to JSON; a nil
// snapshot leaves the column empty. Failures are swallowed after logging
// so audit can never block or fail the audited operation.
func (r *Recorder) Record(ctx context.Context, actor identity.Actor, action, entityType, entityID string, snapshot any) {
	now := r.now().UTC()
	e := Entry{
		ID:             ids.NewAt(now),
		OccurredAt:     now,
		Username:       actor.Username,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		RetentionUntil: now.Add(r.retention),
	}
	if !actor.IsDev() {
		uid := actor.UserID
		e.UserID = &uid
	}
	if snapshot != nil {
		raw, err := json.Marshal(snapshot)
		if err != nil {
			obs.Log("warn", "audit snapshot marshal failed", map[string]any{
				"action": action,
				"entity": entityType,
				"error":  err.Error(),
			})
		} else {
			e.Snapshot = string(raw)
		}
	}
	if err := r.store.Append(ctx, &e); err != nil {
		obs.AuditWriteFailed()
		obs.Log("error", "audit write failed", map[string]any{
			"action": action,
			"entity": entityType,
			"id":     entityID,
			"error":  err.Error(),
		})
	}
}

// RecordList writes a single aggregate row for a list access instead of
// one row per returned entity.
func (r *Recorder) RecordList(ctx context.Context, actor identity.Actor, entityType string, count int) {
	r.Record(ctx, actor, "List", entityType, "", map[string]int{"resultCount": count})
}

// SweepExpired deletes entries past their retention horizon.
func (r *Recorder) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := r.store.DeleteExpired(ctx, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("audit sweep: %w", err)
	}
	if deleted > 0 {
		obs.AuditSwept(deleted)
	}
	return deleted, nil
}

// List returns audit entries matching the query.
func (r *Recorder) List(ctx context.Context, q Query) ([]Entry, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	return r.store.List(ctx, q)
}
