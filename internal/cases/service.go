package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casedesk.io/internal/coverage"
)

// Service implements the case lifecycle over a Store. Every read and every
// mutation checks the caller's coverage filter; excluded cases answer as
// not found so their existence never leaks.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) *Service {
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create registers a new case in Open status.
func (s *Service) Create(ctx context.Context, filter coverage.Filter, c Case) (Case, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return Case{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if c.CustomerID <= 0 {
		return Case{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	if !filter.Allows(c.CustomerID) {
		return Case{}, ErrNotFound
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	if !ValidPriority(c.Priority) {
		return Case{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, c.Priority)
	}
	c.Status = StatusOpen
	now := s.now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.FirstResponseAt = nil
	c.ResolvedAt = nil
	c.ClosedAt = nil
	if err := s.store.Create(ctx, &c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// Get fetches one case, verifying coverage membership independently of the
// list path.
func (s *Service) Get(ctx context.Context, filter coverage.Filter, id int64) (Case, error) {
	c, err := s.store.Find(ctx, id)
	if err != nil {
		return Case{}, err
	}
	if !filter.Allows(c.CustomerID) {
		return Case{}, ErrNotFound
	}
	return c, nil
}

// List returns cases visible under the filter, narrowed by the query.
func (s *Service) List(ctx context.Context, filter coverage.Filter, q ListQuery) ([]Case, error) {
	if filter.Empty() {
		return []Case{}, nil
	}
	if q.CustomerID != nil && !filter.Allows(*q.CustomerID) {
		return []Case{}, nil
	}
	if q.Status != nil && !ValidStatus(*q.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *q.Status)
	}
	if q.Priority != nil && !ValidPriority(*q.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *q.Priority)
	}
	return s.store.List(ctx, filter.CustomerIDs, filter.Unrestricted, q)
}

// Update applies a partial mutation, stamping lifecycle milestones. The
// returned warning is non-nil when the case was closed while related cases
// remain open; the close succeeds regardless.
func (s *Service) Update(ctx context.Context, filter coverage.Filter, id int64, upd Update) (Case, *CloseWarning, error) {
	c, err := s.store.Find(ctx, id)
	if err != nil {
		return Case{}, nil, err
	}
	if !filter.Allows(c.CustomerID) {
		return Case{}, nil, ErrNotFound
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return Case{}, nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		c.Title = title
	}
	if upd.Description != nil {
		c.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Priority != nil {
		if !ValidPriority(*upd.Priority) {
			return Case{}, nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *upd.Priority)
		}
		c.Priority = *upd.Priority
	}
	if upd.AssignedUserID != nil {
		c.AssignedUserID = upd.AssignedUserID
	}
	if upd.DueDate != nil {
		c.DueDate = upd.DueDate
	}

	now := s.now().UTC()
	closing := false
	if upd.Status != nil {
		if !ValidStatus(*upd.Status) {
			return Case{}, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *upd.Status)
		}
		closing = s.applyStatus(&c, *upd.Status, now)
	}
	c.UpdatedAt = now

	if err := s.store.Save(ctx, &c); err != nil {
		return Case{}, nil, err
	}

	var warning *CloseWarning
	if closing {
		warning, err = s.closeWarning(ctx, c.ID)
		if err != nil {
			return Case{}, nil, err
		}
	}
	return c, warning, nil
}

// applyStatus moves the case to the new status and stamps milestones.
// FirstResponseAt is set exactly once, on the first transition away from
// Open. ResolvedAt and ClosedAt are set at most once. Returns whether the
// case transitioned into Closed.
func (s *Service) applyStatus(c *Case, next Status, now time.Time) bool {
	prev := c.Status
	if prev == next {
		return false
	}
	if prev == StatusOpen && next != StatusOpen && c.FirstResponseAt == nil {
		stamp := now
		c.FirstResponseAt = &stamp
	}
	if next == StatusResolved && c.ResolvedAt == nil {
		stamp := now
		c.ResolvedAt = &stamp
	}
	closing := false
	if next == StatusClosed {
		closing = true
		if c.ClosedAt == nil {
			stamp := now
			c.ClosedAt = &stamp
		}
	}
	c.Status = next
	return closing
}

func (s *Service) closeWarning(ctx context.Context, caseID int64) (*CloseWarning, error) {
	count, err := s.store.CountOpenRelated(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return &CloseWarning{
		OpenRelatedCount: count,
		Message:          fmt.Sprintf("case closed while %d related case(s) remain open", count),
	}, nil
}

// BulkOutcome reports which cases a bulk update touched and which were
// rejected (absent or outside the caller's coverage).
type BulkOutcome struct {
	Updated []Case  `json:"updated"`
	Missing []int64 `json:"missing,omitempty"`
}

// BulkApply updates each case in ids with the same mutation. Cases outside
// the coverage filter count as missing rather than erroring the batch.
func (s *Service) BulkApply(ctx context.Context, filter coverage.Filter, ids []int64, upd BulkUpdate) (BulkOutcome, error) {
	if len(ids) == 0 {
		return BulkOutcome{}, fmt.Errorf("%w: case ids are required", ErrInvalidInput)
	}
	if upd.Status == nil && upd.AssignedUserID == nil {
		return BulkOutcome{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return BulkOutcome{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *upd.Status)
	}

	var out BulkOutcome
	for _, id := range ids {
		c, _, err := s.Update(ctx, filter, id, Update{
			Status:         upd.Status,
			AssignedUserID: upd.AssignedUserID,
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				out.Missing = append(out.Missing, id)
				continue
			}
			return BulkOutcome{}, err
		}
		out.Updated = append(out.Updated, c)
	}
	return out, nil
}
