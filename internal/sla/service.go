package sla

import (
	"context"
	"errors"
	"fmt"

	"casedesk.io/internal/cases"
)

var ErrInvalidInput = errors.New("sla: invalid input")

// Store persists threshold configuration.
type Store interface {
	ActiveThresholds(ctx context.Context) ([]Threshold, error)
	UpsertThresholds(ctx context.Context, thresholds []Threshold) error
}

// Service exposes threshold configuration reads and bulk upserts.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Configuration returns the active thresholds keyed by priority.
func (s *Service) Configuration(ctx context.Context) (map[cases.Priority]*Threshold, error) {
	list, err := s.store.ActiveThresholds(ctx)
	if err != nil {
		return nil, err
	}
	byPriority := make(map[cases.Priority]*Threshold, len(list))
	for i := range list {
		byPriority[list[i].Priority] = &list[i]
	}
	return byPriority, nil
}

// List returns the active thresholds in priority order.
func (s *Service) List(ctx context.Context) ([]Threshold, error) {
	return s.store.ActiveThresholds(ctx)
}

// BulkUpsert validates and stores thresholds, one row per priority with
// upsert semantics.
func (s *Service) BulkUpsert(ctx context.Context, thresholds []Threshold) error {
	seen := make(map[cases.Priority]struct{}, len(thresholds))
	for _, t := range thresholds {
		if !cases.ValidPriority(t.Priority) {
			return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, t.Priority)
		}
		if t.ResponseTimeHours <= 0 || t.ResolutionTimeHours <= 0 {
			return fmt.Errorf("%w: thresholds for %s must be positive", ErrInvalidInput, t.Priority)
		}
		if t.ResolutionTimeHours < t.ResponseTimeHours {
			return fmt.Errorf("%w: resolution limit for %s precedes response limit", ErrInvalidInput, t.Priority)
		}
		if _, dup := seen[t.Priority]; dup {
			return fmt.Errorf("%w: duplicate priority %s", ErrInvalidInput, t.Priority)
		}
		seen[t.Priority] = struct{}{}
	}
	return s.store.UpsertThresholds(ctx, thresholds)
}
