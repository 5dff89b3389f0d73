package customers

import (
	"context"
	"errors"
	"time"

	"casedesk.io/internal/coverage"
)

var ErrNotFound = errors.New("customers: not found")

// Customer is an organization cases are filed against.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store describes customer persistence.
type Store interface {
	Find(ctx context.Context, id int64) (Customer, error)
	// List returns customers restricted to the given ids; unrestricted
	// callers pass unrestricted=true and see everything.
	List(ctx context.Context, ids []int64, unrestricted bool) ([]Customer, error)
}

// Service exposes coverage-filtered customer reads.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns the customers the caller may see.
func (s *Service) List(ctx context.Context, filter coverage.Filter) ([]Customer, error) {
	if filter.Empty() {
		return []Customer{}, nil
	}
	return s.store.List(ctx, filter.CustomerIDs, filter.Unrestricted)
}

// Get fetches one customer; entities outside the caller's coverage answer
// as not found.
func (s *Service) Get(ctx context.Context, filter coverage.Filter, id int64) (Customer, error) {
	if !filter.Allows(id) {
		return Customer{}, ErrNotFound
	}
	return s.store.Find(ctx, id)
}
