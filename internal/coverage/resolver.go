// Package coverage computes the set of customers a user may see.
//
// Coverage is encoded by absence: a role with zero coverage rows is
// unrestricted and sees every customer, while a role with one or more rows
// is limited to exactly those customers. A user's effective coverage is the
// most permissive combination of their roles.
package coverage

import (
	"context"
	"fmt"
	"sort"
)

// Filter is the resolved allow-list applied to every customer-scoped read.
// Unrestricted means no filtering at all; otherwise CustomerIDs is the
// exact allow-list, and an empty list means zero access.
type Filter struct {
	Unrestricted bool
	CustomerIDs  []int64
}

// Unrestricted is the filter that admits every customer.
var Unrestricted = Filter{Unrestricted: true}

// None is the filter that admits nothing.
var None = Filter{}

// Allows reports whether the filter admits the given customer.
func (f Filter) Allows(customerID int64) bool {
	if f.Unrestricted {
		return true
	}
	for _, id := range f.CustomerIDs {
		if id == customerID {
			return true
		}
	}
	return false
}

// Empty reports whether the filter admits no customers at all.
func (f Filter) Empty() bool {
	return !f.Unrestricted && len(f.CustomerIDs) == 0
}

// Store describes the role and coverage lookups the resolver needs.
type Store interface {
	RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	CoverageForRole(ctx context.Context, roleID int64) ([]int64, error)
}

// Resolver computes allow-list filters for users.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// AllowedCustomers resolves the filter for a user:
//
//   - no role assignments at all: zero access;
//   - any assigned role with zero coverage rows: unrestricted — a single
//     unrestricted role overrides every restriction (most-permissive wins);
//   - otherwise: the distinct union of all roles' coverage rows.
func (r *Resolver) AllowedCustomers(ctx context.Context, userID int64) (Filter, error) {
	if userID <= 0 {
		return None, fmt.Errorf("coverage: user id is required")
	}
	roleIDs, err := r.store.RoleIDsForUser(ctx, userID)
	if err != nil {
		return None, err
	}
	if len(roleIDs) == 0 {
		return None, nil
	}

	seen := make(map[int64]struct{})
	for _, roleID := range roleIDs {
		customerIDs, err := r.store.CoverageForRole(ctx, roleID)
		if err != nil {
			return None, err
		}
		if len(customerIDs) == 0 {
			return Unrestricted, nil
		}
		for _, id := range customerIDs {
			seen[id] = struct{}{}
		}
	}

	union := make([]int64, 0, len(seen))
	for id := range seen {
		union = append(union, id)
	}
	sort.Slice(union, func(i, j int) bool { return union[i] < union[j] })
	return Filter{CustomerIDs: union}, nil
}
