package cases

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("cases: not found")
	ErrConflict     = errors.New("cases: already exists")
	ErrInvalidInput = errors.New("cases: invalid input")
)

// Store describes persistence for cases and their relationships.
type Store interface {
	Create(ctx context.Context, c *Case) error
	Find(ctx context.Context, id int64) (Case, error)
	List(ctx context.Context, customerIDs []int64, unrestricted bool, q ListQuery) ([]Case, error)
	Save(ctx context.Context, c *Case) error

	// CreateRelationshipPair inserts both directed rows inside a single
	// transaction so a crash can never leave a one-sided edge.
	CreateRelationshipPair(ctx context.Context, forward, reverse *Relationship) error
	// DeleteRelationshipPair removes both rows matching either orientation
	// of (a, b) with the given type, inside a single transaction.
	DeleteRelationshipPair(ctx context.Context, a, b int64, relType string) (int64, error)
	FindRelationship(ctx context.Context, id int64) (Relationship, error)
	RelationshipsForCase(ctx context.Context, caseID int64) ([]Relationship, error)
	// CountOpenRelated counts distinct cases linked to caseID in either
	// direction whose status is neither Resolved nor Closed.
	CountOpenRelated(ctx context.Context, caseID int64) (int, error)
}
