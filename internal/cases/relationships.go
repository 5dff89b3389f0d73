package cases

import (
	"context"
	"fmt"
	"strings"

	"casedesk.io/internal/coverage"
)

// Link creates a bidirectional relationship between two cases: the forward
// and mirrored rows are inserted in one transaction with the same type and
// notes. Duplicate links surface as ErrConflict.
func (s *Service) Link(ctx context.Context, src, related int64, relType, notes, createdBy string) (Relationship, Relationship, error) {
	relType = strings.TrimSpace(relType)
	if relType == "" {
		return Relationship{}, Relationship{}, fmt.Errorf("%w: relationship type is required", ErrInvalidInput)
	}
	if src <= 0 || related <= 0 {
		return Relationship{}, Relationship{}, fmt.Errorf("%w: case ids are required", ErrInvalidInput)
	}
	if src == related {
		return Relationship{}, Relationship{}, fmt.Errorf("%w: a case can not relate to itself", ErrInvalidInput)
	}
	if _, err := s.store.Find(ctx, src); err != nil {
		return Relationship{}, Relationship{}, err
	}
	if _, err := s.store.Find(ctx, related); err != nil {
		return Relationship{}, Relationship{}, err
	}

	now := s.now().UTC()
	forward := Relationship{
		SourceCaseID:  src,
		RelatedCaseID: related,
		Type:          relType,
		Notes:         strings.TrimSpace(notes),
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}
	reverse := forward
	reverse.SourceCaseID = related
	reverse.RelatedCaseID = src

	if err := s.store.CreateRelationshipPair(ctx, &forward, &reverse); err != nil {
		return Relationship{}, Relationship{}, err
	}
	return forward, reverse, nil
}

// Unlink removes both orientations of the link between two cases with the
// given type, regardless of which direction the caller names first.
func (s *Service) Unlink(ctx context.Context, a, b int64, relType string) error {
	relType = strings.TrimSpace(relType)
	if relType == "" {
		return fmt.Errorf("%w: relationship type is required", ErrInvalidInput)
	}
	deleted, err := s.store.DeleteRelationshipPair(ctx, a, b, relType)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// UnlinkByID removes the pair a single relationship row belongs to. The
// row only identifies one orientation; both are deleted, so the mirrored
// invariant holds no matter which side the caller addressed. The source
// case must be visible under the caller's filter.
func (s *Service) UnlinkByID(ctx context.Context, filter coverage.Filter, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: relationship id is required", ErrInvalidInput)
	}
	rel, err := s.store.FindRelationship(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.Get(ctx, filter, rel.SourceCaseID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteRelationshipPair(ctx, rel.SourceCaseID, rel.RelatedCaseID, rel.Type)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// Related lists the outgoing edges of a case. Because edges are mirrored,
// the outgoing set is the complete picture.
func (s *Service) Related(ctx context.Context, filter coverage.Filter, caseID int64) ([]Relationship, error) {
	if _, err := s.Get(ctx, filter, caseID); err != nil {
		return nil, err
	}
	return s.store.RelationshipsForCase(ctx, caseID)
}

// OpenRelatedCount counts distinct linked cases that are neither Resolved
// nor Closed. It backs the advisory close warning.
func (s *Service) OpenRelatedCount(ctx context.Context, caseID int64) (int, error) {
	return s.store.CountOpenRelated(ctx, caseID)
}
