package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"casedesk.io/internal/cases"
)

// CaseStore persists cases and their relationship edges.
type CaseStore struct {
	db *sql.DB
}

var _ cases.Store = (*CaseStore)(nil)

const caseColumns = `
	id, customer_id, title, description, status, priority,
	system_id, component_id, site_id, order_id, assigned_user_id,
	created_by, created_at, updated_at,
	due_date, first_response_at, resolved_at, closed_at
`

func scanCase(row interface{ Scan(dest ...any) error }) (cases.Case, error) {
	var (
		c    cases.Case
		desc sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.CustomerID, &c.Title, &desc, &c.Status, &c.Priority,
		&c.SystemID, &c.ComponentID, &c.SiteID, &c.OrderID, &c.AssignedUserID,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&c.DueDate, &c.FirstResponseAt, &c.ResolvedAt, &c.ClosedAt,
	)
	if err != nil {
		return cases.Case{}, err
	}
	if desc.Valid {
		c.Description = desc.String
	}
	return c, nil
}

func (s *CaseStore) Create(ctx context.Context, c *cases.Case) error {
	row := s.db.QueryRowContext(ctx, `
		insert into cases (
			customer_id, title, description, status, priority,
			system_id, component_id, site_id, order_id, assigned_user_id,
			created_by, created_at, updated_at, due_date
		)
		values ($1, $2, nullif($3,''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		returning id
	`, c.CustomerID, c.Title, c.Description, c.Status, c.Priority,
		c.SystemID, c.ComponentID, c.SiteID, c.OrderID, c.AssignedUserID,
		c.CreatedBy, c.CreatedAt, c.UpdatedAt, c.DueDate)
	if err := row.Scan(&c.ID); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return cases.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *CaseStore) Find(ctx context.Context, id int64) (cases.Case, error) {
	c, err := scanCase(s.db.QueryRowContext(ctx,
		`select `+caseColumns+` from cases where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return cases.Case{}, cases.ErrNotFound
	}
	if err != nil {
		return cases.Case{}, err
	}
	return c, nil
}

func (s *CaseStore) List(ctx context.Context, customerIDs []int64, unrestricted bool, q cases.ListQuery) ([]cases.Case, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if !unrestricted {
		if len(customerIDs) == 0 {
			return []cases.Case{}, nil
		}
		placeholders := make([]string, len(customerIDs))
		for i, id := range customerIDs {
			placeholders[i] = fmt.Sprintf("$%d", idx)
			args = append(args, id)
			idx++
		}
		where = append(where, fmt.Sprintf("customer_id in (%s)", strings.Join(placeholders, ", ")))
	}
	if q.CustomerID != nil {
		where = append(where, fmt.Sprintf("customer_id = $%d", idx))
		args = append(args, *q.CustomerID)
		idx++
	}
	if q.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, *q.Status)
		idx++
	}
	if q.Priority != nil {
		where = append(where, fmt.Sprintf("priority = $%d", idx))
		args = append(args, *q.Priority)
		idx++
	}
	if q.AssignedUserID != nil {
		where = append(where, fmt.Sprintf("assigned_user_id = $%d", idx))
		args = append(args, *q.AssignedUserID)
		idx++
	}

	query := `select ` + caseColumns + ` from cases`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += " order by created_at desc, id desc"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []cases.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CaseStore) Save(ctx context.Context, c *cases.Case) error {
	res, err := s.db.ExecContext(ctx, `
		update cases set
			title = $2,
			description = nullif($3,''),
			status = $4,
			priority = $5,
			assigned_user_id = $6,
			updated_at = $7,
			due_date = $8,
			first_response_at = $9,
			resolved_at = $10,
			closed_at = $11
		where id = $1
	`, c.ID, c.Title, c.Description, c.Status, c.Priority,
		c.AssignedUserID, c.UpdatedAt, c.DueDate,
		c.FirstResponseAt, c.ResolvedAt, c.ClosedAt)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return cases.ErrNotFound
	}
	return nil
}

func (s *CaseStore) CreateRelationshipPair(ctx context.Context, forward, reverse *cases.Relationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, rel := range []*cases.Relationship{forward, reverse} {
		row := tx.QueryRowContext(ctx, `
			insert into case_relationships (source_case_id, related_case_id, relationship_type, notes, created_by, created_at)
			values ($1, $2, $3, nullif($4,''), $5, $6)
			returning id
		`, rel.SourceCaseID, rel.RelatedCaseID, rel.Type, rel.Notes, rel.CreatedBy, rel.CreatedAt)
		if err := row.Scan(&rel.ID); err != nil {
			if pgErr, ok := maybePgError(err); ok {
				switch pgErr.Code {
				case pgErrUniqueViolation:
					return cases.ErrConflict
				case pgErrForeignKeyViolation:
					return cases.ErrNotFound
				}
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *CaseStore) DeleteRelationshipPair(ctx context.Context, a, b int64, relType string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		delete from case_relationships
		where relationship_type = $3
		  and ((source_case_id = $1 and related_case_id = $2)
		    or (source_case_id = $2 and related_case_id = $1))
	`, a, b, relType)
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *CaseStore) FindRelationship(ctx context.Context, id int64) (cases.Relationship, error) {
	var (
		rel   cases.Relationship
		notes sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, source_case_id, related_case_id, relationship_type, notes, created_by, created_at
		from case_relationships
		where id = $1
	`, id).Scan(&rel.ID, &rel.SourceCaseID, &rel.RelatedCaseID, &rel.Type, &notes, &rel.CreatedBy, &rel.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cases.Relationship{}, cases.ErrNotFound
	}
	if err != nil {
		return cases.Relationship{}, err
	}
	if notes.Valid {
		rel.Notes = notes.String
	}
	return rel, nil
}

func (s *CaseStore) RelationshipsForCase(ctx context.Context, caseID int64) ([]cases.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, source_case_id, related_case_id, relationship_type, notes, created_by, created_at
		from case_relationships
		where source_case_id = $1
		order by created_at desc, id desc
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []cases.Relationship{}
	for rows.Next() {
		var (
			rel   cases.Relationship
			notes sql.NullString
		)
		if err := rows.Scan(&rel.ID, &rel.SourceCaseID, &rel.RelatedCaseID, &rel.Type, &notes, &rel.CreatedBy, &rel.CreatedAt); err != nil {
			return nil, err
		}
		if notes.Valid {
			rel.Notes = notes.String
		}
		result = append(result, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CaseStore) CountOpenRelated(ctx context.Context, caseID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(distinct linked.id)
		from (
			select related_case_id as id from case_relationships where source_case_id = $1
			union
			select source_case_id as id from case_relationships where related_case_id = $1
		) linked
		join cases c on c.id = linked.id
		where c.status not in ('Resolved', 'Closed')
	`, caseID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
