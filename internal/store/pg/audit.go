package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"casedesk.io/internal/audit"
)

// AuditStore persists the append-only audit trail.
type AuditStore struct {
	db *sql.DB
}

var _ audit.Store = (*AuditStore)(nil)

func (s *AuditStore) Append(ctx context.Context, e *audit.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, occurred_at, user_id, username, action, entity_type, entity_id, snapshot, retention_until)
		values ($1, $2, $3, $4, $5, $6, nullif($7,''), nullif($8,''), $9)
	`, e.ID, e.OccurredAt, e.UserID, e.Username, e.Action, e.EntityType, e.EntityID, e.Snapshot, e.RetentionUntil)
	return err
}

func (s *AuditStore) List(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if q.Username != "" {
		where = append(where, fmt.Sprintf("lower(username) = lower($%d)", idx))
		args = append(args, q.Username)
		idx++
	}
	if q.EntityType != "" {
		where = append(where, fmt.Sprintf("entity_type = $%d", idx))
		args = append(args, q.EntityType)
		idx++
	}
	if q.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, q.Action)
		idx++
	}
	if q.From != nil {
		where = append(where, fmt.Sprintf("occurred_at >= $%d", idx))
		args = append(args, *q.From)
		idx++
	}
	if q.To != nil {
		where = append(where, fmt.Sprintf("occurred_at <= $%d", idx))
		args = append(args, *q.To)
		idx++
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		select id, occurred_at, user_id, username, action, entity_type, coalesce(entity_id,''), coalesce(snapshot,''), retention_until
		from audit_log`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += fmt.Sprintf(" order by occurred_at desc, id desc limit $%d", idx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []audit.Entry{}
	for rows.Next() {
		var (
			e   audit.Entry
			uid sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &uid, &e.Username, &e.Action, &e.EntityType, &e.EntityID, &e.Snapshot, &e.RetentionUntil); err != nil {
			return nil, err
		}
		if uid.Valid {
			e.UserID = &uid.Int64
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AuditStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from audit_log where retention_until < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
