package pg

import (
	"context"

	"casedesk.io/internal/sla"
)

var _ sla.Store = (*Store)(nil)

func (s *Store) ActiveThresholds(ctx context.Context) ([]sla.Threshold, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, priority, response_time_hours, resolution_time_hours, is_active, updated_at
		from sla_thresholds
		where is_active
		order by id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []sla.Threshold{}
	for rows.Next() {
		var t sla.Threshold
		if err := rows.Scan(&t.ID, &t.Priority, &t.ResponseTimeHours, &t.ResolutionTimeHours, &t.IsActive, &t.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpsertThresholds(ctx context.Context, thresholds []sla.Threshold) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range thresholds {
		if _, err := tx.ExecContext(ctx, `
			insert into sla_thresholds (priority, response_time_hours, resolution_time_hours, is_active, updated_at)
			values ($1, $2, $3, $4, now())
			on conflict (priority) do update
			set response_time_hours = excluded.response_time_hours,
			    resolution_time_hours = excluded.resolution_time_hours,
			    is_active = excluded.is_active,
			    updated_at = now()
		`, t.Priority, t.ResponseTimeHours, t.ResolutionTimeHours, t.IsActive); err != nil {
			return err
		}
	}
	return tx.Commit()
}
