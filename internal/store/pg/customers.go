package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"casedesk.io/internal/customers"
)

// CustomerStore persists customers.
type CustomerStore struct {
	db *sql.DB
}

var _ customers.Store = (*CustomerStore)(nil)

func (s *CustomerStore) Find(ctx context.Context, id int64) (customers.Customer, error) {
	var c customers.Customer
	err := s.db.QueryRowContext(ctx, `
		select id, name, is_active, created_at
		from customers
		where id = $1
	`, id).Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return customers.Customer{}, customers.ErrNotFound
	}
	if err != nil {
		return customers.Customer{}, err
	}
	return c, nil
}

func (s *CustomerStore) List(ctx context.Context, ids []int64, unrestricted bool) ([]customers.Customer, error) {
	query := `select id, name, is_active, created_at from customers`
	var args []any
	if !unrestricted {
		if len(ids) == 0 {
			return []customers.Customer{}, nil
		}
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, id)
		}
		query += " where id in (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " order by name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []customers.Customer{}
	for rows.Next() {
		var c customers.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
