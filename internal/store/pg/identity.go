package pg

import (
	"context"
	"database/sql"
	"errors"

	"casedesk.io/internal/coverage"
	"casedesk.io/internal/identity"
)

var (
	_ identity.Store = (*Store)(nil)
	_ coverage.Store = (*Store)(nil)
)

func (s *Store) CreateUser(ctx context.Context, u *identity.User) error {
	row := s.db.QueryRowContext(ctx, `
		insert into users (username, display_name, password_hash, is_active)
		values ($1, $2, $3, true)
		returning id, is_active, created_at, updated_at
	`, u.Username, u.DisplayName, u.PasswordHash)
	if err := row.Scan(&u.ID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) FindUser(ctx context.Context, id int64) (identity.User, error) {
	var u identity.User
	err := s.db.QueryRowContext(ctx, `
		select id, username, display_name, password_hash, is_active, created_at, updated_at
		from users
		where id = $1
	`, id).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.User{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.User{}, err
	}
	return u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (identity.User, error) {
	var u identity.User
	err := s.db.QueryRowContext(ctx, `
		select id, username, display_name, password_hash, is_active, created_at, updated_at
		from users
		where lower(username) = lower($1)
	`, username).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.User{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.User{}, err
	}
	return u, nil
}

func (s *Store) DeactivateUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		update users set is_active = false, updated_at = now() where id = $1
	`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Store) CreateRole(ctx context.Context, role *identity.Role) error {
	row := s.db.QueryRowContext(ctx, `
		insert into roles (name, page_permissions)
		values ($1, $2)
		returning id, created_at, updated_at
	`, role.Name, role.PagePermissions)
	if err := row.Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) FindRole(ctx context.Context, id int64) (identity.Role, error) {
	var role identity.Role
	err := s.db.QueryRowContext(ctx, `
		select id, name, page_permissions, created_at, updated_at
		from roles
		where id = $1
	`, id).Scan(&role.ID, &role.Name, &role.PagePermissions, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Role{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Role{}, err
	}
	return role, nil
}

func (s *Store) RolesForUser(ctx context.Context, userID int64) ([]identity.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.page_permissions, r.created_at, r.updated_at
		from role_assignments ra
		join roles r on r.id = ra.role_id
		where ra.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []identity.Role
	for rows.Next() {
		var role identity.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.PagePermissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		insert into role_assignments (user_id, role_id)
		values ($1, $2)
	`, userID, roleID); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return identity.ErrConflict
			case pgErrForeignKeyViolation:
				return identity.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) AddCoverage(ctx context.Context, roleID, customerID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		insert into role_coverage (role_id, customer_id)
		values ($1, $2)
	`, roleID, customerID); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return identity.ErrConflict
			case pgErrForeignKeyViolation:
				return identity.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) RemoveCoverage(ctx context.Context, roleID, customerID int64) error {
	res, err := s.db.ExecContext(ctx, `
		delete from role_coverage where role_id = $1 and customer_id = $2
	`, roleID, customerID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Store) CoverageForRole(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		select customer_id from role_coverage where role_id = $1 order by customer_id
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_id from role_assignments where user_id = $1 order by role_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
