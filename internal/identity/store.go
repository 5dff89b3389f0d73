package identity

import "context"

// Store describes persistence required by the identity subsystem.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	FindUser(ctx context.Context, id int64) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
	DeactivateUser(ctx context.Context, id int64) error

	CreateRole(ctx context.Context, role *Role) error
	FindRole(ctx context.Context, id int64) (Role, error)
	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
	AssignRole(ctx context.Context, userID, roleID int64) error

	AddCoverage(ctx context.Context, roleID, customerID int64) error
	RemoveCoverage(ctx context.Context, roleID, customerID int64) error
	CoverageForRole(ctx context.Context, roleID int64) ([]int64, error)
}
