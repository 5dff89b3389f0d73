package identity

import "time"

// User is a human account. Accounts are deactivated, never deleted.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role bundles page permissions and owns zero or more coverage rows.
// A role with no coverage rows is unrestricted: it sees every customer.
type Role struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	PagePermissions string    `json:"page_permissions"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleCoverage grants a role visibility into one customer.
type RoleCoverage struct {
	RoleID     int64     `json:"role_id"`
	CustomerID int64     `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Actor identifies who performs a request. It is resolved once per request
// by the HTTP layer and threaded through context; nothing reads ambient
// state. A zero UserID marks the configured development actor.
type Actor struct {
	UserID   int64
	Username string
}

// IsDev reports whether the actor is the configured development fallback
// rather than an authenticated account.
func (a Actor) IsDev() bool { return a.UserID == 0 }
