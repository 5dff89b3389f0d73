package identity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultTokenTTL = 8 * time.Hour

// Service provides account, role and coverage operations plus token issuance.
type Service struct {
	store    Store
	tokenTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithTokenTTL overrides the access token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) *Service {
	svc := &Service{store: store, tokenTTL: defaultTokenTTL}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateUser registers an account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, username, displayName, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	user := User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// DeactivateUser soft-disables an account. Users are never physically deleted.
func (s *Service) DeactivateUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.DeactivateUser(ctx, id)
}

// CreateRole registers a role with an encoded page-permission string. The
// string is normalized through parse/encode so unknown tokens are dropped.
func (s *Service) CreateRole(ctx context.Context, name, pagePermissions string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := Role{
		Name:            name,
		PagePermissions: EncodePermissions(ParsePermissions(pagePermissions)),
	}
	if err := s.store.CreateRole(ctx, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// AssignRole links a user to a role. Duplicate assignments surface as ErrConflict.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if userID <= 0 || roleID <= 0 {
		return fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

// AddCoverage grants a role visibility into a customer. Duplicates surface
// as ErrConflict so the HTTP layer can answer 409.
func (s *Service) AddCoverage(ctx context.Context, roleID, customerID int64) error {
	if roleID <= 0 || customerID <= 0 {
		return fmt.Errorf("%w: role id and customer id are required", ErrInvalidInput)
	}
	return s.store.AddCoverage(ctx, roleID, customerID)
}

// RemoveCoverage revokes a role's visibility into a customer.
func (s *Service) RemoveCoverage(ctx context.Context, roleID, customerID int64) error {
	if roleID <= 0 || customerID <= 0 {
		return fmt.Errorf("%w: role id and customer id are required", ErrInvalidInput)
	}
	return s.store.RemoveCoverage(ctx, roleID, customerID)
}

// Authenticate verifies credentials and issues an access token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", User{}, ErrUnauthorized
	}
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		return "", User{}, ErrUnauthorized
	}
	if !user.IsActive {
		return "", User{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", User{}, ErrUnauthorized
	}
	token, err := GenerateToken(user.ID, user.Username, s.tokenTTL)
	if err != nil {
		return "", User{}, err
	}
	return token, user, nil
}

// RolesFor loads the roles assigned to a user.
func (s *Service) RolesFor(ctx context.Context, userID int64) ([]Role, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.RolesForUser(ctx, userID)
}

// IsAdmin reports whether the actor holds the Admin page at the given level.
// The configured development actor is treated as an administrator.
func (s *Service) IsAdmin(ctx context.Context, actor Actor, level PermissionLevel) (bool, error) {
	if actor.IsDev() {
		return true, nil
	}
	roles, err := s.store.RolesForUser(ctx, actor.UserID)
	if err != nil {
		return false, err
	}
	return RolesGrant(roles, AdminPage, level), nil
}
