package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"staybook/internal/domain/shared/errs"
)

var (
	ErrUserNotFound = fmt.Errorf("directory: user %w", errs.ErrNotFound)
	ErrIDRequired   = errors.New("directory: id is required")
	ErrInvalidRole  = errors.New("directory: invalid role")
)

type UserID string

type Role string

const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

// User is the directory's view of an account, read-only to the booking engine.
type User struct {
	ID           UserID
	Email        string
	Name         string
	Roles        []Role
	Active       bool
	PasswordHash string
}

// Directory is the read-only port onto user accounts.
type Directory interface {
	User(ctx context.Context, id UserID) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
}

func (u User) HasRole(role Role) bool {
	role = NormalizeRole(role)
	if role == "" {
		return false
	}
	for _, current := range u.Roles {
		if NormalizeRole(current) == role {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// NormalizeRoles lowercases, deduplicates and validates roles; an empty input yields guest.
func NormalizeRoles(roles []Role) ([]Role, error) {
	if len(roles) == 0 {
		return []Role{RoleGuest}, nil
	}
	seen := make(map[Role]struct{}, len(roles))
	normalized := make([]Role, 0, len(roles))
	for _, role := range roles {
		r := NormalizeRole(role)
		if r != RoleGuest && r != RoleAdmin {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		normalized = append(normalized, r)
	}
	return normalized, nil
}

func NormalizeRole(role Role) Role {
	return Role(strings.ToLower(strings.TrimSpace(string(role))))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
