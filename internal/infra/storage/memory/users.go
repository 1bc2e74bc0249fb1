package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"staybook/internal/domain/directory"
)

// Directory stores users in memory. Not suitable for production.
type Directory struct {
	mu      sync.RWMutex
	byID    map[directory.UserID]directory.User
	byEmail map[string]directory.UserID
}

func NewDirectory() *Directory {
	return &Directory{
		byID:    make(map[directory.UserID]directory.User),
		byEmail: make(map[string]directory.UserID),
	}
}

func (d *Directory) User(ctx context.Context, id directory.UserID) (directory.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if user, ok := d.byID[id]; ok {
		return cloneUser(user), nil
	}
	return directory.User{}, directory.ErrUserNotFound
}

func (d *Directory) UserByEmail(ctx context.Context, email string) (directory.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[directory.NormalizeEmail(email)]
	if !ok {
		return directory.User{}, directory.ErrUserNotFound
	}
	return cloneUser(d.byID[id]), nil
}

func (d *Directory) Put(user directory.User) error {
	if strings.TrimSpace(string(user.ID)) == "" {
		return directory.ErrIDRequired
	}
	roles, err := directory.NormalizeRoles(user.Roles)
	if err != nil {
		return err
	}
	user.Roles = roles
	user.Email = directory.NormalizeEmail(user.Email)

	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.byID[user.ID]; ok && prev.Email != user.Email {
		delete(d.byEmail, prev.Email)
	}
	d.byID[user.ID] = cloneUser(user)
	if user.Email != "" {
		d.byEmail[user.Email] = user.ID
	}
	return nil
}

func cloneUser(u directory.User) directory.User {
	u.Roles = slices.Clone(u.Roles)
	return u
}

var _ directory.Directory = (*Directory)(nil)
