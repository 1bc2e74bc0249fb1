package sqlstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staybook/internal/domain/directory"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) User(ctx context.Context, id directory.UserID) (directory.User, error) {
	return r.first(ctx, "id = ?", string(id))
}

func (r *UserRepository) UserByEmail(ctx context.Context, email string) (directory.User, error) {
	email = directory.NormalizeEmail(email)
	if email == "" {
		return directory.User{}, directory.ErrUserNotFound
	}
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepository) first(ctx context.Context, query string, arg any) (directory.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return directory.User{}, directory.ErrUserNotFound
		}
		return directory.User{}, err
	}
	return row.toUser(), nil
}

func (r *UserRepository) Put(ctx context.Context, user directory.User) error {
	if strings.TrimSpace(string(user.ID)) == "" {
		return directory.ErrIDRequired
	}
	roles, err := directory.NormalizeRoles(user.Roles)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	row := userRow{
		ID:           string(user.ID),
		Email:        directory.NormalizeEmail(user.Email),
		Name:         user.Name,
		Roles:        strings.Join(names, ","),
		Active:       user.Active,
		PasswordHash: user.PasswordHash,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r userRow) toUser() directory.User {
	var roles []directory.Role
	for _, name := range strings.Split(r.Roles, ",") {
		if name = strings.TrimSpace(name); name != "" {
			roles = append(roles, directory.Role(name))
		}
	}
	return directory.User{
		ID:           directory.UserID(r.ID),
		Email:        r.Email,
		Name:         r.Name,
		Roles:        roles,
		Active:       r.Active,
		PasswordHash: r.PasswordHash,
	}
}

var _ directory.Directory = (*UserRepository)(nil)
