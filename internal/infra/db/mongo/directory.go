package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/directory"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	col := db.Collection("directory_users")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	return &UserRepository{col: col}
}

func (r *UserRepository) User(ctx context.Context, id directory.UserID) (directory.User, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *UserRepository) UserByEmail(ctx context.Context, email string) (directory.User, error) {
	return r.findOne(ctx, bson.M{"email": directory.NormalizeEmail(email)})
}

func (r *UserRepository) Put(ctx context.Context, user directory.User) error {
	if user.ID == "" {
		return directory.ErrIDRequired
	}
	roles, err := directory.NormalizeRoles(user.Roles)
	if err != nil {
		return err
	}
	doc := userDocument{
		ID:           string(user.ID),
		Email:        directory.NormalizeEmail(user.Email),
		Name:         user.Name,
		Active:       user.Active,
		PasswordHash: user.PasswordHash,
	}
	for _, role := range roles {
		doc.Roles = append(doc.Roles, string(role))
	}
	_, err = r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (directory.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return directory.User{}, directory.ErrUserNotFound
		}
		return directory.User{}, err
	}
	return doc.toUser(), nil
}

var _ directory.Directory = (*UserRepository)(nil)
