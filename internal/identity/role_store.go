package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrUserNotFound = errors.New("user not found")

// RoleStore is the authoritative source of a user's role.
type RoleStore interface {
	FetchRole(ctx context.Context, userID string) (Role, error)
	UpdateRole(ctx context.Context, userID string, role Role) error
}

type MongoRoleStore struct {
	users *mongo.Collection
}

func NewMongoRoleStore(db *mongo.Database) *MongoRoleStore {
	return &MongoRoleStore{users: db.Collection("users")}
}

func (s *MongoRoleStore) FetchRole(ctx context.Context, userID string) (Role, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	var doc struct {
		Role string `bson:"role"`
	}
	opts := options.FindOne().SetProjection(bson.M{"role": 1})
	if err := s.users.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("fetch role failed: %w", err)
	}

	role, _ := ParseRole(doc.Role)
	return role, nil
}

func (s *MongoRoleStore) UpdateRole(ctx context.Context, userID string, role Role) error {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	res, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"role":      string(role),
		"updatedAt": time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("update role failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
