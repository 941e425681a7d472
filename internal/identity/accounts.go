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

	"storefront/internal/models"
)

var ErrTokenNotFound = errors.New("token not found")

// AccountStore persists users, refresh tokens and password resets.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error

	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, hash string) (models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error
	RevokeRefreshTokenByHash(ctx context.Context, hash string) (models.RefreshToken, error)

	SavePasswordReset(ctx context.Context, reset *models.PasswordReset) error
	ConsumePasswordReset(ctx context.Context, hash string, now time.Time) (models.PasswordReset, error)
}

type MongoAccountStore struct {
	users  *mongo.Collection
	tokens *mongo.Collection
	resets *mongo.Collection
}

func NewMongoAccountStore(db *mongo.Database) *MongoAccountStore {
	return &MongoAccountStore{
		users:  db.Collection("users"),
		tokens: db.Collection("refresh_tokens"),
		resets: db.Collection("password_resets"),
	}
}

func (s *MongoAccountStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoAccountStore) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoAccountStore) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("find user failed: %w", err)
	}
	return user, nil
}

func (s *MongoAccountStore) Create(ctx context.Context, user *models.User) error {
	res, err := s.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user failed: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return nil
}

func (s *MongoAccountStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"passwordHash": hash,
		"updatedAt":    time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("update password failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoAccountStore) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	res, err := s.tokens.InsertOne(ctx, token)
	if err != nil {
		return fmt.Errorf("insert refresh token failed: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		token.ID = id
	}
	return nil
}

func (s *MongoAccountStore) FindRefreshToken(ctx context.Context, hash string) (models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.tokens.FindOne(ctx, bson.M{"tokenHash": hash, "revoked": false}).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RefreshToken{}, ErrTokenNotFound
	}
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("find refresh token failed: %w", err)
	}
	return token, nil
}

func (s *MongoAccountStore) RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	set := bson.M{"revoked": true}
	if replacedBy != nil {
		set["replacedByToken"] = *replacedBy
	}
	if _, err := s.tokens.UpdateByID(ctx, id, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("revoke refresh token failed: %w", err)
	}
	return nil
}

func (s *MongoAccountStore) RevokeRefreshTokenByHash(ctx context.Context, hash string) (models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.tokens.FindOneAndUpdate(ctx,
		bson.M{"tokenHash": hash, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}},
	).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RefreshToken{}, ErrTokenNotFound
	}
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("revoke refresh token failed: %w", err)
	}
	return token, nil
}

func (s *MongoAccountStore) SavePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	res, err := s.resets.InsertOne(ctx, reset)
	if err != nil {
		return fmt.Errorf("insert password reset failed: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		reset.ID = id
	}
	return nil
}

// ConsumePasswordReset marks an unexpired reset as used in one step so a
// token can be redeemed only once.
func (s *MongoAccountStore) ConsumePasswordReset(ctx context.Context, hash string, now time.Time) (models.PasswordReset, error) {
	var reset models.PasswordReset
	err := s.resets.FindOneAndUpdate(ctx,
		bson.M{"tokenHash": hash, "used": false, "expiresAt": bson.M{"$gt": now}},
		bson.M{"$set": bson.M{"used": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&reset)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PasswordReset{}, ErrTokenNotFound
	}
	if err != nil {
		return models.PasswordReset{}, fmt.Errorf("consume password reset failed: %w", err)
	}
	return reset, nil
}
