package addressbook

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// MongoStore keeps addresses embedded in the user document.
type MongoStore struct {
	users *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{users: db.Collection("users")}
}

// Load returns the address list and its version. Documents written before
// versioning report version 0.
func (s *MongoStore) Load(ctx context.Context, userID primitive.ObjectID) ([]models.Address, int64, error) {
	var doc struct {
		Addresses []models.Address `bson:"addresses"`
		Version   int64            `bson:"addressesVersion"`
	}
	opts := options.FindOne().SetProjection(bson.M{"addresses": 1, "addressesVersion": 1})
	err := s.users.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, ErrUserNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return doc.Addresses, doc.Version, nil
}

// Save replaces the list only while it is still at version.
func (s *MongoStore) Save(ctx context.Context, userID primitive.ObjectID, addresses []models.Address, version int64) error {
	filter := bson.M{"_id": userID, "addressesVersion": version}
	if version == 0 {
		filter["addressesVersion"] = bson.M{"$in": bson.A{int64(0), nil}}
	}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"addresses":        addresses,
			"addressesVersion": version + 1,
			"updatedAt":        time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	count, err := s.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return ErrConcurrentUpdate
}
