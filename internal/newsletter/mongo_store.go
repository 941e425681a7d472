package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

type MongoStore struct {
	subscribers *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{subscribers: db.Collection("newsletter_subscribers")}
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (models.NewsletterSubscriber, error) {
	var sub models.NewsletterSubscriber
	err := s.subscribers.FindOne(ctx, bson.M{"email": email}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NewsletterSubscriber{}, ErrSubscriberNotFound
	}
	if err != nil {
		return models.NewsletterSubscriber{}, fmt.Errorf("find subscriber failed: %w", err)
	}
	return sub, nil
}

func (s *MongoStore) Insert(ctx context.Context, sub *models.NewsletterSubscriber) error {
	res, err := s.subscribers.InsertOne(ctx, sub)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		sub.ID = id
	}
	return nil
}

func (s *MongoStore) Resubscribe(ctx context.Context, email, token string) error {
	_, err := s.subscribers.UpdateOne(ctx, bson.M{"email": email}, bson.M{
		"$set":   bson.M{"subscribed": true, "token": token},
		"$unset": bson.M{"unsubscribedAt": ""},
	})
	return err
}

func (s *MongoStore) Unsubscribe(ctx context.Context, token string, at time.Time) (models.NewsletterSubscriber, error) {
	var sub models.NewsletterSubscriber
	err := s.subscribers.FindOneAndUpdate(ctx,
		bson.M{"token": token, "subscribed": true},
		bson.M{"$set": bson.M{"subscribed": false, "unsubscribedAt": at}},
	).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NewsletterSubscriber{}, ErrSubscriberNotFound
	}
	if err != nil {
		return models.NewsletterSubscriber{}, fmt.Errorf("unsubscribe failed: %w", err)
	}
	return sub, nil
}
