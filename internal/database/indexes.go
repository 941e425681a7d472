package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureIndexes creates every index the storefront relies on. Failures are
// logged and returned joined by collection so startup can decide to continue.
func EnsureIndexes(db *mongo.Database, logger *zap.Logger) map[string]error {
	failures := map[string]error{}
	for collection, models := range indexPlan() {
		if err := ensure(db, collection, models, logger); err != nil {
			failures[collection] = err
		}
	}
	return failures
}

func indexPlan() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"users": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email_unique").SetUnique(true),
			},
		},
		"products": {
			{
				Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("category_createdAt"),
			},
			{
				Keys: bson.D{{Key: "variants.sku", Value: 1}},
				Options: options.Index().
					SetName("variant_sku_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"variants.sku": bson.M{"$exists": true}}),
			},
		},
		"categories": {
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetName("slug_unique").SetUnique(true),
			},
		},
		"orders": {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("userId_createdAt"),
			},
		},
		"refresh_tokens": {
			{
				Keys:    bson.D{{Key: "tokenHash", Value: 1}},
				Options: options.Index().SetName("tokenHash_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "expiresAt", Value: 1}},
				Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
			},
		},
		"password_resets": {
			{
				Keys:    bson.D{{Key: "expiresAt", Value: 1}},
				Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
			},
		},
		"newsletter_subscribers": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "token", Value: 1}},
				Options: options.Index().SetName("token_index"),
			},
		},
	}
}

func ensure(db *mongo.Database, collection string, models []mongo.IndexModel, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	if err != nil {
		logger.Warn("index creation failed", zap.String("collection", collection), zap.Error(err))
		return err
	}
	logger.Info("indexes ensured", zap.String("collection", collection), zap.Strings("indexes", names))
	return nil
}
