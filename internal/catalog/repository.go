package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/models"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrCategoryNotFound = errors.New("category not found")
)

type ListFilter struct {
	Category     string
	Search       string
	FeaturedOnly bool
	// IncludeInactive is set by the back office listing.
	IncludeInactive bool
	Page            int64
	Limit           int64
}

type Repository interface {
	ListProducts(ctx context.Context, filter ListFilter) ([]models.Product, int64, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	InsertProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, id int64, set bson.M) error
	SoftDeleteProduct(ctx context.Context, id int64) error
	InsertCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, id primitive.ObjectID, set bson.M) error
	NextID(ctx context.Context, sequence string) (int64, error)
}

type MongoRepository struct {
	db *mongo.Database
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{db: db}
}

func productFilter(filter ListFilter) bson.M {
	query := bson.M{"isDeleted": bson.M{"$ne": true}}
	if !filter.IncludeInactive {
		query["isActive"] = bson.M{"$ne": false}
	}
	if category := strings.ToLower(strings.TrimSpace(filter.Category)); category != "" {
		query["category"] = bson.M{"$in": []string{category}}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		query["$or"] = []bson.M{
			{"name": pattern},
			{"description": pattern},
			{"material": pattern},
			{"variants.sku": pattern},
		}
	}
	if filter.FeaturedOnly {
		query["isFeatured"] = true
	}
	return query
}

func (r *MongoRepository) ListProducts(ctx context.Context, filter ListFilter) ([]models.Product, int64, error) {
	query := productFilter(filter)
	products := r.db.Collection("products")

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Page > 0 && filter.Limit > 0 {
		findOptions.SetSkip((filter.Page - 1) * filter.Limit).SetLimit(filter.Limit)
	}

	total, err := products.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	cursor, err := products.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	list, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}
	return list, total, nil
}

func (r *MongoRepository) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	var raw bson.M
	err := r.db.Collection("products").FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("find product: %w", err)
	}
	return normalizeProductDocument(raw)
}

func (r *MongoRepository) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	cursor, err := r.db.Collection("categories").Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	defer cursor.Close(ctx)

	categories := make([]models.Category, 0)
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return categories, nil
}

func (r *MongoRepository) InsertProduct(ctx context.Context, p *models.Product) error {
	_, err := r.db.Collection("products").InsertOne(ctx, p)
	return err
}

func (r *MongoRepository) UpdateProduct(ctx context.Context, id int64, set bson.M) error {
	res, err := r.db.Collection("products").UpdateOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *MongoRepository) SoftDeleteProduct(ctx context.Context, id int64) error {
	now := time.Now()
	return r.UpdateProduct(ctx, id, bson.M{
		"isDeleted": true,
		"isActive":  false,
		"deletedAt": now,
	})
}

func (r *MongoRepository) InsertCategory(ctx context.Context, c *models.Category) error {
	res, err := r.db.Collection("categories").InsertOne(ctx, c)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = id
	}
	return nil
}

func (r *MongoRepository) UpdateCategory(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.db.Collection("categories").UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *MongoRepository) NextID(ctx context.Context, sequence string) (int64, error) {
	return database.NextSequence(ctx, r.db, sequence)
}
