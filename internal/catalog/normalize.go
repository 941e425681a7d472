package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

// normalizeProductDocument tolerates the loosely typed documents written by
// the catalog import (string booleans, float stock counts).
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	raw["isFeatured"] = asBool(raw["isFeatured"])
	raw["stock"] = asInt(raw["stock"])

	if variants, ok := raw["variants"].(bson.A); ok {
		for _, v := range variants {
			if doc, ok := v.(bson.M); ok {
				doc["stock"] = asInt(doc["stock"])
				if _, set := doc["isActive"]; !set {
					doc["isActive"] = true
				} else {
					doc["isActive"] = asBool(doc["isActive"])
				}
			}
		}
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}

	decorate(&p)
	return p, nil
}

// decorate fills the computed, non-persisted fields.
func decorate(p *models.Product) {
	p.IsOnSale = isProductOnSale(p.Price, p.SaleEnabled, p.SalePrice)
	p.InStock = p.Stock > 0
	for _, v := range p.Variants {
		if v.IsActive && v.Stock > 0 {
			p.InStock = true
			break
		}
	}
}

func asBool(val interface{}) bool {
	switch typed := val.(type) {
	case bool:
		return typed
	case string:
		return typed == "true"
	default:
		return false
	}
}

func asInt(val interface{}) int {
	switch typed := val.(type) {
	case int32:
		return int(typed)
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case int:
		return typed
	default:
		return 0
	}
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
