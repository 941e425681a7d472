package models

import (
	"time"
)

// Variant is a purchasable option of a product (size, metal, stone).
// A zero Price means the product price applies.
type Variant struct {
	ID        int64   `bson:"id" json:"id"`
	Name      string  `bson:"name" json:"name"`
	SKU       string  `bson:"sku,omitempty" json:"sku,omitempty"`
	Size      string  `bson:"size,omitempty" json:"size,omitempty"`
	Material  string  `bson:"material,omitempty" json:"material,omitempty"`
	Price     float64 `bson:"price,omitempty" json:"price,omitempty"`
	Stock     int     `bson:"stock" json:"stock"`
	ImagePath string  `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	IsActive  bool    `bson:"isActive" json:"isActive"`
}

type Product struct {
	ID          int64      `bson:"_id" json:"id"`
	Name        string     `bson:"name" json:"name"`
	Price       float64    `bson:"price" json:"price"`
	SaleEnabled bool       `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice   float64    `bson:"salePrice" json:"salePrice"`
	IsOnSale    bool       `bson:"-" json:"isOnSale"`
	Category    StringList `bson:"category" json:"category"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Material    string     `bson:"material,omitempty" json:"material,omitempty"`
	ImagePath   string     `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	Images      []string   `bson:"images,omitempty" json:"images,omitempty"`
	Variants    []Variant  `bson:"variants,omitempty" json:"variants,omitempty"`
	Stock       int        `bson:"stock" json:"stock"`
	InStock     bool       `bson:"-" json:"inStock"`
	IsActive    bool       `bson:"isActive" json:"isActive"`
	IsFeatured  bool       `bson:"isFeatured" json:"isFeatured"`
	IsDeleted   bool       `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt   *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
}
