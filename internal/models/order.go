package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// OrderItem represents a single product entry within an order.
type OrderItem struct {
	ProductID int64   `bson:"productId" json:"productId"`
	VariantID *int64  `bson:"variantId" json:"variantId"`
	Name      string  `bson:"name" json:"name"`
	Price     float64 `bson:"price" json:"price"`
	Quantity  int     `bson:"quantity" json:"quantity"`
}

// Order is written by the payment collaborator once a payment session is
// paid; the storefront reads it and moves it through fulfilment statuses.
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Items           []OrderItem        `bson:"items" json:"items"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	Tax             float64            `bson:"tax" json:"tax"`
	ShippingCost    float64            `bson:"shippingCost" json:"shippingCost"`
	TotalPrice      float64            `bson:"totalPrice" json:"totalPrice"`
	ShippingAddress Address            `bson:"shippingAddress" json:"shippingAddress"`
	Quote           *ShippingQuote     `bson:"quote,omitempty" json:"quote,omitempty"`
	Billing         *BillingData       `bson:"billing,omitempty" json:"billing,omitempty"`
	Status          string             `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
