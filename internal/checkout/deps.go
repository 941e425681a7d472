package checkout

//go:generate mockgen -source=deps.go -destination=mocks/mock_deps.go -package=mocks

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/addressbook"
	"storefront/internal/analytics"
	"storefront/internal/cart"
	"storefront/internal/models"
)

type CartReader interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type AddressBook interface {
	List(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error)
	Create(ctx context.Context, userID primitive.ObjectID, in addressbook.Input) (models.Address, error)
}

// Quoter asks the rating service for a shipping cost.
type Quoter interface {
	Quote(ctx context.Context, token string, req QuoteRequest) (models.ShippingQuote, error)
}

// PaymentGateway opens a hosted payment session and returns its URL.
type PaymentGateway interface {
	CreateSession(ctx context.Context, token string, req PaymentRequest) (string, error)
}

type PurchasePublisher interface {
	PublishPurchase(ctx context.Context, event analytics.PurchaseEvent) error
}
