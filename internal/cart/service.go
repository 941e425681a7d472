package cart

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storefront/internal/logging"
)

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 100

var (
	ErrQuantity      = errors.New("quantity must be greater than zero")
	ErrQuantityLimit = errors.New("quantity exceeds the per item limit")
	ErrItemNotFound  = errors.New("item not in cart")
	ErrOutOfStock    = errors.New("not enough stock")
)

// Line is what the catalog knows about a cart item ref.
type Line struct {
	Name        string
	VariantName string
	UnitPrice   float64
	ImagePath   string
	Stock       int
}

type Resolver interface {
	Resolve(ctx context.Context, ref ItemRef) (Line, error)
}

type Service struct {
	store    Store
	resolver Resolver
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store Store, resolver Resolver, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Get returns the user's cart; a missing cart is an empty one.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return &Cart{UserID: userID, Items: []Item{}, UpdatedAt: s.now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Add(ctx context.Context, userID string, ref ItemRef, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrQuantity
	}
	if quantity > MaxLineQuantity {
		return nil, ErrQuantityLimit
	}

	line, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if idx := c.find(ref); idx >= 0 {
		existing := c.Items[idx].Quantity
		if quantity > MaxLineQuantity-existing {
			return nil, ErrQuantityLimit
		}
		if quantity > line.Stock-existing {
			return nil, ErrOutOfStock
		}
		c.Items[idx].Quantity = existing + quantity
		c.Items[idx].UnitPrice = line.UnitPrice
	} else {
		if quantity > line.Stock {
			return nil, ErrOutOfStock
		}
		c.Items = append(c.Items, Item{
			Ref:         ref,
			Quantity:    quantity,
			UnitPrice:   line.UnitPrice,
			Name:        line.Name,
			VariantName: line.VariantName,
			ImagePath:   line.ImagePath,
		})
	}

	return c, s.save(ctx, c)
}

// SetQuantity replaces a line quantity; zero or less removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID string, ref ItemRef, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return s.Remove(ctx, userID, ref)
	}
	if quantity > MaxLineQuantity {
		return nil, ErrQuantityLimit
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := c.find(ref)
	if idx < 0 {
		return nil, ErrItemNotFound
	}

	line, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if quantity > line.Stock {
		return nil, ErrOutOfStock
	}

	c.Items[idx].Quantity = quantity
	c.Items[idx].UnitPrice = line.UnitPrice
	return c, s.save(ctx, c)
}

func (s *Service) Remove(ctx context.Context, userID string, ref ItemRef) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := c.find(ref)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return c, s.save(ctx, c)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.now()
	if err := s.store.Save(ctx, c); err != nil {
		s.logger.Error("cart save failed", zap.String("user_id", c.UserID), zap.Error(err))
		return err
	}
	return nil
}
