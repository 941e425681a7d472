package addressbook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/validation"
)

var (
	ErrAddressNotFound = errors.New("address not found")
	ErrUserNotFound    = errors.New("user not found")
	// ErrConcurrentUpdate means the list changed between load and save.
	ErrConcurrentUpdate = errors.New("addresses changed concurrently")
)

const maxSaveAttempts = 3

// Input is the address form shared by the account page and checkout step 2.
type Input struct {
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"required,phone_mx"`
	Colonia        string `json:"colonia" validate:"required"`
	Street         string `json:"street" validate:"required"`
	ExteriorNumber string `json:"exteriorNumber"`
	InteriorNumber string `json:"interiorNumber"`
	City           string `json:"city" validate:"required"`
	State          string `json:"state" validate:"required"`
	PostalCode     string `json:"postalCode" validate:"required,postal_code"`
	Country        string `json:"country" validate:"required"`
	IsDefault      bool   `json:"isDefault"`
}

// FromAddress seeds a form from a saved address.
func FromAddress(a models.Address) Input {
	return Input{
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Email:          a.Email,
		Phone:          a.Phone,
		Colonia:        a.Colonia,
		Street:         a.Street,
		ExteriorNumber: a.ExteriorNumber,
		InteriorNumber: a.InteriorNumber,
		City:           a.City,
		State:          a.State,
		PostalCode:     a.PostalCode,
		Country:        a.Country,
		IsDefault:      a.IsDefault,
	}
}

func (in Input) Validate() error {
	return validation.Struct(in)
}

func (in Input) apply(a *models.Address) {
	a.FirstName = strings.TrimSpace(in.FirstName)
	a.LastName = strings.TrimSpace(in.LastName)
	a.Email = strings.ToLower(strings.TrimSpace(in.Email))
	a.Phone = validation.NormalizePhone(in.Phone)
	a.Colonia = strings.TrimSpace(in.Colonia)
	a.Street = strings.TrimSpace(in.Street)
	a.ExteriorNumber = strings.TrimSpace(in.ExteriorNumber)
	a.InteriorNumber = strings.TrimSpace(in.InteriorNumber)
	a.City = strings.TrimSpace(in.City)
	a.State = strings.TrimSpace(in.State)
	a.PostalCode = strings.TrimSpace(in.PostalCode)
	a.Country = strings.TrimSpace(in.Country)
}

// Store loads and replaces a user's embedded address list. Save fails with
// ErrConcurrentUpdate when the list is no longer at the loaded version.
type Store interface {
	Load(ctx context.Context, userID primitive.ObjectID) ([]models.Address, int64, error)
	Save(ctx context.Context, userID primitive.ObjectID, addresses []models.Address, version int64) error
}

type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logging.OrNop(logger),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

func (s *Service) List(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	addresses, _, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if addresses == nil {
		addresses = []models.Address{}
	}
	return addresses, nil
}

func (s *Service) Get(ctx context.Context, userID primitive.ObjectID, addressID string) (models.Address, error) {
	addresses, _, err := s.store.Load(ctx, userID)
	if err != nil {
		return models.Address{}, err
	}
	idx := indexOf(addresses, addressID)
	if idx < 0 {
		return models.Address{}, ErrAddressNotFound
	}
	return addresses[idx], nil
}

// Default returns the flagged default address, else the first one. ok is
// false when the user has no saved addresses.
func (s *Service) Default(ctx context.Context, userID primitive.ObjectID) (models.Address, bool, error) {
	addresses, _, err := s.store.Load(ctx, userID)
	if err != nil {
		return models.Address{}, false, err
	}
	addr, ok := DefaultOf(addresses)
	return addr, ok, nil
}

func DefaultOf(addresses []models.Address) (models.Address, bool) {
	if len(addresses) == 0 {
		return models.Address{}, false
	}
	for _, a := range addresses {
		if a.IsDefault {
			return a, true
		}
	}
	return addresses[0], true
}

// modify applies change to the freshly loaded list and saves it, reloading
// and reapplying when another writer got in first.
func (s *Service) modify(ctx context.Context, userID primitive.ObjectID, change func([]models.Address) ([]models.Address, error)) error {
	for attempt := 1; ; attempt++ {
		addresses, version, err := s.store.Load(ctx, userID)
		if err != nil {
			return err
		}
		updated, err := change(addresses)
		if err != nil {
			return err
		}

		err = s.store.Save(ctx, userID, updated, version)
		if errors.Is(err, ErrConcurrentUpdate) && attempt < maxSaveAttempts {
			s.logger.Debug("address list changed, retrying", zap.String("user_id", userID.Hex()), zap.Int("attempt", attempt))
			continue
		}
		return err
	}
}

func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, in Input) (models.Address, error) {
	if err := in.Validate(); err != nil {
		return models.Address{}, err
	}

	now := s.now()
	address := models.Address{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
	in.apply(&address)

	err := s.modify(ctx, userID, func(addresses []models.Address) ([]models.Address, error) {
		address.IsDefault = in.IsDefault || len(addresses) == 0
		addresses = append(addresses, address)
		if address.IsDefault {
			setDefault(addresses, address.ID)
		}
		return addresses, nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.Address{}, err
		}
		s.logger.Error("insert address failed", zap.String("user_id", userID.Hex()), zap.Error(err))
		return models.Address{}, fmt.Errorf("save addresses: %w", err)
	}

	s.logger.Info("address created", zap.String("user_id", userID.Hex()), zap.String("address_id", address.ID))
	return address, nil
}

func (s *Service) Update(ctx context.Context, userID primitive.ObjectID, addressID string, in Input) (models.Address, error) {
	if err := in.Validate(); err != nil {
		return models.Address{}, err
	}

	var updated models.Address
	err := s.modify(ctx, userID, func(addresses []models.Address) ([]models.Address, error) {
		idx := indexOf(addresses, addressID)
		if idx < 0 {
			return nil, ErrAddressNotFound
		}
		in.apply(&addresses[idx])
		addresses[idx].UpdatedAt = s.now()
		if in.IsDefault {
			setDefault(addresses, addresses[idx].ID)
		}
		updated = addresses[idx]
		return addresses, nil
	})
	if err != nil {
		if errors.Is(err, ErrAddressNotFound) || errors.Is(err, ErrUserNotFound) {
			return models.Address{}, err
		}
		s.logger.Error("update address failed", zap.String("address_id", addressID), zap.Error(err))
		return models.Address{}, fmt.Errorf("save addresses: %w", err)
	}

	s.logger.Info("address updated", zap.String("address_id", addressID))
	return updated, nil
}

func (s *Service) SetDefault(ctx context.Context, userID primitive.ObjectID, addressID string) error {
	return s.modify(ctx, userID, func(addresses []models.Address) ([]models.Address, error) {
		idx := indexOf(addresses, addressID)
		if idx < 0 {
			return nil, ErrAddressNotFound
		}
		setDefault(addresses, addresses[idx].ID)
		return addresses, nil
	})
}

// Delete removes an address. When the default goes, the first remaining
// address inherits the flag.
func (s *Service) Delete(ctx context.Context, userID primitive.ObjectID, addressID string) error {
	err := s.modify(ctx, userID, func(addresses []models.Address) ([]models.Address, error) {
		idx := indexOf(addresses, addressID)
		if idx < 0 {
			return nil, ErrAddressNotFound
		}

		wasDefault := addresses[idx].IsDefault
		remaining := make([]models.Address, 0, len(addresses)-1)
		remaining = append(remaining, addresses[:idx]...)
		remaining = append(remaining, addresses[idx+1:]...)
		if wasDefault && len(remaining) > 0 {
			setDefault(remaining, remaining[0].ID)
		}
		return remaining, nil
	})
	if err != nil {
		if errors.Is(err, ErrAddressNotFound) || errors.Is(err, ErrUserNotFound) {
			return err
		}
		s.logger.Error("delete address failed", zap.String("address_id", addressID), zap.Error(err))
		return fmt.Errorf("save addresses: %w", err)
	}
	s.logger.Info("address deleted", zap.String("address_id", addressID))
	return nil
}

func setDefault(addresses []models.Address, id string) {
	for i := range addresses {
		addresses[i].IsDefault = addresses[i].ID == id
	}
}

func indexOf(addresses []models.Address, id string) int {
	id = strings.TrimSpace(id)
	for i, a := range addresses {
		if a.ID == id {
			return i
		}
	}
	return -1
}
