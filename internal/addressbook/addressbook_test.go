package addressbook

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/validation"
)

type memoryStore struct {
	data     map[primitive.ObjectID][]models.Address
	versions map[primitive.ObjectID]int64
	saveErr  error
	saves    int
	// beforeSave runs ahead of each save, standing in for another writer.
	beforeSave func(userID primitive.ObjectID)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		data:     map[primitive.ObjectID][]models.Address{},
		versions: map[primitive.ObjectID]int64{},
	}
}

func (m *memoryStore) Load(_ context.Context, userID primitive.ObjectID) ([]models.Address, int64, error) {
	out := make([]models.Address, len(m.data[userID]))
	copy(out, m.data[userID])
	return out, m.versions[userID], nil
}

func (m *memoryStore) Save(_ context.Context, userID primitive.ObjectID, addresses []models.Address, version int64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.beforeSave != nil {
		m.beforeSave(userID)
	}
	if m.versions[userID] != version {
		return ErrConcurrentUpdate
	}
	m.saves++
	m.data[userID] = addresses
	m.versions[userID] = version + 1
	return nil
}

func newTestService(store Store) *Service {
	svc := NewService(store, nil)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("addr-%d", n)
	}
	return svc
}

func validInput() Input {
	return Input{
		FirstName:  "María",
		LastName:   "López",
		Email:      "Maria@Example.com",
		Phone:      "55-1234-5678",
		Colonia:    "Roma Norte",
		Street:     "Orizaba 101",
		City:       "Ciudad de México",
		State:      "CDMX",
		PostalCode: "06700",
		Country:    "México",
	}
}

func defaults(addresses []models.Address) []string {
	ids := []string{}
	for _, a := range addresses {
		if a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestCreate_FirstAddressBecomesDefault(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	user := primitive.NewObjectID()

	addr, err := svc.Create(context.Background(), user, validInput())
	require.NoError(t, err)
	assert.True(t, addr.IsDefault)
	assert.Equal(t, "maria@example.com", addr.Email)
	assert.Equal(t, "5512345678", addr.Phone)
}

func TestCreate_NewDefaultClearsPrevious(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	user := primitive.NewObjectID()
	ctx := context.Background()

	_, err := svc.Create(ctx, user, validInput())
	require.NoError(t, err)
	second := validInput()
	second.IsDefault = true
	_, err = svc.Create(ctx, user, second)
	require.NoError(t, err)
	_, err = svc.Create(ctx, user, validInput())
	require.NoError(t, err)

	assert.Equal(t, []string{"addr-2"}, defaults(store.data[user]))
}

func TestCreate_InvalidFormIsNotPersisted(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	in := validInput()
	in.PostalCode = "1234"
	_, err := svc.Create(context.Background(), primitive.NewObjectID(), in)
	require.Error(t, err)
	assert.Equal(t, "El código postal debe tener 5 dígitos", validation.Fields(err)["postalCode"])
	assert.Zero(t, store.saves)
}

func TestDelete_PromotesFirstRemaining(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	user := primitive.NewObjectID()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, user, validInput())
		require.NoError(t, err)
	}
	require.NoError(t, svc.Delete(ctx, user, "addr-1"))

	assert.Len(t, store.data[user], 2)
	assert.Equal(t, []string{"addr-2"}, defaults(store.data[user]))

	assert.ErrorIs(t, svc.Delete(ctx, user, "addr-1"), ErrAddressNotFound)
}

func TestSetDefault_KeepsSingleDefault(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	user := primitive.NewObjectID()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, user, validInput())
		require.NoError(t, err)
	}
	require.NoError(t, svc.SetDefault(ctx, user, "addr-3"))
	assert.Equal(t, []string{"addr-3"}, defaults(store.data[user]))

	addr, ok, err := svc.Default(ctx, user)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "addr-3", addr.ID)
}

func TestDefaultOf_FallsBackToFirst(t *testing.T) {
	addr, ok := DefaultOf([]models.Address{{ID: "a"}, {ID: "b"}})
	assert.True(t, ok)
	assert.Equal(t, "a", addr.ID)

	_, ok = DefaultOf(nil)
	assert.False(t, ok)
}

func TestCreate_StoreFailureIsWrapped(t *testing.T) {
	store := newMemoryStore()
	store.saveErr = errors.New("connection reset")
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), primitive.NewObjectID(), validInput())
	assert.ErrorIs(t, err, store.saveErr)
}

func TestCreate_ConcurrentWriteIsNotLost(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	other := validInput()
	other.Street = "Durango 20"
	store.beforeSave = func(id primitive.ObjectID) {
		store.beforeSave = nil
		_, err := svc.Create(ctx, id, other)
		require.NoError(t, err)
	}

	created, err := svc.Create(ctx, userID, validInput())
	require.NoError(t, err)

	addresses, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, addresses, 2)
	assert.Equal(t, "Durango 20", addresses[0].Street)
	assert.Equal(t, created.ID, addresses[1].ID)
	assert.Equal(t, []string{addresses[0].ID}, defaults(addresses))
	assert.False(t, created.IsDefault)
}

func TestCreate_GivesUpAfterRepeatedConflicts(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	store.beforeSave = func(id primitive.ObjectID) { store.versions[id]++ }

	_, err := svc.Create(context.Background(), primitive.NewObjectID(), validInput())
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, 0, store.saves)
}

func TestDelete_RetriesAgainstFreshList(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	first, err := svc.Create(ctx, userID, validInput())
	require.NoError(t, err)

	store.beforeSave = func(id primitive.ObjectID) {
		store.beforeSave = nil
		_, err := svc.Create(ctx, id, validInput())
		require.NoError(t, err)
	}
	require.NoError(t, svc.Delete(ctx, userID, first.ID))

	addresses, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.NotEqual(t, first.ID, addresses[0].ID)
	assert.True(t, addresses[0].IsDefault)
}
