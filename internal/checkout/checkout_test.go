package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"

	"storefront/internal/addressbook"
	"storefront/internal/analytics"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/checkout/mocks"
	"storefront/internal/identity"
	"storefront/internal/models"
)

type fixture struct {
	svc       *checkout.Service
	carts     *mocks.MockCartReader
	addresses *mocks.MockAddressBook
	quoter    *mocks.MockQuoter
	payments  *mocks.MockPaymentGateway
	events    *mocks.MockPurchasePublisher
	actor     checkout.Actor
	userID    primitive.ObjectID
	client    *redis.Client
	ids       int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		carts:     mocks.NewMockCartReader(ctrl),
		addresses: mocks.NewMockAddressBook(ctrl),
		quoter:    mocks.NewMockQuoter(ctrl),
		payments:  mocks.NewMockPaymentGateway(ctrl),
		events:    mocks.NewMockPurchasePublisher(ctrl),
		userID:    primitive.NewObjectID(),
		client:    client,
	}
	f.actor = checkout.Actor{
		User:  identity.User{ID: f.userID.Hex(), Name: "Ana", Email: "ana@example.com", Role: identity.RoleCustomer},
		Token: "tok-ana",
	}
	f.build(f.carts)
	return f
}

func (f *fixture) build(carts checkout.CartReader) {
	f.svc = checkout.NewService(
		checkout.NewRedisSessionStore(f.client, time.Hour),
		carts, f.addresses, f.quoter, f.payments, f.events,
		checkout.Options{
			ShippingProviderID: "prov-1",
			Now:                func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
			NewID: func() string {
				f.ids++
				return fmt.Sprintf("id-%d", f.ids)
			},
		},
		nil,
	)
}

type catalogLines map[string]cart.Line

func (c catalogLines) Resolve(_ context.Context, ref cart.ItemRef) (cart.Line, error) {
	line, ok := c[ref.String()]
	if !ok {
		return cart.Line{}, errors.New("unknown item")
	}
	return line, nil
}

// withStoredCart swaps the cart mock for a Redis backed cart holding one
// 1000 priced ring.
func (f *fixture) withStoredCart(t *testing.T) *cart.Service {
	t.Helper()
	carts := cart.NewService(
		cart.NewRedisStore(f.client, time.Hour),
		catalogLines{"1-base": {Name: "Anillo Solitario", UnitPrice: 1000, Stock: 5}},
		nil,
	)
	_, err := carts.Add(context.Background(), f.actor.User.ID, cart.BaseItem(1), 1)
	require.NoError(t, err)
	f.build(carts)
	return carts
}

// sampleCart: 2 × 250 base + 1 × 500 variant = 1000, 3 units.
func sampleCart(userID string) *cart.Cart {
	return &cart.Cart{
		UserID: userID,
		Items: []cart.Item{
			{Ref: cart.BaseItem(42), Quantity: 2, UnitPrice: 250, Name: "Aretes de plata"},
			{Ref: cart.VariantItem(43, 7), Quantity: 1, UnitPrice: 500, Name: "Anillo", VariantName: "Talla 7"},
		},
	}
}

func savedAddress(id, cp string, isDefault bool) models.Address {
	return models.Address{
		ID:         id,
		FirstName:  "Ana",
		LastName:   "López",
		Email:      "ana@example.com",
		Phone:      "5512345678",
		Colonia:    "Roma Norte",
		Street:     "Orizaba 10",
		City:       "CDMX",
		State:      "CDMX",
		PostalCode: cp,
		Country:    "México",
		IsDefault:  isDefault,
	}
}

func validForm() addressbook.Input {
	return addressbook.FromAddress(savedAddress("", "06700", false))
}

func (f *fixture) withCart(c *cart.Cart) {
	f.carts.EXPECT().Get(gomock.Any(), f.actor.User.ID).Return(c, nil).AnyTimes()
}

func (f *fixture) withAddresses(addresses ...models.Address) {
	f.addresses.EXPECT().List(gomock.Any(), f.userID).Return(addresses, nil).AnyTimes()
}

func (f *fixture) toPayment(t *testing.T, quoteErr error) {
	t.Helper()
	ctx := context.Background()
	if quoteErr != nil {
		f.quoter.EXPECT().Quote(gomock.Any(), "tok-ana", gomock.Any()).Return(models.ShippingQuote{}, quoteErr)
	} else {
		f.quoter.EXPECT().Quote(gomock.Any(), "tok-ana", gomock.Any()).Return(models.ShippingQuote{ShippingCost: 150}, nil)
	}

	_, err := f.svc.SubmitBilling(ctx, f.actor, false, models.BillingData{})
	require.NoError(t, err)
	view, err := f.svc.SubmitShipping(ctx, f.actor, addressbook.Input{}, "a1")
	require.NoError(t, err)
	require.Equal(t, checkout.StepPayment, view.Step)
}

func TestStart_SeedsFormFromDefaultAddress(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", false), savedAddress("a2", "44100", true))

	view, err := f.svc.Start(context.Background(), f.actor)
	require.NoError(t, err)

	assert.Equal(t, checkout.StepBilling, view.Step)
	assert.Equal(t, "44100", view.AddressForm.PostalCode)
	assert.Equal(t, "a2", view.SelectedAddressID)
	assert.True(t, view.Totals.Pending)
	assert.Equal(t, checkout.PendingLabel, view.DisplayTotal)
}

func TestSubmitBilling_WithoutInvoiceSkipsValidation(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses()

	view, err := f.svc.SubmitBilling(context.Background(), f.actor, false, models.BillingData{RFC: "AB"})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepShipping, view.Step)
}

func TestSubmitBilling_InvalidInvoiceStaysAtBilling(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses()
	ctx := context.Background()

	_, err := f.svc.SubmitBilling(ctx, f.actor, true, models.BillingData{
		RFC:              "AB",
		RazonSocial:      "Joyas SA",
		CPFiscal:         "1234",
		RegimenFiscal:    "601",
		UsoCFDI:          "G03",
		EmailFacturacion: "f@example.com",
	})

	var stepErr *checkout.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, checkout.StepBilling, stepErr.Step)
	assert.Equal(t, "El RFC debe tener 12 o 13 caracteres", stepErr.Fields["rfc"])
	assert.Equal(t, "El código postal debe tener 5 dígitos", stepErr.Fields["cp_fiscal"])

	view, err := f.svc.View(ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepBilling, view.Step)
	assert.True(t, view.RequiresInvoice)
	assert.Equal(t, "AB", view.Billing.RFC)
}

func TestSubmitShipping_FirstAddressIsCreatedAndAdvances(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	ctx := context.Background()

	var saved []models.Address
	f.addresses.EXPECT().List(gomock.Any(), f.userID).DoAndReturn(
		func(context.Context, primitive.ObjectID) ([]models.Address, error) { return saved, nil },
	).AnyTimes()
	f.addresses.EXPECT().Create(gomock.Any(), f.userID, validForm()).DoAndReturn(
		func(_ context.Context, _ primitive.ObjectID, in addressbook.Input) (models.Address, error) {
			a := savedAddress("new-1", in.PostalCode, true)
			saved = append(saved, a)
			return a, nil
		},
	).Times(1)

	var sent checkout.QuoteRequest
	f.quoter.EXPECT().Quote(gomock.Any(), "tok-ana", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, req checkout.QuoteRequest) (models.ShippingQuote, error) {
			sent = req
			return models.ShippingQuote{ShippingCost: 150}, nil
		},
	)

	_, err := f.svc.SubmitBilling(ctx, f.actor, false, models.BillingData{})
	require.NoError(t, err)

	view, err := f.svc.SubmitShipping(ctx, f.actor, validForm(), "")
	require.NoError(t, err)

	assert.Equal(t, checkout.StepPayment, view.Step)
	assert.Equal(t, "new-1", view.SelectedAddressID)
	require.Len(t, view.Addresses, 1)
	require.NotNil(t, view.Totals.Total)
	assert.True(t, view.Totals.Total.Equal(decimal.NewFromInt(1310)))
	assert.Equal(t, "1310.00", view.DisplayTotal)

	assert.Equal(t, "06700", sent.CPDestino)
	assert.Equal(t, "Roma Norte", sent.ColoniaDestino)
	assert.Equal(t, 0.5, sent.Peso)
	assert.Equal(t, 1000.0, sent.ValorDeclarado)
	assert.Equal(t, "caja", sent.TipoEmpaque)
	assert.Equal(t, "prov-1", sent.ShippingProviderID)
	assert.Equal(t, f.actor.User.ID, sent.UserID)
}

func TestSubmitShipping_InvalidFirstAddressIsNotCreated(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses()
	ctx := context.Background()

	_, err := f.svc.SubmitBilling(ctx, f.actor, false, models.BillingData{})
	require.NoError(t, err)

	form := validForm()
	form.PostalCode = "123"
	_, err = f.svc.SubmitShipping(ctx, f.actor, form, "")

	var stepErr *checkout.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, checkout.StepShipping, stepErr.Step)
	assert.Contains(t, stepErr.Fields, "postalCode")
}

func TestSubmitShipping_AddressSaveFailureStaysAtShipping(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses()
	f.addresses.EXPECT().Create(gomock.Any(), f.userID, gomock.Any()).Return(models.Address{}, errors.New("mongo down"))
	ctx := context.Background()

	_, err := f.svc.SubmitBilling(ctx, f.actor, false, models.BillingData{})
	require.NoError(t, err)

	_, err = f.svc.SubmitShipping(ctx, f.actor, validForm(), "")
	var stepErr *checkout.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, checkout.MsgAddressSaveFailed, stepErr.Message)

	view, err := f.svc.View(ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepShipping, view.Step)
	assert.Equal(t, "06700", view.AddressForm.PostalCode)
}

func TestSubmitShipping_SavedAddressesRequireSelection(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))
	ctx := context.Background()

	_, err := f.svc.SubmitBilling(ctx, f.actor, false, models.BillingData{})
	require.NoError(t, err)

	for _, id := range []string{"", "unknown"} {
		_, err = f.svc.SubmitShipping(ctx, f.actor, addressbook.Input{}, id)
		var stepErr *checkout.StepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, checkout.MsgSelectAddress, stepErr.Message)
	}

	view, err := f.svc.View(ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepShipping, view.Step)
}

func TestSubmitShipping_QuoteFailureStillReachesPayment(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))

	f.toPayment(t, errors.New("timeout"))

	view, err := f.svc.View(context.Background(), f.actor)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPayment, view.Step)
	assert.Nil(t, view.Quote)
	assert.Nil(t, view.Totals.Total)
	assert.Equal(t, checkout.PendingLabel, view.DisplayTotal)
	assert.Equal(t, []string{checkout.MsgQuoteUnavailable}, view.Warnings)
}

func TestSelectAddress_RefetchesQuote(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true), savedAddress("a2", "44100", false))
	f.toPayment(t, nil)

	f.quoter.EXPECT().Quote(gomock.Any(), "tok-ana", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, req checkout.QuoteRequest) (models.ShippingQuote, error) {
			assert.Equal(t, "44100", req.CPDestino)
			return models.ShippingQuote{ShippingCost: 210}, nil
		},
	)

	view, err := f.svc.SelectAddress(context.Background(), f.actor, "a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", view.SelectedAddressID)
	require.NotNil(t, view.Quote)
	assert.Equal(t, 210.0, view.Quote.ShippingCost)
	assert.Equal(t, "1370.00", view.DisplayTotal)

	_, err = f.svc.SelectAddress(context.Background(), f.actor, "missing")
	assert.Error(t, err)
}

func TestBack(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))
	ctx := context.Background()

	_, err := f.svc.Back(ctx, f.actor)
	var stepErr *checkout.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, checkout.MsgNoPreviousStep, stepErr.Message)

	f.toPayment(t, nil)

	view, err := f.svc.Back(ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepShipping, view.Step)

	view, err = f.svc.Back(ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepBilling, view.Step)
}

func TestPay_SubmitsOrderAndStaysAtPayment(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))
	f.toPayment(t, nil)

	f.payments.EXPECT().CreateSession(gomock.Any(), "tok-ana", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, req checkout.PaymentRequest) (string, error) {
			require.Len(t, req.CartItems, 2)
			assert.Equal(t, int64(42), req.CartItems[0].ProductID)
			assert.Nil(t, req.CartItems[0].VariantID)
			require.NotNil(t, req.CartItems[1].VariantID)
			assert.Equal(t, int64(7), *req.CartItems[1].VariantID)
			assert.Equal(t, "a1", req.SelectedAddressID)
			assert.Equal(t, "a1", req.ShippingAddressID)
			assert.Equal(t, f.actor.User.Email, req.User.Email)
			assert.Nil(t, req.BillingSnapshot)
			require.NotNil(t, req.ShippingQuote)
			assert.Equal(t, 150.0, req.ShippingQuote.ShippingCost)
			return "https://pay.example.com/s/1", nil
		},
	)

	url, err := f.svc.Pay(context.Background(), f.actor)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/s/1", url)

	view, err := f.svc.View(context.Background(), f.actor)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPayment, view.Step)
}

func TestPay_FailureIsClassifiedAndRetryable(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))
	f.toPayment(t, nil)

	f.payments.EXPECT().CreateSession(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("boom"))
	_, err := f.svc.Pay(context.Background(), f.actor)

	var payErr *checkout.PaymentError
	require.True(t, errors.As(err, &payErr))
	assert.Equal(t, checkout.PaymentErrorGeneric, payErr.Kind)

	f.payments.EXPECT().CreateSession(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://pay.example.com/s/2", nil)
	url, err := f.svc.Pay(context.Background(), f.actor)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/s/2", url)
}

func TestPay_RejectsDuplicateSubmission(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))
	f.toPayment(t, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.payments.EXPECT().CreateSession(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, checkout.PaymentRequest) (string, error) {
			close(entered)
			<-release
			return "https://pay.example.com/s/1", nil
		},
	).Times(1)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.Pay(context.Background(), f.actor)
	}()

	<-entered
	_, err := f.svc.Pay(context.Background(), f.actor)
	assert.ErrorIs(t, err, checkout.ErrSubmissionInFlight)

	close(release)
	wg.Wait()
	assert.NoError(t, firstErr)
}

func TestPay_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.withAddresses(savedAddress("a1", "06700", true))
	f.withCart(&cart.Cart{UserID: f.actor.User.ID})
	f.toPayment(t, nil)

	_, err := f.svc.Pay(context.Background(), f.actor)
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestPay_RequiresPaymentStep(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))

	_, err := f.svc.Pay(context.Background(), f.actor)
	var stepErr *checkout.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, checkout.StepBilling, stepErr.Step)
}

func TestComplete_PublishesOncePerOrder(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))
	f.toPayment(t, nil)
	ctx := context.Background()

	var published analytics.PurchaseEvent
	f.events.EXPECT().PublishPurchase(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ev analytics.PurchaseEvent) error {
			published = ev
			return nil
		},
	).Times(1)
	f.carts.EXPECT().Clear(gomock.Any(), f.actor.User.ID).Return(nil).Times(1)

	first, err := f.svc.Complete(ctx, f.actor, "ord-9")
	require.NoError(t, err)
	assert.True(t, first.Published)
	assert.Equal(t, "purchase-ord-9", first.EventID)

	again, err := f.svc.Complete(ctx, f.actor, "ord-9")
	require.NoError(t, err)
	assert.False(t, again.Published)

	assert.Equal(t, "purchase-ord-9", published.EventID)
	assert.Equal(t, 1310.0, published.Value)
	assert.Equal(t, 160.0, published.Tax)
	assert.Equal(t, 150.0, published.Shipping)
	assert.Equal(t, "MXN", published.Currency)
	assert.Len(t, published.Items, 2)

	view, err := f.svc.View(ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepBilling, view.Step)
	assert.Nil(t, view.Quote)
}

func TestComplete_WithoutOrderIDUsesPaymentEventID(t *testing.T) {
	f := newFixture(t)
	f.withCart(sampleCart(f.actor.User.ID))
	f.withAddresses(savedAddress("a1", "06700", true))
	f.toPayment(t, nil)
	ctx := context.Background()

	f.payments.EXPECT().CreateSession(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://pay.example.com/s/1", nil)
	_, err := f.svc.Pay(ctx, f.actor)
	require.NoError(t, err)

	f.events.EXPECT().PublishPurchase(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	f.carts.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	first, err := f.svc.Complete(ctx, f.actor, "")
	require.NoError(t, err)
	assert.Equal(t, "purchase-id-1", first.EventID)

	again, err := f.svc.Complete(ctx, f.actor, "")
	require.NoError(t, err)
	assert.Equal(t, "purchase-id-1", again.EventID)
	assert.False(t, again.Published)
}

func TestComplete_PublishFailureRetriesSamePurchase(t *testing.T) {
	f := newFixture(t)
	carts := f.withStoredCart(t)
	f.withAddresses(savedAddress("a1", "06700", true))
	f.toPayment(t, nil)
	ctx := context.Background()

	f.payments.EXPECT().CreateSession(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://pay.example.com/s/1", nil)
	_, err := f.svc.Pay(ctx, f.actor)
	require.NoError(t, err)

	var attempts []analytics.PurchaseEvent
	record := func(err error) func(context.Context, analytics.PurchaseEvent) error {
		return func(_ context.Context, ev analytics.PurchaseEvent) error {
			attempts = append(attempts, ev)
			return err
		}
	}
	gomock.InOrder(
		f.events.EXPECT().PublishPurchase(gomock.Any(), gomock.Any()).DoAndReturn(record(errors.New("broker down"))),
		f.events.EXPECT().PublishPurchase(gomock.Any(), gomock.Any()).DoAndReturn(record(nil)),
	)

	first, err := f.svc.Complete(ctx, f.actor, "ord-1")
	require.NoError(t, err)
	assert.False(t, first.Published)

	current, err := carts.Get(ctx, f.actor.User.ID)
	require.NoError(t, err)
	assert.True(t, current.IsEmpty())

	second, err := f.svc.Complete(ctx, f.actor, "ord-1")
	require.NoError(t, err)
	assert.True(t, second.Published)
	assert.Equal(t, "purchase-ord-1", second.EventID)

	third, err := f.svc.Complete(ctx, f.actor, "ord-1")
	require.NoError(t, err)
	assert.False(t, third.Published)

	require.Len(t, attempts, 2)
	for _, ev := range attempts {
		assert.Equal(t, "purchase-ord-1", ev.EventID)
		assert.Equal(t, "ord-1", ev.OrderID)
		assert.Equal(t, 1310.0, ev.Value)
		assert.Equal(t, 160.0, ev.Tax)
		assert.Equal(t, 150.0, ev.Shipping)
		require.Len(t, ev.Items, 1)
		assert.Equal(t, 1, ev.Items[0].Quantity)
	}
}

func TestComplete_UsesCartSubmittedAtPay(t *testing.T) {
	f := newFixture(t)
	carts := f.withStoredCart(t)
	f.withAddresses(savedAddress("a1", "06700", true))
	f.toPayment(t, nil)
	ctx := context.Background()

	f.payments.EXPECT().CreateSession(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://pay.example.com/s/1", nil)
	_, err := f.svc.Pay(ctx, f.actor)
	require.NoError(t, err)

	_, err = carts.Add(ctx, f.actor.User.ID, cart.BaseItem(1), 2)
	require.NoError(t, err)

	var published analytics.PurchaseEvent
	f.events.EXPECT().PublishPurchase(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ev analytics.PurchaseEvent) error {
			published = ev
			return nil
		},
	)

	done, err := f.svc.Complete(ctx, f.actor, "")
	require.NoError(t, err)
	assert.True(t, done.Published)
	assert.Equal(t, "purchase-id-1", published.EventID)
	assert.Equal(t, 1310.0, published.Value)
	require.Len(t, published.Items, 1)
	assert.Equal(t, 1, published.Items[0].Quantity)
}

func TestComplete_RequiresPaymentStep(t *testing.T) {
	f := newFixture(t)
	carts := f.withStoredCart(t)
	f.withAddresses(savedAddress("a1", "06700", true))
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.actor)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.actor, "ord-7")
	assert.ErrorIs(t, err, checkout.ErrNothingToComplete)

	current, err := carts.Get(ctx, f.actor.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Units())
}
