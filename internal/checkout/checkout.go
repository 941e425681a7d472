package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/addressbook"
	"storefront/internal/analytics"
	"storefront/internal/cart"
	"storefront/internal/identity"
	"storefront/internal/logging"
	"storefront/internal/models"
)

const (
	MsgSelectAddress      = "Selecciona una dirección de envío"
	MsgQuoteUnavailable   = "No pudimos cotizar el envío; se usará el costo estándar"
	MsgAddressSaveFailed  = "No pudimos guardar la dirección. Intenta de nuevo."
	MsgBillingInvalid     = "Revisa los datos de facturación"
	MsgAddressInvalid     = "Revisa los datos de la dirección de envío"
	MsgNoPreviousStep     = "No hay un paso anterior"
	msgWrongStep          = "Este paso no está disponible en este momento"
	defaultCurrency       = "MXN"
	purchaseEventIDPrefix = "purchase-"
)

var (
	ErrSubmissionInFlight = errors.New("payment submission already in progress")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidUser        = errors.New("invalid user id")
	ErrNothingToComplete  = errors.New("no payment awaiting completion")
)

// StepError keeps the wizard at Step. Fields carries per-field messages for
// inline display.
type StepError struct {
	Step    Step
	Message string
	Fields  map[string]string
	Err     error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %s: %s: %v", e.Step, e.Message, e.Err)
	}
	return fmt.Sprintf("step %s: %s", e.Step, e.Message)
}

func (e *StepError) Unwrap() error { return e.Err }

// Actor is the authenticated customer and the bearer token forwarded to the
// quote and payment endpoints.
type Actor struct {
	User  identity.User
	Token string
}

type Options struct {
	UnitWeightKg       float64
	ShippingProviderID string
	Currency           string
	Now                func() time.Time
	NewID              func() string
}

// View is everything the wizard needs to render the current step.
type View struct {
	Step              Step                  `json:"step"`
	StepName          string                `json:"stepName"`
	RequiresInvoice   bool                  `json:"requiresInvoice"`
	Billing           models.BillingData    `json:"billing"`
	AddressForm       addressbook.Input     `json:"addressForm"`
	Addresses         []models.Address      `json:"addresses"`
	SelectedAddressID string                `json:"selectedAddressId,omitempty"`
	Quote             *models.ShippingQuote `json:"quote"`
	Items             []cart.Item           `json:"items"`
	Totals            Totals                `json:"totals"`
	DisplayTotal      string                `json:"displayTotal"`
	Warnings          []string              `json:"warnings"`
}

type Completion struct {
	EventID   string `json:"eventId"`
	Published bool   `json:"published"`
}

type Service struct {
	sessions  SessionStore
	carts     CartReader
	addresses AddressBook
	quoter    Quoter
	payments  PaymentGateway
	events    PurchasePublisher
	opts      Options
	logger    *zap.Logger

	inflight sync.Map
}

func NewService(
	sessions SessionStore,
	carts CartReader,
	addresses AddressBook,
	quoter Quoter,
	payments PaymentGateway,
	events PurchasePublisher,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.UnitWeightKg <= 0 {
		opts.UnitWeightKg = DefaultUnitWeightKg
	}
	if opts.Currency == "" {
		opts.Currency = defaultCurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		sessions:  sessions,
		carts:     carts,
		addresses: addresses,
		quoter:    quoter,
		payments:  payments,
		events:    events,
		opts:      opts,
		logger:    logging.OrNop(logger).Named("checkout"),
	}
}

// Start loads or creates the wizard and seeds the address form from the
// default saved address.
func (s *Service) Start(ctx context.Context, actor Actor) (View, error) {
	session, err := s.load(ctx, actor)
	if err != nil {
		return View{}, err
	}

	addresses, err := s.listAddresses(ctx, actor)
	if err != nil {
		return View{}, err
	}

	if session.formIsBlank() {
		if def, ok := addressbook.DefaultOf(addresses); ok {
			session.AddressForm = addressbook.FromAddress(def)
		} else {
			session.AddressForm.Email = actor.User.Email
			session.AddressForm.Country = "México"
		}
	}
	ensureSelection(session, addresses)

	if err := s.save(ctx, session); err != nil {
		return View{}, err
	}
	return s.render(ctx, session, addresses)
}

func (s *Service) View(ctx context.Context, actor Actor) (View, error) {
	session, err := s.load(ctx, actor)
	if err != nil {
		return View{}, err
	}
	addresses, err := s.listAddresses(ctx, actor)
	if err != nil {
		return View{}, err
	}
	return s.render(ctx, session, addresses)
}

// SubmitBilling validates invoice data only when an invoice is requested.
func (s *Service) SubmitBilling(ctx context.Context, actor Actor, requiresInvoice bool, billing models.BillingData) (View, error) {
	session, err := s.load(ctx, actor)
	if err != nil {
		return View{}, err
	}
	if err := requireStep(session, StepBilling); err != nil {
		return View{}, err
	}

	session.RequiresInvoice = requiresInvoice
	session.Billing = NormalizeBilling(billing)

	if requiresInvoice {
		if fields := ValidateBilling(session.Billing); fields != nil {
			if err := s.save(ctx, session); err != nil {
				return View{}, err
			}
			return View{}, &StepError{Step: StepBilling, Message: MsgBillingInvalid, Fields: fields}
		}
	}

	addresses, err := s.listAddresses(ctx, actor)
	if err != nil {
		return View{}, err
	}
	ensureSelection(session, addresses)
	session.Step = StepShipping

	if err := s.save(ctx, session); err != nil {
		return View{}, err
	}
	return s.render(ctx, session, addresses)
}

// SubmitShipping confirms the destination. A user without saved addresses
// gets the form persisted as their first (default) address; otherwise one
// of the saved addresses must be selected.
func (s *Service) SubmitShipping(ctx context.Context, actor Actor, form addressbook.Input, selectedAddressID string) (View, error) {
	session, err := s.load(ctx, actor)
	if err != nil {
		return View{}, err
	}
	if err := requireStep(session, StepShipping); err != nil {
		return View{}, err
	}

	userID, err := objectID(actor)
	if err != nil {
		return View{}, err
	}
	addresses, err := s.addresses.List(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("list addresses: %w", err)
	}

	var destination models.Address
	if len(addresses) == 0 {
		session.AddressForm = form
		if err := form.Validate(); err != nil {
			if saveErr := s.save(ctx, session); saveErr != nil {
				return View{}, saveErr
			}
			return View{}, &StepError{Step: StepShipping, Message: MsgAddressInvalid, Fields: fieldsOf(err)}
		}

		created, err := s.addresses.Create(ctx, userID, form)
		if err != nil {
			s.logger.Error("address create failed", zap.String("userId", actor.User.ID), zap.Error(err))
			if saveErr := s.save(ctx, session); saveErr != nil {
				return View{}, saveErr
			}
			return View{}, &StepError{Step: StepShipping, Message: MsgAddressSaveFailed, Err: err}
		}
		destination = created
		addresses = append(addresses, created)
	} else {
		found, ok := findAddress(addresses, selectedAddressID)
		if !ok {
			return View{}, &StepError{Step: StepShipping, Message: MsgSelectAddress}
		}
		destination = found
	}

	session.SelectedAddressID = destination.ID
	session.Step = StepPayment
	s.refreshQuote(ctx, actor, session, destination)

	if err := s.save(ctx, session); err != nil {
		return View{}, err
	}
	return s.render(ctx, session, addresses)
}

// SelectAddress switches the destination and fetches a fresh quote for it.
func (s *Service) SelectAddress(ctx context.Context, actor Actor, addressID string) (View, error) {
	session, err := s.load(ctx, actor)
	if err != nil {
		return View{}, err
	}
	if session.Step != StepShipping && session.Step != StepPayment {
		return View{}, &StepError{Step: session.Step, Message: msgWrongStep}
	}

	addresses, err := s.listAddresses(ctx, actor)
	if err != nil {
		return View{}, err
	}
	destination, ok := findAddress(addresses, addressID)
	if !ok {
		return View{}, &StepError{Step: session.Step, Message: MsgSelectAddress}
	}

	session.SelectedAddressID = destination.ID
	s.refreshQuote(ctx, actor, session, destination)

	if err := s.save(ctx, session); err != nil {
		return View{}, err
	}
	return s.render(ctx, session, addresses)
}

// Back moves one step back without validation.
func (s *Service) Back(ctx context.Context, actor Actor) (View, error) {
	session, err := s.load(ctx, actor)
	if err != nil {
		return View{}, err
	}
	if session.Step != StepShipping && session.Step != StepPayment {
		return View{}, &StepError{Step: session.Step, Message: MsgNoPreviousStep}
	}

	session.Step--
	if err := s.save(ctx, session); err != nil {
		return View{}, err
	}

	addresses, err := s.listAddresses(ctx, actor)
	if err != nil {
		return View{}, err
	}
	return s.render(ctx, session, addresses)
}

// Pay submits the order once and returns the hosted payment URL. The wizard
// stays at the payment step; completion arrives through Complete.
func (s *Service) Pay(ctx context.Context, actor Actor) (string, error) {
	if _, busy := s.inflight.LoadOrStore(actor.User.ID, struct{}{}); busy {
		return "", ErrSubmissionInFlight
	}
	defer s.inflight.Delete(actor.User.ID)

	session, err := s.load(ctx, actor)
	if err != nil {
		return "", err
	}
	if err := requireStep(session, StepPayment); err != nil {
		return "", err
	}

	c, err := s.carts.Get(ctx, actor.User.ID)
	if err != nil {
		return "", fmt.Errorf("load cart: %w", err)
	}
	if c.IsEmpty() {
		return "", ErrEmptyCart
	}

	addresses, err := s.listAddresses(ctx, actor)
	if err != nil {
		return "", err
	}
	destination, ok := findAddress(addresses, session.SelectedAddressID)
	if !ok {
		return "", &StepError{Step: StepPayment, Message: MsgSelectAddress}
	}

	if session.PendingEventID == "" {
		session.PendingEventID = purchaseEventIDPrefix + s.opts.NewID()
	}
	purchase := s.purchaseEvent(session.PendingEventID, "", actor, session, c)
	session.Purchase = &purchase
	if err := s.save(ctx, session); err != nil {
		return "", err
	}

	req := s.paymentRequest(actor, session, c, destination)
	url, err := s.payments.CreateSession(ctx, actor.Token, req)
	if err != nil {
		var payErr *PaymentError
		if !errors.As(err, &payErr) {
			payErr = newPaymentError(PaymentErrorGeneric, "", err)
		}
		s.logger.Error("payment session failed",
			zap.String("userId", actor.User.ID),
			zap.String("kind", string(payErr.Kind)),
			zap.Error(err))
		return "", payErr
	}

	s.logger.Info("payment session created", zap.String("userId", actor.User.ID))
	return url, nil
}

// Complete handles the post-payment callback. It only applies to a wizard
// that reached payment. The purchase is taken from what Pay submitted (or
// the current cart when Pay was skipped), kept in the session until its
// event is published at most once per order, and the wizard is reset.
func (s *Service) Complete(ctx context.Context, actor Actor, orderID string) (Completion, error) {
	session, err := s.load(ctx, actor)
	if err != nil {
		return Completion{}, err
	}

	if session.retries(orderID) {
		return s.publishPurchase(ctx, session)
	}

	eventID := session.purchaseEventID(orderID, s.opts.NewID)
	if eventID == session.LastEventID {
		return Completion{EventID: eventID}, nil
	}
	if session.Step != StepPayment && session.PendingEventID == "" {
		return Completion{}, ErrNothingToComplete
	}

	var purchase analytics.PurchaseEvent
	if session.Purchase != nil {
		purchase = *session.Purchase
	} else {
		c, err := s.carts.Get(ctx, actor.User.ID)
		if err != nil {
			return Completion{}, fmt.Errorf("load cart: %w", err)
		}
		if c.IsEmpty() {
			return Completion{}, ErrEmptyCart
		}
		purchase = s.purchaseEvent(eventID, orderID, actor, session, c)
	}
	purchase.EventID = eventID
	purchase.OrderID = orderID
	purchase.OccurredAt = s.opts.Now()

	session.Unpublished = &purchase
	session.reset(s.opts.Now())
	if err := s.save(ctx, session); err != nil {
		return Completion{}, err
	}

	if err := s.carts.Clear(ctx, actor.User.ID); err != nil {
		s.logger.Warn("cart clear failed", zap.String("userId", actor.User.ID), zap.Error(err))
	}
	return s.publishPurchase(ctx, session)
}

// publishPurchase sends the unpublished purchase. On failure it stays in the
// session for the next completion attempt.
func (s *Service) publishPurchase(ctx context.Context, session *Session) (Completion, error) {
	event := *session.Unpublished
	if err := s.events.PublishPurchase(ctx, event); err != nil {
		s.logger.Error("purchase event publish failed", zap.String("eventId", event.EventID), zap.Error(err))
		return Completion{EventID: event.EventID}, nil
	}

	session.LastEventID = event.EventID
	session.Unpublished = nil
	if err := s.save(ctx, session); err != nil {
		return Completion{}, err
	}
	return Completion{EventID: event.EventID, Published: true}, nil
}

func (s *Service) refreshQuote(ctx context.Context, actor Actor, session *Session, destination models.Address) {
	session.Quote = nil
	session.Warnings = nil

	c, err := s.carts.Get(ctx, actor.User.ID)
	if err != nil {
		s.logger.Warn("quote skipped, cart unavailable", zap.String("userId", actor.User.ID), zap.Error(err))
		session.Warnings = []string{MsgQuoteUnavailable}
		return
	}

	parcel := parcelFor(c.Units(), s.opts.UnitWeightKg)
	req := QuoteRequest{
		CPDestino:          destination.PostalCode,
		ColoniaDestino:     destination.Colonia,
		Peso:               parcel.WeightKg,
		Largo:              parcel.LengthCm,
		Ancho:              parcel.WidthCm,
		Alto:               parcel.HeightCm,
		ValorDeclarado:     c.Subtotal().InexactFloat64(),
		TipoEmpaque:        packagingType,
		UserID:             actor.User.ID,
		ShippingProviderID: s.opts.ShippingProviderID,
	}

	quote, err := s.quoter.Quote(ctx, actor.Token, req)
	if err != nil {
		s.logger.Warn("shipping quote failed", zap.String("userId", actor.User.ID), zap.Error(err))
		session.Warnings = []string{MsgQuoteUnavailable}
		return
	}
	session.Quote = &quote
}

func (s *Service) paymentRequest(actor Actor, session *Session, c *cart.Cart, destination models.Address) PaymentRequest {
	items := make([]PaymentItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, PaymentItem{
			ProductID:   item.Ref.ProductID,
			VariantID:   item.Ref.VariantID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Name:        item.Name,
			VariantName: item.VariantName,
		})
	}

	var billing *models.BillingData
	if session.RequiresInvoice {
		snapshot := session.Billing
		billing = &snapshot
	}

	return PaymentRequest{
		CartItems: items,
		User: PaymentUser{
			ID:    actor.User.ID,
			Email: actor.User.Email,
			Name:  actor.User.Name,
		},
		Shipping:          destination,
		SelectedAddressID: destination.ID,
		ShippingAddressID: destination.ID,
		ShippingSnapshot: ShippingSnapshot{
			Address: destination,
			Parcel:  parcelFor(c.Units(), s.opts.UnitWeightKg),
			Totals:  ComputeTotals(c.Subtotal(), session.Quote),
		},
		ShippingQuote:   session.Quote,
		BillingSnapshot: billing,
	}
}

func (s *Service) purchaseEvent(eventID, orderID string, actor Actor, session *Session, c *cart.Cart) analytics.PurchaseEvent {
	totals := ComputeTotals(c.Subtotal(), session.Quote)
	shipping := totals.shippingOrZero()
	value := totals.Subtotal.Add(totals.Tax).Add(shipping)

	items := make([]analytics.PurchaseItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, analytics.PurchaseItem{
			ProductID: item.Ref.ProductID,
			VariantID: item.Ref.VariantID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	return analytics.PurchaseEvent{
		EventID:    eventID,
		OrderID:    orderID,
		UserID:     actor.User.ID,
		Value:      value.InexactFloat64(),
		Tax:        totals.Tax.InexactFloat64(),
		Shipping:   shipping.InexactFloat64(),
		Currency:   s.opts.Currency,
		Items:      items,
		OccurredAt: s.opts.Now(),
	}
}

func (s *Service) render(ctx context.Context, session *Session, addresses []models.Address) (View, error) {
	c, err := s.carts.Get(ctx, session.UserID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}

	totals := ComputeTotals(c.Subtotal(), session.Quote)
	warnings := session.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	if addresses == nil {
		addresses = []models.Address{}
	}
	return View{
		Step:              session.Step,
		StepName:          session.Step.String(),
		RequiresInvoice:   session.RequiresInvoice,
		Billing:           session.Billing,
		AddressForm:       session.AddressForm,
		Addresses:         addresses,
		SelectedAddressID: session.SelectedAddressID,
		Quote:             session.Quote,
		Items:             c.Items,
		Totals:            totals,
		DisplayTotal:      totals.DisplayTotal(),
		Warnings:          warnings,
	}, nil
}

func (s *Service) load(ctx context.Context, actor Actor) (*Session, error) {
	if actor.User.ID == "" {
		return nil, ErrInvalidUser
	}
	session, err := s.sessions.Load(ctx, actor.User.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return newSession(actor.User.ID, s.opts.Now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkout session: %w", err)
	}
	return session, nil
}

func (s *Service) save(ctx context.Context, session *Session) error {
	session.UpdatedAt = s.opts.Now()
	if err := s.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save checkout session: %w", err)
	}
	return nil
}

func (s *Service) listAddresses(ctx context.Context, actor Actor) ([]models.Address, error) {
	userID, err := objectID(actor)
	if err != nil {
		return nil, err
	}
	addresses, err := s.addresses.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addresses, nil
}

func requireStep(session *Session, step Step) error {
	if session.Step != step {
		return &StepError{Step: session.Step, Message: msgWrongStep}
	}
	return nil
}

// ensureSelection keeps exactly one saved address selected, preferring the
// account default and then the first one.
func ensureSelection(session *Session, addresses []models.Address) {
	if _, ok := findAddress(addresses, session.SelectedAddressID); ok {
		return
	}
	session.SelectedAddressID = ""
	if def, ok := addressbook.DefaultOf(addresses); ok {
		session.SelectedAddressID = def.ID
	}
}

func findAddress(addresses []models.Address, id string) (models.Address, bool) {
	if id == "" {
		return models.Address{}, false
	}
	for _, a := range addresses {
		if a.ID == id {
			return a, true
		}
	}
	return models.Address{}, false
}

func objectID(actor Actor) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(actor.User.ID)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidUser
	}
	return id, nil
}
