package checkout

import (
	"time"

	"storefront/internal/addressbook"
	"storefront/internal/analytics"
	"storefront/internal/models"
)

type Step int

const (
	StepBilling Step = iota + 1
	StepShipping
	StepPayment
	StepConfirmed
)

func (s Step) String() string {
	switch s {
	case StepBilling:
		return "billing"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Session is the wizard state of one user.
type Session struct {
	UserID            string                `json:"userId"`
	Step              Step                  `json:"step"`
	RequiresInvoice   bool                  `json:"requiresInvoice"`
	Billing           models.BillingData    `json:"billing"`
	AddressForm       addressbook.Input     `json:"addressForm"`
	SelectedAddressID string                `json:"selectedAddressId,omitempty"`
	Quote             *models.ShippingQuote `json:"quote,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`

	// PendingEventID names the purchase event of a payment whose callback
	// may arrive without an order id. LastEventID is the last one published.
	PendingEventID string `json:"pendingEventId,omitempty"`
	LastEventID    string `json:"lastEventId,omitempty"`

	// Purchase is the cart and totals as submitted by Pay. Unpublished is a
	// confirmed purchase whose event still has to be sent.
	Purchase    *analytics.PurchaseEvent `json:"purchase,omitempty"`
	Unpublished *analytics.PurchaseEvent `json:"unpublished,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func newSession(userID string, now time.Time) *Session {
	return &Session{UserID: userID, Step: StepBilling, UpdatedAt: now}
}

// reset starts a fresh wizard, keeping the purchase dedupe slot and any
// purchase still waiting to be published.
func (s *Session) reset(now time.Time) {
	last, unpublished := s.LastEventID, s.Unpublished
	*s = *newSession(s.UserID, now)
	s.LastEventID = last
	s.Unpublished = unpublished
}

// retries reports whether a completion for orderID is a retry of the
// unpublished purchase.
func (s *Session) retries(orderID string) bool {
	if s.Unpublished == nil {
		return false
	}
	if orderID != "" {
		return s.Unpublished.EventID == purchaseEventIDPrefix+orderID
	}
	return s.PendingEventID == "" || s.PendingEventID == s.Unpublished.EventID
}

func (s *Session) purchaseEventID(orderID string, newID func() string) string {
	switch {
	case orderID != "":
		return purchaseEventIDPrefix + orderID
	case s.PendingEventID != "":
		return s.PendingEventID
	case s.LastEventID != "":
		return s.LastEventID
	default:
		return purchaseEventIDPrefix + newID()
	}
}

func (s *Session) formIsBlank() bool {
	f := s.AddressForm
	return f.FirstName == "" && f.LastName == "" && f.Street == "" && f.PostalCode == ""
}
