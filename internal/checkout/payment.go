package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/models"
)

type PaymentErrorKind string

const (
	PaymentErrorNetwork   PaymentErrorKind = "network"
	PaymentErrorMalformed PaymentErrorKind = "malformed"
	PaymentErrorGeneric   PaymentErrorKind = "generic"
)

// PaymentError is a classified failure to open a payment session. Message
// is safe to show to the customer.
type PaymentError struct {
	Kind    PaymentErrorKind
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

func newPaymentError(kind PaymentErrorKind, detail string, err error) *PaymentError {
	var msg string
	switch kind {
	case PaymentErrorNetwork:
		msg = "No pudimos conectar con el procesador de pagos. Revisa tu conexión e intenta de nuevo."
	case PaymentErrorMalformed:
		msg = "El procesador de pagos respondió de forma inesperada. Intenta de nuevo."
	default:
		msg = "No pudimos iniciar el pago. Intenta de nuevo más tarde."
		if detail != "" {
			msg = "No pudimos iniciar el pago: " + detail
		}
	}
	return &PaymentError{Kind: kind, Message: msg, Err: err}
}

type PaymentItem struct {
	ProductID   int64   `json:"product_id"`
	VariantID   *int64  `json:"variant_id"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Name        string  `json:"name"`
	VariantName string  `json:"variant_name,omitempty"`
}

type PaymentUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type ShippingSnapshot struct {
	Address models.Address `json:"address"`
	Parcel  Parcel         `json:"parcel"`
	Totals  Totals         `json:"totals"`
}

// PaymentRequest is the order submission sent once per payment attempt.
type PaymentRequest struct {
	CartItems         []PaymentItem         `json:"cartItems"`
	User              PaymentUser           `json:"user"`
	Shipping          models.Address        `json:"shipping"`
	SelectedAddressID string                `json:"selectedAddressId"`
	ShippingAddressID string                `json:"shipping_address_id"`
	ShippingSnapshot  ShippingSnapshot      `json:"shipping_snapshot"`
	ShippingQuote     *models.ShippingQuote `json:"shipping_quote"`
	BillingSnapshot   *models.BillingData   `json:"billing_snapshot"`
}

type HTTPPaymentGateway struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewHTTPPaymentGateway(client *http.Client, endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPPaymentGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPaymentGateway{
		client:   client,
		endpoint: endpoint,
		timeout:  timeout,
		logger:   logging.OrNop(logger).Named("payment"),
	}
}

// CreateSession returns the hosted payment URL. Every failure is a
// *PaymentError.
func (g *HTTPPaymentGateway) CreateSession(ctx context.Context, token string, req PaymentRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := postJSON(ctx, g.client, g.endpoint, token, req)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			return "", newPaymentError(PaymentErrorGeneric, statusErr.Message, err)
		}
		return "", newPaymentError(PaymentErrorNetwork, "", err)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", newPaymentError(PaymentErrorMalformed, "", fmt.Errorf("decode payment response: %w", err))
	}
	if !strings.HasPrefix(body.URL, "http://") && !strings.HasPrefix(body.URL, "https://") {
		return "", newPaymentError(PaymentErrorMalformed, "", fmt.Errorf("payment response without a usable url"))
	}
	return body.URL, nil
}
