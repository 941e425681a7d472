package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront/internal/logging"
	"storefront/internal/models"
)

const defaultQuoteTimeout = 15 * time.Second

// QuoteRequest is the body the rating service expects.
type QuoteRequest struct {
	CPDestino          string  `json:"cp_destino"`
	ColoniaDestino     string  `json:"colonia_destino"`
	Peso               float64 `json:"peso"`
	Largo              float64 `json:"largo"`
	Ancho              float64 `json:"ancho"`
	Alto               float64 `json:"alto"`
	ValorDeclarado     float64 `json:"valor_declarado"`
	TipoEmpaque        string  `json:"tipoempaque"`
	UserID             string  `json:"user_id"`
	ShippingProviderID string  `json:"shipping_provider_id"`
}

func (r QuoteRequest) key() string {
	return fmt.Sprintf("%s|%s|%s|%.3f|%.2f|%s", r.UserID, r.CPDestino, r.ColoniaDestino, r.Peso, r.ValorDeclarado, r.ShippingProviderID)
}

type HTTPQuoter struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
	group    singleflight.Group
	logger   *zap.Logger
}

func NewHTTPQuoter(client *http.Client, endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPQuoter {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultQuoteTimeout
	}
	return &HTTPQuoter{
		client:   client,
		endpoint: endpoint,
		timeout:  timeout,
		logger:   logging.OrNop(logger).Named("quote"),
	}
}

// Quote collapses concurrent identical requests into one call. The shared
// call runs detached from any single caller; each caller stops waiting when
// its own context ends.
func (q *HTTPQuoter) Quote(ctx context.Context, token string, req QuoteRequest) (models.ShippingQuote, error) {
	flight := context.WithoutCancel(ctx)
	ch := q.group.DoChan(req.key(), func() (any, error) {
		return q.fetch(flight, token, req)
	})

	select {
	case <-ctx.Done():
		return models.ShippingQuote{}, fmt.Errorf("quote request abandoned: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.ShippingQuote{}, res.Err
		}
		if res.Shared {
			q.logger.Debug("quote request shared", zap.String("cp", req.CPDestino))
		}
		return res.Val.(models.ShippingQuote), nil
	}
}

func (q *HTTPQuoter) fetch(ctx context.Context, token string, req QuoteRequest) (models.ShippingQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	raw, err := postJSON(ctx, q.client, q.endpoint, token, req)
	if err != nil {
		return models.ShippingQuote{}, fmt.Errorf("quote request failed: %w", err)
	}

	var body struct {
		ShippingCost *float64               `json:"shipping_cost"`
		Selected     *models.QuoteSelection `json:"selected"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return models.ShippingQuote{}, fmt.Errorf("decode quote response: %w", err)
	}
	if body.ShippingCost == nil || *body.ShippingCost < 0 {
		return models.ShippingQuote{}, fmt.Errorf("quote response without a valid shipping_cost")
	}

	return models.ShippingQuote{ShippingCost: *body.ShippingCost, Selected: body.Selected}, nil
}
