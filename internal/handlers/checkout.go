package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/addressbook"
	"storefront/internal/checkout"
	"storefront/internal/identity"
	"storefront/internal/models"
)

// Quote and payment calls carry their own client timeouts; this only bounds
// the whole request.
const checkoutTimeout = 45 * time.Second

type billingRequest struct {
	RequiresInvoice bool               `json:"requiresInvoice"`
	Billing         models.BillingData `json:"billing"`
}

type shippingRequest struct {
	Address           addressbook.Input `json:"address"`
	SelectedAddressID string            `json:"selectedAddressId"`
}

type selectAddressRequest struct {
	AddressID string `json:"addressId" binding:"required"`
}

type completeRequest struct {
	OrderID string `json:"orderId"`
}

// respondCheckoutError keeps the wizard's messages user facing: step errors
// answer 422 with per-field details, payment failures 502 with the
// classified message.
func respondCheckoutError(c *gin.Context, route string, err error) {
	var stepErr *checkout.StepError
	var payErr *checkout.PaymentError
	switch {
	case errors.As(err, &stepErr):
		body := gin.H{
			"error": stepErr.Message,
			"step":  stepErr.Step,
		}
		if len(stepErr.Fields) > 0 {
			body["details"] = stepErr.Fields
		}
		logger.Info("checkout step rejected", zap.String("route", route), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &payErr):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error": payErr.Message,
			"kind":  payErr.Kind,
		})
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		respondWithError(c, http.StatusConflict, route, "payment submission already in progress")
	case errors.Is(err, checkout.ErrNothingToComplete):
		respondWithError(c, http.StatusConflict, route, "no payment awaiting completion")
	case errors.Is(err, checkout.ErrEmptyCart):
		respondWithError(c, http.StatusBadRequest, route, "cart is empty")
	case errors.Is(err, checkout.ErrInvalidUser):
		respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
	default:
		logger.Error("checkout operation failed", zap.String("route", route), zap.Error(err))
		respondWithError(c, http.StatusInternalServerError, route, "checkout unavailable")
	}
}

// checkoutAction runs one wizard operation for the signed-in user and
// renders the resulting view.
func checkoutAction(auth *identity.Service, route string, timeout time.Duration, run func(ctx context.Context, c *gin.Context, actor checkout.Actor) (checkout.View, bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		actor, ok := actorFor(ctx, c, auth, route)
		if !ok {
			return
		}

		view, handled, err := run(ctx, c, actor)
		if handled {
			return
		}
		if err != nil {
			respondCheckoutError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func StartCheckout(auth *identity.Service, wizard *checkout.Service) gin.HandlerFunc {
	return checkoutAction(auth, "CHECKOUT_START", requestTimeout,
		func(ctx context.Context, _ *gin.Context, actor checkout.Actor) (checkout.View, bool, error) {
			view, err := wizard.Start(ctx, actor)
			return view, false, err
		})
}

func GetCheckout(auth *identity.Service, wizard *checkout.Service) gin.HandlerFunc {
	return checkoutAction(auth, "CHECKOUT_VIEW", requestTimeout,
		func(ctx context.Context, _ *gin.Context, actor checkout.Actor) (checkout.View, bool, error) {
			view, err := wizard.View(ctx, actor)
			return view, false, err
		})
}

func SubmitBilling(auth *identity.Service, wizard *checkout.Service) gin.HandlerFunc {
	return checkoutAction(auth, "CHECKOUT_BILLING", requestTimeout,
		func(ctx context.Context, c *gin.Context, actor checkout.Actor) (checkout.View, bool, error) {
			var req billingRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return checkout.View{}, true, nil
			}
			view, err := wizard.SubmitBilling(ctx, actor, req.RequiresInvoice, req.Billing)
			return view, false, err
		})
}

func SubmitShipping(auth *identity.Service, wizard *checkout.Service) gin.HandlerFunc {
	return checkoutAction(auth, "CHECKOUT_SHIPPING", checkoutTimeout,
		func(ctx context.Context, c *gin.Context, actor checkout.Actor) (checkout.View, bool, error) {
			var req shippingRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return checkout.View{}, true, nil
			}
			view, err := wizard.SubmitShipping(ctx, actor, req.Address, req.SelectedAddressID)
			return view, false, err
		})
}

func SelectCheckoutAddress(auth *identity.Service, wizard *checkout.Service) gin.HandlerFunc {
	return checkoutAction(auth, "CHECKOUT_SELECT_ADDRESS", checkoutTimeout,
		func(ctx context.Context, c *gin.Context, actor checkout.Actor) (checkout.View, bool, error) {
			var req selectAddressRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return checkout.View{}, true, nil
			}
			view, err := wizard.SelectAddress(ctx, actor, req.AddressID)
			return view, false, err
		})
}

func CheckoutBack(auth *identity.Service, wizard *checkout.Service) gin.HandlerFunc {
	return checkoutAction(auth, "CHECKOUT_BACK", requestTimeout,
		func(ctx context.Context, _ *gin.Context, actor checkout.Actor) (checkout.View, bool, error) {
			view, err := wizard.Back(ctx, actor)
			return view, false, err
		})
}

// Pay answers with the hosted payment page URL; the client navigates away.
func Pay(auth *identity.Service, wizard *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CHECKOUT_PAY"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), checkoutTimeout)
		defer cancel()

		actor, ok := actorFor(ctx, c, auth, route)
		if !ok {
			return
		}

		url, err := wizard.Pay(ctx, actor)
		if err != nil {
			respondCheckoutError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}

// CompleteCheckout is called by the client after the payment page redirects
// back with the order id.
func CompleteCheckout(auth *identity.Service, wizard *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CHECKOUT_COMPLETE"
		defer handlePanic(c, route)

		var req completeRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}
		if req.OrderID == "" {
			req.OrderID = c.Query("orderId")
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		actor, ok := actorFor(ctx, c, auth, route)
		if !ok {
			return
		}

		result, err := wizard.Complete(ctx, actor, req.OrderID)
		if err != nil {
			respondCheckoutError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
