package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/catalog"
)

type cartItemRequest struct {
	ID       string `json:"id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0,lte=100"`
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,lte=100"`
}

type cartResponse struct {
	*cart.Cart
	Subtotal string `json:"subtotal"`
	Units    int    `json:"units"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	return cartResponse{Cart: c, Subtotal: c.Subtotal().StringFixed(2), Units: c.Units()}
}

func respondCartError(c *gin.Context, route string, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidItemID):
		respondWithError(c, http.StatusBadRequest, route, "invalid item id")
	case errors.Is(err, cart.ErrQuantityLimit):
		respondWithError(c, http.StatusBadRequest, route, "quantity exceeds the per item limit")
	case errors.Is(err, cart.ErrQuantity):
		respondWithError(c, http.StatusBadRequest, route, "quantity must be greater than zero")
	case errors.Is(err, cart.ErrOutOfStock):
		respondWithError(c, http.StatusConflict, route, "not enough stock")
	case errors.Is(err, cart.ErrItemNotFound):
		respondWithError(c, http.StatusNotFound, route, "item not in cart")
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, catalog.ErrVariantNotFound):
		respondWithError(c, http.StatusBadRequest, route, "product not available")
	default:
		logger.Error("cart operation failed", zap.String("route", route), zap.Error(err))
		respondWithError(c, http.StatusInternalServerError, route, "cart unavailable")
	}
}

func GetCart(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART_GET"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		current, err := carts.Get(ctx, userID.Hex())
		if err != nil {
			respondCartError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, newCartResponse(current))
	}
}

func AddCartItem(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART_ADD"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		var req cartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		ref, err := cart.ParseItemID(req.ID)
		if err != nil {
			respondCartError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := carts.Add(ctx, userID.Hex(), ref, req.Quantity)
		if err != nil {
			respondCartError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, newCartResponse(updated))
	}
}

func UpdateCartItem(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART_UPDATE"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ref, err := cart.ParseItemID(c.Param("itemId"))
		if err != nil {
			respondCartError(c, route, err)
			return
		}
		var req cartQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := carts.SetQuantity(ctx, userID.Hex(), ref, *req.Quantity)
		if err != nil {
			respondCartError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, newCartResponse(updated))
	}
}

func RemoveCartItem(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART_REMOVE"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ref, err := cart.ParseItemID(c.Param("itemId"))
		if err != nil {
			respondCartError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := carts.Remove(ctx, userID.Hex(), ref)
		if err != nil {
			respondCartError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, newCartResponse(updated))
	}
}

func ClearCart(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART_CLEAR"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := carts.Clear(ctx, userID.Hex()); err != nil {
			respondCartError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
	}
}
