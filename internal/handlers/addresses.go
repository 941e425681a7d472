package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/addressbook"
	"storefront/internal/validation"
)

func respondAddressError(c *gin.Context, route string, err error) {
	switch {
	case validation.Fields(err) != nil:
		respondValidationError(c, err)
	case errors.Is(err, addressbook.ErrAddressNotFound):
		respondWithError(c, http.StatusNotFound, route, "address not found")
	case errors.Is(err, addressbook.ErrUserNotFound):
		respondWithError(c, http.StatusNotFound, route, "user not found")
	case errors.Is(err, addressbook.ErrConcurrentUpdate):
		respondWithError(c, http.StatusConflict, route, "addresses changed, try again")
	default:
		logger.Error("address operation failed", zap.String("route", route), zap.Error(err))
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}

func GetUserAddresses(book *addressbook.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADDRESS_LIST"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		addresses, err := book.List(ctx, userID)
		if err != nil {
			respondAddressError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": addresses})
	}
}

func CreateUserAddress(book *addressbook.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADDRESS_CREATE"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		var req addressbook.Input
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		address, err := book.Create(ctx, userID, req)
		if err != nil {
			respondAddressError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, address)
	}
}

func UpdateUserAddress(book *addressbook.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADDRESS_UPDATE"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		var req addressbook.Input
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		address, err := book.Update(ctx, userID, c.Param("id"), req)
		if err != nil {
			respondAddressError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, address)
	}
}

func SetDefaultUserAddress(book *addressbook.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADDRESS_DEFAULT"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := book.SetDefault(ctx, userID, c.Param("id")); err != nil {
			respondAddressError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "default address updated"})
	}
}

func DeleteUserAddress(book *addressbook.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADDRESS_DELETE"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := book.Delete(ctx, userID, c.Param("id")); err != nil {
			respondAddressError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
	}
}
