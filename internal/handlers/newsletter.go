package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/newsletter"
	"storefront/internal/validation"
)

type subscribeRequest struct {
	Email string `json:"email" binding:"required"`
}

func SubscribeNewsletter(subscriptions *newsletter.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /newsletter/subscribe"
		defer handlePanic(c, route)

		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		if _, err := subscriptions.Subscribe(ctx, req.Email); err != nil {
			if validation.Fields(err) != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": gin.H{"email": validation.Message("email", "")},
				})
				return
			}
			logger.Error("newsletter subscribe failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "subscribed"})
	}
}

// UnsubscribeNewsletter serves the link from the welcome mail and renders a
// confirmation page.
func UnsubscribeNewsletter(subscriptions *newsletter.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /newsletter/unsubscribe"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		err := subscriptions.Unsubscribe(ctx, c.Query("token"))
		switch {
		case err == nil:
			c.HTML(http.StatusOK, "unsubscribe.html", gin.H{"ok": true})
		case errors.Is(err, newsletter.ErrUnknownToken):
			c.HTML(http.StatusNotFound, "unsubscribe.html", gin.H{"ok": false})
		default:
			logger.Error("newsletter unsubscribe failed", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "unsubscribe.html", gin.H{"ok": false, "retry": true})
		}
	}
}
