package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"storefront/internal/checkout"
	"storefront/internal/identity"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/validation"
)

const requestTimeout = 5 * time.Second

var logger = zap.NewNop()

// SetLogger replaces the package logger used by every handler.
func SetLogger(l *zap.Logger) {
	logger = logging.OrNop(l).Named("http")
}

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered", zap.String("route", route), zap.Any("panic", r))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	logger.Info("returning error", zap.String("route", route), zap.Int("status", status), zap.String("error", message))
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondValidationError answers 400 with per-field messages when err comes
// from the validator, or a generic body error otherwise.
func respondValidationError(c *gin.Context, err error) {
	if details := validation.Fields(err); details != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return primitive.NilObjectID, false
	}
	userID, ok := value.(primitive.ObjectID)
	return userID, ok
}

// requireUserID aborts with 401 when UserAuth did not run.
func requireUserID(c *gin.Context, route string) (primitive.ObjectID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
		return primitive.NilObjectID, false
	}
	return userID, true
}

func bearerFromContext(c *gin.Context) string {
	return c.GetString(middleware.ContextToken)
}

// actorFor resolves the signed-in user for checkout calls.
func actorFor(ctx context.Context, c *gin.Context, auth *identity.Service, route string) (checkout.Actor, bool) {
	userID, ok := requireUserID(c, route)
	if !ok {
		return checkout.Actor{}, false
	}
	user, err := auth.Me(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return checkout.Actor{}, false
		}
		logger.Error("user lookup failed", zap.String("route", route), zap.Error(err))
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return checkout.Actor{}, false
	}
	return checkout.Actor{User: user, Token: bearerFromContext(c)}, true
}

func parseObjectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}
