package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/identity"
	"storefront/internal/logging"
)

// RoleLoader resolves the current role of a user; *identity.Roles
// satisfies it.
type RoleLoader interface {
	Load(ctx context.Context, userID string, forceRefresh bool) identity.Role
}

// RoleGuard must run after UserAuth. The role comes from the role cache, not
// from the token, so reassignments apply without a new login.
func RoleGuard(roles RoleLoader, required identity.Role, logger *zap.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger).Named("auth")
	return func(c *gin.Context) {
		value, ok := c.Get(ContextUserID)
		userID, isID := value.(primitive.ObjectID)
		if !ok || !isID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		role := roles.Load(c.Request.Context(), userID.Hex(), false)
		if !role.AtLeast(required) {
			logger.Info("role rejected",
				zap.String("userId", userID.Hex()),
				zap.String("role", string(role)),
				zap.String("required", string(required)))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Set(ContextRole, role)
		c.Next()
	}
}

// BackOffice admits workers and admins.
func BackOffice(roles RoleLoader, logger *zap.Logger) gin.HandlerFunc {
	return RoleGuard(roles, identity.RoleWorker, logger)
}

func AdminOnly(roles RoleLoader, logger *zap.Logger) gin.HandlerFunc {
	return RoleGuard(roles, identity.RoleAdmin, logger)
}
