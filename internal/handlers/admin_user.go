package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/identity"
)

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

/*
PUT /admin/api/users/:id/role
- admin only
- live sessions of the user pick the new role up through the role feed
*/
func UpdateUserRole(roles *identity.Roles) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/users/:id/role"
		defer handlePanic(c, route)

		userID, ok := parseObjectIDParam(c, "id")
		if !ok {
			return
		}

		var req roleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		role, known := identity.ParseRole(req.Role)
		if !known {
			respondWithError(c, http.StatusBadRequest, route, "unknown role")
			return
		}

		if actor, ok := currentUserID(c); ok && actor == userID && role != identity.RoleAdmin {
			respondWithError(c, http.StatusBadRequest, route, "admins cannot demote themselves")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := roles.Reassign(ctx, userID.Hex(), role); err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				respondWithError(c, http.StatusNotFound, route, "user not found")
				return
			}
			logger.Error("role reassign failed", zap.String("userId", userID.Hex()), zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role})
	}
}
