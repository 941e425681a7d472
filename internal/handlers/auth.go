package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/identity"
	"storefront/internal/validation"
)

const sessionHeartbeat = 30 * time.Second

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type authResponse struct {
	User identity.User `json:"user"`
	identity.Tokens
}

func respondAuthError(c *gin.Context, route string, err error) {
	switch {
	case validation.Fields(err) != nil:
		respondValidationError(c, err)
	case errors.Is(err, identity.ErrInvalidCredentials):
		respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
	case errors.Is(err, identity.ErrEmailTaken):
		respondWithError(c, http.StatusConflict, route, "email already registered")
	case errors.Is(err, identity.ErrInactive):
		respondWithError(c, http.StatusForbidden, route, "user inactive")
	case errors.Is(err, identity.ErrInvalidResetToken):
		respondWithError(c, http.StatusBadRequest, route, "invalid or expired reset token")
	case errors.Is(err, identity.ErrRefreshExpired):
		respondWithError(c, http.StatusUnauthorized, route, "refresh token expired")
	case errors.Is(err, identity.ErrInvalidRefreshToken), errors.Is(err, identity.ErrUserNotFound):
		respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
	default:
		logger.Error("auth operation failed", zap.String("route", route), zap.Error(err))
		respondWithError(c, http.StatusInternalServerError, route, "internal server error")
	}
}

func Register(auth *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH_REGISTER"
		defer handlePanic(c, route)

		var req identity.RegisterInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, tokens, err := auth.Register(ctx, req)
		if err != nil {
			respondAuthError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, authResponse{User: user, Tokens: tokens})
	}
}

func Login(auth *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH_LOGIN"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, tokens, err := auth.Login(ctx, req.Email, req.Password)
		if err != nil {
			respondAuthError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, authResponse{User: user, Tokens: tokens})
	}
}

func Refresh(auth *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH_REFRESH"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, tokens, err := auth.Refresh(ctx, req.RefreshToken)
		if err != nil {
			respondAuthError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, authResponse{User: user, Tokens: tokens})
	}
}

func Logout(auth *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH_LOGOUT"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := auth.Logout(ctx, req.RefreshToken); err != nil {
			respondAuthError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func ForgotPassword(auth *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH_FORGOT"
		defer handlePanic(c, route)

		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		if err := auth.ForgotPassword(ctx, req.Email); err != nil {
			respondAuthError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "si el correo existe, enviamos un enlace para restablecer la contraseña"})
	}
}

func ResetPassword(auth *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH_RESET"
		defer handlePanic(c, route)

		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := auth.ResetPassword(ctx, req.Token, req.Password); err != nil {
			respondAuthError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	}
}

func GetMe(auth *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH_ME"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, err := auth.Me(ctx, userID)
		if err != nil {
			respondAuthError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":           user,
			"isAdmin":        user.IsAdmin(),
			"isWorker":       user.IsWorker(),
			"canAccessAdmin": user.CanAccessAdmin(),
		})
	}
}

// SessionEvents streams the signed-in user's role as server-sent events.
// The first event carries the current role; later events follow
// reassignments pushed on the role feed.
func SessionEvents(auth *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH_SESSION_EVENTS"
		defer handlePanic(c, route)

		userID, ok := requireUserID(c, route)
		if !ok {
			return
		}

		lookupCtx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		user, err := auth.Me(lookupCtx, userID)
		cancel()
		if err != nil {
			respondAuthError(c, route, err)
			return
		}

		ctx := c.Request.Context()
		session := auth.Roles().NewSession(user)
		changes := make(chan identity.Role, 4)
		err = session.Watch(ctx, func(role identity.Role) {
			select {
			case changes <- role:
			default:
				logger.Warn("role event dropped", zap.String("userId", user.ID))
			}
		})
		if err != nil {
			logger.Error("role feed subscribe failed", zap.String("userId", user.ID), zap.Error(err))
			respondWithError(c, http.StatusServiceUnavailable, route, "role feed unavailable")
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		c.SSEvent("role", roleEvent(session))
		c.Writer.Flush()

		heartbeat := time.NewTicker(sessionHeartbeat)
		defer heartbeat.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-changes:
				c.SSEvent("role", roleEvent(session))
				return true
			case <-heartbeat.C:
				c.SSEvent("ping", gin.H{"ts": time.Now().Unix()})
				return true
			case <-ctx.Done():
				return false
			}
		})
	}
}

func roleEvent(session *identity.Session) gin.H {
	return gin.H{
		"role":           session.Role(),
		"isAdmin":        session.IsAdmin(),
		"isWorker":       session.IsWorker(),
		"canAccessAdmin": session.CanAccessAdmin(),
	}
}
