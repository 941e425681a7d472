package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/logging"
)

// Roles resolves a user's role through the cache and the role store.
type Roles struct {
	cache  RoleCache
	store  RoleStore
	feed   RoleFeed
	logger *zap.Logger
}

func NewRoles(cache RoleCache, store RoleStore, feed RoleFeed, logger *zap.Logger) *Roles {
	return &Roles{cache: cache, store: store, feed: feed, logger: logging.OrNop(logger)}
}

// Load returns the cached role unless forceRefresh is set or the cache
// misses. Any failure resolves to customer.
func (r *Roles) Load(ctx context.Context, userID string, forceRefresh bool) Role {
	if userID == "" {
		return RoleCustomer
	}

	if !forceRefresh {
		role, err := r.cache.Get(ctx, userID)
		if err == nil {
			return role
		}
		if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn("role cache read failed", zap.String("userId", userID), zap.Error(err))
		}
	}

	role, err := r.store.FetchRole(ctx, userID)
	if err != nil {
		r.logger.Warn("role lookup failed, using customer", zap.String("userId", userID), zap.Error(err))
		return RoleCustomer
	}

	if err := r.cache.Set(ctx, userID, role); err != nil {
		r.logger.Warn("role cache write failed", zap.String("userId", userID), zap.Error(err))
	}
	return role
}

// Reassign persists a new role, drops the cached entry and notifies live
// sessions of the user.
func (r *Roles) Reassign(ctx context.Context, userID string, role Role) error {
	if _, ok := ParseRole(string(role)); !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	if err := r.store.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, userID); err != nil {
		r.logger.Warn("role cache delete failed", zap.String("userId", userID), zap.Error(err))
	}
	if r.feed != nil {
		if err := r.feed.Publish(ctx, userID, role); err != nil {
			r.logger.Warn("role publish failed", zap.String("userId", userID), zap.Error(err))
		}
	}
	r.logger.Info("role reassigned", zap.String("userId", userID), zap.String("role", string(role)))
	return nil
}

// Forget drops the cached role, used on logout.
func (r *Roles) Forget(ctx context.Context, userID string) {
	if err := r.cache.Delete(ctx, userID); err != nil {
		r.logger.Warn("role cache delete failed", zap.String("userId", userID), zap.Error(err))
	}
}

// Subscribe exposes the role feed for a user.
func (r *Roles) Subscribe(ctx context.Context, userID string) (<-chan Role, error) {
	if r.feed == nil {
		return nil, errors.New("role feed not configured")
	}
	return r.feed.Subscribe(ctx, userID)
}

func (r *Roles) remember(ctx context.Context, userID string, role Role) {
	if err := r.cache.Set(ctx, userID, role); err != nil {
		r.logger.Warn("role cache write failed", zap.String("userId", userID), zap.Error(err))
	}
}

// NewSession starts a session mirror for an authenticated user.
func (r *Roles) NewSession(user User) *Session {
	return &Session{user: &user, roles: r}
}
