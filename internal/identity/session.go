package identity

import (
	"context"
	"sync"
)

// Session is the in-memory mirror of the signed-in user. Role pushes from
// the feed are the only asynchronous writer.
type Session struct {
	mu    sync.RWMutex
	user  *User
	roles *Roles
}

func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return RoleCustomer
	}
	return s.user.Role
}

func (s *Session) HasRole(required Role) bool { return s.Role().AtLeast(required) }
func (s *Session) IsAdmin() bool              { return s.Role() == RoleAdmin }
func (s *Session) IsWorker() bool             { return s.Role() == RoleWorker }
func (s *Session) CanAccessAdmin() bool       { return s.IsAdmin() || s.IsWorker() }

// Refresh reloads the role from the store, bypassing the cache.
func (s *Session) Refresh(ctx context.Context) Role {
	s.mu.RLock()
	if s.user == nil {
		s.mu.RUnlock()
		return RoleCustomer
	}
	userID := s.user.ID
	s.mu.RUnlock()

	role := s.roles.Load(ctx, userID, true)
	s.setRole(role)
	return role
}

// Watch subscribes to role pushes for the session user. Every push updates
// the cache and the in-memory user, then onChange is called if set. It
// returns once the subscription is live; delivery stops when ctx ends.
func (s *Session) Watch(ctx context.Context, onChange func(Role)) error {
	user, ok := s.User()
	if !ok {
		return ErrUserNotFound
	}

	updates, err := s.roles.Subscribe(ctx, user.ID)
	if err != nil {
		return err
	}

	go func() {
		for role := range updates {
			s.roles.remember(ctx, user.ID, role)
			if !s.setRole(role) {
				return
			}
			if onChange != nil {
				onChange(role)
			}
		}
	}()
	return nil
}

// Logout drops the cached role and clears the session user.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	user := s.user
	s.user = nil
	s.mu.Unlock()

	if user != nil {
		s.roles.Forget(ctx, user.ID)
	}
}

func (s *Session) setRole(role Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false
	}
	s.user.Role = role
	return true
}
