package identity

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleWorker   Role = "worker"
	RoleAdmin    Role = "admin"
)

// ParseRole maps stored role names onto the hierarchy. Unknown names are
// reported with ok=false and map to customer.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleWorker:
		return RoleWorker, true
	case RoleCustomer:
		return RoleCustomer, true
	default:
		return RoleCustomer, false
	}
}

func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleWorker:
		return 2
	default:
		return 1
	}
}

func (r Role) AtLeast(required Role) bool {
	return r.Level() >= required.Level()
}

// User mirrors the authenticated account for the storefront.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Role      Role      `json:"role"`
}

func (u User) HasRole(required Role) bool {
	return u.Role.AtLeast(required)
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u User) IsWorker() bool {
	return u.Role == RoleWorker
}

func (u User) CanAccessAdmin() bool {
	return u.IsAdmin() || u.IsWorker()
}
