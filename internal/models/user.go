package models

import (
	"time"

	"github.com/google/uuid"
)

// Role separates diners from venue owners.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleOwner
}

// User is an authenticated principal. Favorites holds venue id strings and
// may reference venues that no longer resolve.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Favorites []string  `json:"favorites"`
	CreatedAt time.Time `json:"created_at"`
}
