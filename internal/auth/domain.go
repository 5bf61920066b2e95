package auth

import (
	"time"

	"github.com/staffdir/staffdir/internal/rbac"
)

// Identity is an account that can log in.
type Identity struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         rbac.Role  `json:"role"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Email        string     `json:"email,omitempty"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Principal projects the identity into the request-scoped actor.
func (i Identity) Principal() rbac.Principal {
	return rbac.Principal{
		ID:        i.ID,
		Username:  i.Username,
		Role:      i.Role,
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Email:     i.Email,
	}
}
