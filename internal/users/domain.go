package users

import "github.com/staffdir/staffdir/internal/rbac"

// CreateInput carries a new identity.
type CreateInput struct {
	Username  string    `json:"username" validate:"required,min=3,max=100"`
	Password  string    `json:"password" validate:"required,min=8,max=256"`
	Role      rbac.Role `json:"role" validate:"required"`
	FirstName string    `json:"firstName" validate:"max=100"`
	LastName  string    `json:"lastName" validate:"max=100"`
	Email     string    `json:"email" validate:"omitempty,email"`
}

// NewIdentity is what the repository persists for CreateInput.
type NewIdentity struct {
	Username     string
	PasswordHash string
	Role         rbac.Role
	FirstName    string
	LastName     string
	Email        string
}

// RoleChange is the request body of a role change.
type RoleChange struct {
	Role rbac.Role `json:"role" validate:"required"`
}
