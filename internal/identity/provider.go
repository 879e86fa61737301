// Package identity wraps the external identity provider. The portal never
// stores users itself; it reads the provider's directory and writes the
// single role attribute users pick at signup.
package identity

import (
	"context"
	"errors"
)

// User is the directory entry the dashboards consume.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Provider exposes the identity directory operations the portal needs.
type Provider interface {
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	SetRole(ctx context.Context, id, role string) (*User, error)
}

var (
	// ErrUserNotFound is returned when the provider knows no such user.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidRole is returned for roles outside patient/doctor.
	ErrInvalidRole = errors.New("role must be patient or doctor")
)
