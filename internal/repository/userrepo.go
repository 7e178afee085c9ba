// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/openmunicipal/civicportal/internal/model"
)

// UserFilter narrows admin user listings.
type UserFilter struct {
	Role   model.Role // empty = all
	Search string     // matches name or email, case-insensitive
	Limit  int
	Offset int
}

// UserRepository provides CRUD access for portal accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by lowercase email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// List returns users matching the filter plus the unfiltered-page total.
	List(ctx context.Context, f UserFilter) ([]model.User, int64, error)
	// Update persists mutable profile fields (name, phone, role, ward, active).
	Update(ctx context.Context, u *model.User) error
	// Deactivate flips the active flag off; rows are never physically removed.
	Deactivate(ctx context.Context, id uuid.UUID) error
}
