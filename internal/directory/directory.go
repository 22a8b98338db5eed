// Package directory resolves and maintains the canonical local identity for
// remote profiles.
//
// Purpose:
//
//	The directory maps the identity provider's stable external id to an
//	internal user record, creating one on first login, and serves lookups by
//	internal id for the rest of the system. It owns no state of its own; all
//	records live in the persistence store behind a narrow interface.
//
// Key Responsibilities:
//   - EnsureUser: find-or-create for the OAuth callback flow
//   - CreateFromProfile: new users always start without the superuser flag;
//     there is no automatic promotion path; elevation is an out-of-band
//     administrative store operation
//   - Update: set-if-provided partial profile updates
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/audioreg/audioreg/internal/identity"
	"github.com/audioreg/audioreg/internal/storage/postgres"
)

// Store is the persistence surface the directory needs. *postgres.Store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, params postgres.CreateUserParams) (postgres.User, error)
	GetUser(ctx context.Context, id int64) (postgres.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (postgres.User, error)
	UpdateUser(ctx context.Context, params postgres.UpdateUserParams) (postgres.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UpdateFields carries a partial profile update. Nil fields are left
// untouched.
type UpdateFields struct {
	Username *string
	Email    *string
}

// Directory resolves remote profiles to local user records.
type Directory struct {
	store Store
}

// New creates a directory backed by the given store.
func New(store Store) *Directory {
	return &Directory{store: store}
}

// FindByExternalID looks up the user correlated with the provider's stable id.
func (d *Directory) FindByExternalID(ctx context.Context, externalID string) (postgres.User, error) {
	return d.store.GetUserByExternalID(ctx, externalID)
}

// CreateFromProfile inserts a new user for a previously-unseen remote
// profile. The superuser flag is always false on creation.
func (d *Directory) CreateFromProfile(ctx context.Context, profile identity.RemoteProfile) (postgres.User, error) {
	externalID := profile.ID
	params := postgres.CreateUserParams{
		ExternalID:  &externalID,
		Username:    profile.DisplayName,
		IsSuperuser: false,
	}
	if profile.Email != "" {
		email := profile.Email
		params.Email = &email
	}

	user, err := d.store.CreateUser(ctx, params)
	if err != nil {
		return postgres.User{}, fmt.Errorf("directory: create from profile: %w", err)
	}
	return user, nil
}

// EnsureUser resolves the remote profile to its local user, creating one on
// first login. This is the only path that creates users.
func (d *Directory) EnsureUser(ctx context.Context, profile identity.RemoteProfile) (postgres.User, error) {
	user, err := d.store.GetUserByExternalID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, postgres.ErrNotFound) {
		return postgres.User{}, err
	}
	return d.CreateFromProfile(ctx, profile)
}

// GetByID retrieves a user by internal id.
func (d *Directory) GetByID(ctx context.Context, id int64) (postgres.User, error) {
	return d.store.GetUser(ctx, id)
}

// Update applies a set-if-provided partial update to the user's profile.
func (d *Directory) Update(ctx context.Context, id int64, fields UpdateFields) (postgres.User, error) {
	return d.store.UpdateUser(ctx, postgres.UpdateUserParams{
		ID:       id,
		Username: fields.Username,
		Email:    fields.Email,
	})
}

// Delete removes a user record.
func (d *Directory) Delete(ctx context.Context, id int64) error {
	return d.store.DeleteUser(ctx, id)
}
