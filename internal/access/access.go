// Package access gates protected operations behind a valid session token and,
// where required, the superuser flag.
//
// Purpose:
//
//	Access control composes the token service and the user directory:
//	Authenticate resolves a bearer token to a live user record, separating
//	cryptographic failures (expired, malformed) from existence failures
//	(the referenced user was deleted while the token was still valid; the
//	token then fails resolution as ErrUserVanished rather than ever
//	authenticating stale state).
//
// Debugging Notes:
//   - There is no revoke transition; a deleted user's outstanding tokens
//     keep passing signature and expiry checks until their TTL runs out, but
//     every authentication decision re-reads the directory
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/audioreg/audioreg/internal/storage/postgres"
	"github.com/audioreg/audioreg/internal/token"
)

var (
	// ErrUserVanished is returned when a structurally valid token references
	// a user that no longer exists.
	ErrUserVanished = errors.New("access: token subject no longer exists")
	// ErrForbidden is returned when an authenticated user lacks the
	// superuser flag required by the operation.
	ErrForbidden = errors.New("access: superuser required")
)

// Directory is the user lookup surface access control depends on.
type Directory interface {
	GetByID(ctx context.Context, id int64) (postgres.User, error)
}

// Control authenticates session tokens and enforces role gates.
type Control struct {
	tokens    *token.Service
	directory Directory
}

// New creates an access controller.
func New(tokens *token.Service, directory Directory) *Control {
	return &Control{tokens: tokens, directory: directory}
}

// Authenticate verifies the token and resolves its subject to a user record.
// Verification failures propagate their specific cause (token.ErrTokenExpired
// or token.ErrTokenMalformed); a verified token whose subject is gone fails
// with ErrUserVanished.
func (c *Control) Authenticate(ctx context.Context, tokenString string) (postgres.User, error) {
	userID, err := c.tokens.Verify(tokenString)
	if err != nil {
		return postgres.User{}, err
	}

	user, err := c.directory.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return postgres.User{}, ErrUserVanished
		}
		return postgres.User{}, fmt.Errorf("access: resolve user %d: %w", userID, err)
	}
	return user, nil
}

// RequireSuperuser admits the user unchanged when the superuser flag is set
// and fails with ErrForbidden otherwise. Pure predicate; no I/O.
func (c *Control) RequireSuperuser(user postgres.User) error {
	if !user.IsSuperuser {
		return ErrForbidden
	}
	return nil
}
