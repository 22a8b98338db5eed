// Package token mints and verifies the service's own session tokens.
//
// Purpose:
//
//	This package implements the session token service: a signed, time-limited
//	bearer credential carrying the internal user id as its subject. Tokens are
//	self-contained HS256 JWTs; nothing is persisted and there is no revocation
//	list. The only defense against a leaked token is its bounded TTL.
//
// Key Responsibilities:
//   - Issue signs {sub, exp} claims with the server secret
//   - Verify checks signature and expiry and returns the subject user id
//   - Refresh re-issues a token with a reset TTL
//
// Debugging Notes:
//   - Verify never consults storage; resolving the subject to a live user is
//     the access package's job, keeping cryptographic validity and user
//     existence as separate failure domains
//   - Only HS256 is accepted; tokens signed with any other method are
//     rejected as malformed
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a token's exp claim has passed.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenMalformed is returned when a token cannot be decoded, its
	// signature does not verify, or the sub claim is absent or not numeric.
	ErrTokenMalformed = errors.New("token: malformed")
)

// Service issues and verifies session tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token service signing with the given secret.
// Tokens expire after ttl.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a signed token whose subject is the given user id.
func (s *Service) Issue(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Refresh is equivalent to Issue: a caller holding a currently-valid token
// gets a new one with a reset TTL. The signing secret is not rotated.
func (s *Service) Refresh(userID int64) (string, error) {
	return s.Issue(userID)
}

// Verify decodes the token, checks its signature and expiry, and returns the
// subject user id. It distinguishes expiry (ErrTokenExpired) from every other
// defect (ErrTokenMalformed) and never touches persistent storage.
func (s *Service) Verify(tokenString string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenMalformed
	}

	if claims.Subject == "" {
		return 0, ErrTokenMalformed
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenMalformed
	}
	return userID, nil
}
