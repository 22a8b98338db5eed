// Package oauth holds the one-time state tokens linking an authorization
// redirect to its callback.
//
// Purpose:
//
//	Each /auth/yandex/login issues a random state value; the callback must
//	present it and each value is consumable exactly once. This ties the
//	callback to a login this service actually started (CSRF protection for
//	the browser flow). States are stored in Redis with a TTL when Redis is
//	configured and in process memory otherwise.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultStateTTL bounds how long a login redirect may sit before the
// callback arrives.
const DefaultStateTTL = 10 * time.Minute

// ErrStateUnknown is returned when a callback presents a state this service
// never issued, already consumed, or let expire.
var ErrStateUnknown = errors.New("oauth: unknown or expired state")

// StateStore issues and consumes one-time state tokens.
type StateStore interface {
	// Issue generates a random state, stores it with a TTL, and returns it.
	Issue(ctx context.Context) (string, error)
	// Consume validates and deletes the state. A state can be consumed at
	// most once.
	Consume(ctx context.Context, state string) error
}

func newStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemoryStateStore keeps states in process memory. Used when Redis is not
// configured; states do not survive a restart, which only forces the user
// back through the login redirect.
type MemoryStateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	states map[string]time.Time
	now    func() time.Time
}

// NewMemoryStateStore creates an in-process state store.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &MemoryStateStore{
		ttl:    ttl,
		states: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStateStore) Issue(context.Context) (string, error) {
	state, err := newStateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, deadline := range s.states {
		if now.After(deadline) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(s.ttl)
	return state, nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.states[state]
	if !ok {
		return ErrStateUnknown
	}
	delete(s.states, state)
	if s.now().After(deadline) {
		return ErrStateUnknown
	}
	return nil
}
