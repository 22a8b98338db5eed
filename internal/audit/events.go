// Package audit provides audit event emission for the audioreg service.
//
// Purpose:
//
//	This package defines the audit event structure and an Emitter interface
//	with three implementations: a Kafka producer for production, a zerolog
//	emitter for development, and a no-op for tests. Every state-mutating
//	operation and every login emits an event.
//
// Debugging Notes:
//   - LoggerEmitter logs events as structured JSON for development visibility
//   - The hash field is a SHA256 of the event payload for tamper detection
//   - Emission is best-effort at call sites; a failed emit never fails the
//     request that produced it
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event represents a single auditable action.
type Event struct {
	EventID    uuid.UUID      `json:"event_id"`
	ActorID    int64          `json:"actor_id"`
	ActorType  string         `json:"actor_type"` // "user", "system"
	TargetID   *int64         `json:"target_id,omitempty"`
	TargetType string         `json:"target_type,omitempty"` // "user", "audio_file"
	Action     string         `json:"action"`                // "user.login", "user.update", ...
	Resource   string         `json:"resource,omitempty"`    // method + path of the triggering request
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Hash       string         `json:"hash"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Emitter defines the interface for audit event emission.
type Emitter interface {
	// Emit sends an audit event. Returns an error for monitoring; callers
	// treat emission as best-effort.
	Emit(ctx context.Context, event Event) error
}

// LoggerEmitter logs audit events as structured JSON.
type LoggerEmitter struct {
	logger zerolog.Logger
}

// NewLoggerEmitter creates a logger-based audit emitter.
func NewLoggerEmitter(logger zerolog.Logger) *LoggerEmitter {
	return &LoggerEmitter{logger: logger.With().Str("component", "audit").Logger()}
}

// Emit logs the audit event. Never fails.
func (e *LoggerEmitter) Emit(_ context.Context, event Event) error {
	e.logger.Info().
		Str("event_id", event.EventID.String()).
		Int64("actor_id", event.ActorID).
		Str("actor_type", event.ActorType).
		Str("action", event.Action).
		Str("target_type", event.TargetType).
		Interface("metadata", event.Metadata).
		Msg("audit event")
	return nil
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

// NewNoopEmitter creates a no-op audit emitter.
func NewNoopEmitter() *NoopEmitter {
	return &NoopEmitter{}
}

// Emit discards the event.
func (e *NoopEmitter) Emit(context.Context, Event) error {
	return nil
}

// BuildEvent constructs an audit event from common parameters, generating
// its id, hash, and timestamp.
func BuildEvent(actorID int64, actorType, action, targetType string, targetID *int64) Event {
	event := Event{
		EventID:    uuid.New(),
		ActorID:    actorID,
		ActorType:  actorType,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	event.Hash = computeEventHash(event)
	return event
}

// BuildEventFromRequest enriches an audit event with HTTP request metadata.
func BuildEventFromRequest(event Event, r *http.Request) Event {
	event.IPAddress = clientIP(r)
	event.UserAgent = r.Header.Get("User-Agent")
	if event.Resource == "" {
		event.Resource = r.Method + " " + r.URL.Path
	}
	return event
}

// computeEventHash computes a SHA256 hash of the event payload excluding the
// hash field itself.
func computeEventHash(event Event) string {
	eventCopy := event
	eventCopy.Hash = ""

	payload, err := json.Marshal(eventCopy)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", eventCopy))
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// clientIP extracts the client IP from the request, handling proxies.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// Common action constants.
const (
	ActionUserLogin   = "user.login"
	ActionUserRefresh = "user.refresh"
	ActionUserCreate  = "user.create"
	ActionUserUpdate  = "user.update"
	ActionUserDelete  = "user.delete"
	ActionAudioUpload = "audio.upload"
)

// Common target type constants.
const (
	TargetTypeUser      = "user"
	TargetTypeAudioFile = "audio_file"
)

// Common actor type constants.
const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)
