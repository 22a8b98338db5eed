package audit

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEvent(t *testing.T) {
	targetID := int64(7)
	event := BuildEvent(3, ActorTypeUser, ActionUserUpdate, TargetTypeUser, &targetID)

	assert.NotEqual(t, "", event.EventID.String())
	assert.Equal(t, int64(3), event.ActorID)
	assert.Equal(t, ActionUserUpdate, event.Action)
	assert.NotEmpty(t, event.Hash)
	assert.False(t, event.CreatedAt.IsZero())

	// The hash covers the payload; two events differ.
	other := BuildEvent(3, ActorTypeUser, ActionUserDelete, TargetTypeUser, &targetID)
	assert.NotEqual(t, event.Hash, other.Hash)
}

func TestBuildEventFromRequest(t *testing.T) {
	req := httptest.NewRequest("PUT", "/users/me", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("User-Agent", "test-agent")

	event := BuildEventFromRequest(BuildEvent(3, ActorTypeUser, ActionUserUpdate, TargetTypeUser, nil), req)

	assert.Equal(t, "203.0.113.9", event.IPAddress)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.Equal(t, "PUT /users/me", event.Resource)
}

func TestEmitters(t *testing.T) {
	event := BuildEvent(1, ActorTypeSystem, ActionUserLogin, TargetTypeUser, nil)

	require.NoError(t, NewNoopEmitter().Emit(context.Background(), event))
	require.NoError(t, NewLoggerEmitter(zerolog.Nop()).Emit(context.Background(), event))
}

func TestKafkaEmitterDisabledWithoutBrokers(t *testing.T) {
	emitter, err := NewKafkaEmitterFromConfig("", "audit.audioreg", "audioreg", zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, emitter)

	emitter, err = NewKafkaEmitterFromConfig(" , ", "audit.audioreg", "audioreg", zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, emitter)
}
