package citadelcbt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryLifecycle(t *testing.T) {
	registry := NewSessionRegistry()
	ctx := context.Background()

	session := registry.Begin(ctx, sampleQuiz(10), 4, WithTickInterval(time.Hour))
	require.NotEmpty(t, session.ID)
	assert.Len(t, session.Questions(), 4)
	assert.Equal(t, 1, registry.Len())

	got, ok := registry.Get(session.ID)
	require.True(t, ok)
	assert.Same(t, session, got)

	// Not collectable until submitted
	_, ok = registry.Collect(session.ID)
	assert.False(t, ok)

	_, err := session.Submit()
	require.NoError(t, err)

	record, ok := registry.Collect(session.ID)
	require.True(t, ok)
	assert.Len(t, record.Quiz.Questions, 4)
	assert.Equal(t, 0, registry.Len())
}

func TestSessionRegistryCancelAndShutdown(t *testing.T) {
	registry := NewSessionRegistry()
	ctx := context.Background()

	first := registry.Begin(ctx, sampleQuiz(3), 0, WithTickInterval(time.Hour))
	second := registry.Begin(ctx, sampleQuiz(3), 0, WithTickInterval(time.Hour))
	assert.NotEqual(t, first.ID, second.ID)

	registry.Cancel(first.ID)
	_, ok := registry.Get(first.ID)
	assert.False(t, ok)
	assert.Equal(t, SessionCancelled, first.State())

	registry.Cancel("missing")

	registry.Shutdown()
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, SessionCancelled, second.State())
}

func TestSessionRegistryExpiresFinishedSessions(t *testing.T) {
	registry := NewSessionRegistry(WithRetention(20 * time.Millisecond))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		registry.Begin(ctx, sampleQuiz(1), 1, WithTickInterval(time.Microsecond))
	}
	assert.Eventually(t, func() bool {
		return registry.Len() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSessionRegistryKeepsSubmittedSessionDuringRetention(t *testing.T) {
	registry := NewSessionRegistry(WithRetention(time.Hour))
	ctx := context.Background()

	session := registry.Begin(ctx, sampleQuiz(2), 0, WithTickInterval(time.Hour))
	_, err := session.Submit()
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, ok := registry.Get(session.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, registry.Len())
}
