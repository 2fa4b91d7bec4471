package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIDDeterministic(t *testing.T) {
	a := SessionID("hello there")
	b := SessionID("hello there")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestSessionIDChangesWithInput(t *testing.T) {
	a := SessionID("hello there")
	b := SessionID("hello there!")
	assert.NotEqual(t, a, b)
}

func TestDeriveSessionIDFallsBackToRandom(t *testing.T) {
	a := DeriveSessionID("")
	b := DeriveSessionID("")
	assert.NotEqual(t, a, b, "empty first-user-text should not collide")
}

func TestRequestIDShape(t *testing.T) {
	id := RequestID()
	require.True(t, len(id) > len("agent-"))
	assert.Equal(t, "agent-", id[:6])
}
