// Package idgen generates request, session, and tool-call identifiers.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// RequestID returns a fresh native request id in the "agent-<uuid>" shape
// the upstream Antigravity protocol expects.
func RequestID() string {
	return "agent-" + uuid.NewString()
}

// ToolCallID returns a fresh synthetic id for a functionCall/functionResponse
// pair that arrived from the client without one.
func ToolCallID() string {
	return "call-" + uuid.NewString()
}

// MessageID returns a fresh id in the "msg_<uuid>" shape Anthropic
// message_start events carry.
func MessageID() string {
	return "msg_" + uuid.NewString()
}

// SessionID derives the deterministic, per-conversation cache namespace
// described in the data model: SHA-256 of the first user text, truncated
// to 32 hex characters. When firstUserText is empty, callers should fall
// back to RandomSessionID instead of calling this.
func SessionID(firstUserText string) string {
	sum := sha256.Sum256([]byte(firstUserText))
	return hex.EncodeToString(sum[:])[:32]
}

// RandomSessionID returns a random session id for conversations with no
// user text to hash (e.g. a system-only or tool-only first turn).
func RandomSessionID() string {
	return uuid.NewString()
}

// DeriveSessionID picks SessionID(firstUserText) when text is present,
// otherwise a fresh RandomSessionID.
func DeriveSessionID(firstUserText string) string {
	if firstUserText == "" {
		return RandomSessionID()
	}
	return SessionID(firstUserText)
}
