package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapSSEPayloadEnvelope(t *testing.T) {
	raw := []byte(`{"response":{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]},"finishReason":"STOP"}]}}`)
	resp, err := UnwrapSSEPayload(raw)
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "STOP", resp.Candidates[0].FinishReason)
}

func TestUnwrapSSEPayloadBare(t *testing.T) {
	raw := []byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]}}]}`)
	resp, err := UnwrapSSEPayload(raw)
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)
}

func TestPartPredicates(t *testing.T) {
	text := Part{Text: "hello"}
	assert.True(t, text.IsText())
	assert.False(t, text.IsThought())

	thought := Part{Text: "reasoning...", Thought: true}
	assert.True(t, thought.IsThought())
	assert.False(t, thought.IsText())

	call := Part{FunctionCall: &FunctionCall{Name: "search"}}
	assert.True(t, call.IsFunctionCall())
	assert.False(t, call.IsFunctionResponse())

	resp := Part{FunctionResponse: &FunctionResponse{Name: "search"}}
	assert.True(t, resp.IsFunctionResponse())
}
