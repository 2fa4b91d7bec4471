package anthropic

import (
	"testing"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertRequestMapsSystemAndToolUse(t *testing.T) {
	raw := []byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"system": "be terse",
		"messages": [
			{"role":"user","content":"search for cats"},
			{"role":"assistant","content":[{"type":"tool_use","id":"call-1","name":"search","input":{"q":"cats"}}]},
			{"role":"user","content":[{"type":"tool_result","tool_use_id":"call-1","content":"results"}]}
		]
	}`)
	req, err := ConvertRequest(raw, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, req.Request.SystemInstruction)
	assert.Equal(t, "be terse", req.Request.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "claude-3-5-sonnet", req.Model, "date suffix stripped")

	assistantTurn := req.Request.Contents[1]
	assert.Equal(t, "model", assistantTurn.Role)
	assert.Equal(t, "search", assistantTurn.Parts[0].FunctionCall.Name)

	toolTurn := req.Request.Contents[2]
	assert.Equal(t, "call-1", toolTurn.Parts[0].FunctionResponse.ID)
}

func TestConvertRequestStripsWebSearchTool(t *testing.T) {
	raw := []byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"messages": [{"role":"user","content":"hi"}],
		"tools": [
			{"name":"web_search_20250305"},
			{"name":"calculator","input_schema":{"type":"object"}}
		]
	}`)
	req, err := ConvertRequest(raw, "sess-1")
	require.NoError(t, err)
	require.Len(t, req.Request.Tools, 1)
	require.Len(t, req.Request.Tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "calculator", req.Request.Tools[0].FunctionDeclarations[0].Name)
}

func TestConvertStreamChunkFramesBlockTransitions(t *testing.T) {
	state := &translator.StreamState{}

	thinking := &native.Response{Candidates: []native.Candidate{{
		Content: native.ContentTurn{Parts: []native.Part{{Text: "pondering", Thought: true}}},
	}}}
	events, err := ConvertStreamChunk(state, thinking, "claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Contains(t, events[0], "message_start", "first chunk opens the message before any block")
	assert.Contains(t, events[1], "content_block_start")
	assert.Contains(t, events[1], `"index":0`)
	assert.Equal(t, "thought", state.OpenBlock)

	text := &native.Response{Candidates: []native.Candidate{{
		Content:      native.ContentTurn{Parts: []native.Part{{Text: "the answer"}}},
		FinishReason: "STOP",
	}}}
	events, err = ConvertStreamChunk(state, text, "claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Contains(t, events[0], "content_block_stop", "switching block kind closes the previous block first")
	assert.Contains(t, events[0], `"index":0`, "the closed thought block keeps its original index")
	assert.Equal(t, "", state.OpenBlock, "finish reason present closes the final block too")
	assert.Contains(t, events[len(events)-1], "message_stop", "finish reason present emits message_stop")
}
