// Package gemini translates between the Gemini generateContent wire
// format and the shared native Antigravity shape. The inbound mapping
// is near-identity per spec §4.2.4: fill missing functionCall ids,
// propagate them to the matching functionResponse by positional
// pairing, strip unsupported fields, and force VALIDATED tool-calling
// mode whenever tools are present.
package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/idgen"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/translator"
)

func init() {
	translator.Register(translator.FamilyGemini, ConvertRequest, ConvertResponse, ConvertStreamChunk)
}

// Request is the subset of the Gemini generateContent request body this
// translator reads and rewrites.
type Request struct {
	Contents          []native.ContentTurn      `json:"contents"`
	GenerationConfig  native.GenerationConfig   `json:"generationConfig"`
	SystemInstruction *native.SystemInstruction `json:"systemInstruction,omitempty"`
	Tools             []native.Tool             `json:"tools,omitempty"`
	ToolConfig        *native.ToolConfig        `json:"toolConfig,omitempty"`
	SafetySettings    json.RawMessage           `json:"safetySettings,omitempty"`
	Model             string                    `json:"model,omitempty"`
}

// ConvertRequest maps the inbound Gemini request into native shape,
// filling missing functionCall ids and pairing them positionally with
// the next functionResponse of the same name.
func ConvertRequest(raw []byte, sessionID string) (*native.Request, error) {
	var in Request
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("gemini: decode request: %w", err)
	}

	contents := make([]native.ContentTurn, len(in.Contents))
	copy(contents, in.Contents)
	fillFunctionCallIDs(contents)

	model := translator.NormalizeModel(in.Model)
	in.GenerationConfig.MaxOutputTokens = translator.MaxOutputTokensFor(model, in.GenerationConfig.MaxOutputTokens)

	var toolConfig *native.ToolConfig
	if len(in.Tools) > 0 {
		toolConfig = &native.ToolConfig{FunctionCallingConfig: native.FunctionCallingConfig{Mode: "VALIDATED"}}
	}

	return &native.Request{
		Model: model,
		Request: native.Content{
			Contents:          contents,
			GenerationConfig:  in.GenerationConfig,
			SystemInstruction: in.SystemInstruction,
			Tools:             in.Tools,
			ToolConfig:        toolConfig,
			SessionID:         sessionID,
		},
	}, nil
}

// fillFunctionCallIDs assigns a generated id to any functionCall part
// lacking one, then propagates that id to the next functionResponse
// part with a matching name that itself lacks an id (positional
// pairing within the conversation, per spec §4.2.4).
func fillFunctionCallIDs(contents []native.ContentTurn) {
	pending := map[string][]string{} // name -> queue of generated ids awaiting a response

	for ci := range contents {
		parts := contents[ci].Parts
		for pi := range parts {
			if fc := parts[pi].FunctionCall; fc != nil {
				if fc.ID == "" {
					fc.ID = idgen.ToolCallID()
				}
				pending[fc.Name] = append(pending[fc.Name], fc.ID)
			}
		}
	}

	for ci := range contents {
		parts := contents[ci].Parts
		for pi := range parts {
			if fr := parts[pi].FunctionResponse; fr != nil && fr.ID == "" {
				queue := pending[fr.Name]
				if len(queue) > 0 {
					fr.ID = queue[0]
					pending[fr.Name] = queue[1:]
				}
			}
		}
	}
}

// ConvertResponse renders a completed native response as a Gemini
// generateContent response body (effectively identity, since native
// already mirrors the Gemini shape).
func ConvertResponse(resp *native.Response, _ string) ([]byte, error) {
	return json.Marshal(resp)
}

// ConvertStreamChunk passes a native streaming chunk through unchanged
// as a single Gemini-format SSE payload, since the wire shapes match.
func ConvertStreamChunk(_ *translator.StreamState, resp *native.Response, _ string) ([]string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return []string{string(data)}, nil
}
