// Package openai translates between the OpenAI Chat Completions wire
// format and the shared native Antigravity shape (spec §4.2.4, §4.2.5).
package openai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/idgen"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/translator"
)

func init() {
	translator.Register(translator.FamilyOpenAI, ConvertRequest, ConvertResponse, ConvertStreamChunk)
}

var dataImageRe = regexp.MustCompile(`^data:image/(\w+);base64,(.*)$`)

// Request is the subset of the OpenAI Chat Completions request body
// this translator reads.
type Request struct {
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	MaxTokens       int       `json:"max_tokens,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"`
	TopP            *float64  `json:"top_p,omitempty"`
	Stop            []string  `json:"stop,omitempty"`
	Tools           []Tool    `json:"tools,omitempty"`
	ReasoningEffort string    `json:"reasoning_effort,omitempty"`
}

// Message is one OpenAI chat message; Content may be a plain string or
// an array of typed content blocks, so it is decoded manually.
type Message struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// Tool is an OpenAI function-tool declaration.
type Tool struct {
	Type     string                     `json:"type"`
	Function native.FunctionDeclaration `json:"function"`
}

// ToolCall is a model-issued tool invocation in OpenAI shape.
type ToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function ToolCallPayload `json:"function"`
}

// ToolCallPayload carries the function name and JSON-encoded arguments.
type ToolCallPayload struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type contentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

// ConvertRequest maps an OpenAI chat request into native shape:
// leading system messages (those before any other message) are
// concatenated into the systemInstruction, role user/later system ->
// user, assistant -> model, tool -> user carrying a functionResponse,
// and reasoning_effort maps to a thinking budget.
func ConvertRequest(raw []byte, sessionID string) (*native.Request, error) {
	var in Request
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("openai: decode request: %w", err)
	}

	model := translator.NormalizeModel(in.Model)

	var systemParts []native.Part
	var turns []native.ContentTurn

	for _, msg := range in.Messages {
		switch msg.Role {
		case "system":
			if len(turns) > 0 {
				turns = append(turns, native.ContentTurn{Role: "user", Parts: textAndImageParts(msg.Content)})
			} else {
				systemParts = append(systemParts, textAndImageParts(msg.Content)...)
			}
		case "user":
			turns = append(turns, native.ContentTurn{Role: "user", Parts: textAndImageParts(msg.Content)})
		case "assistant":
			parts := textAndImageParts(msg.Content)
			for _, tc := range msg.ToolCalls {
				var args any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				parts = append(parts, native.Part{FunctionCall: &native.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: args,
				}})
			}
			turns = append(turns, native.ContentTurn{Role: "model", Parts: parts})
		case "tool":
			var output any
			if err := json.Unmarshal(msg.Content, &output); err != nil {
				output = string(msg.Content)
			}
			turns = append(turns, native.ContentTurn{Role: "user", Parts: []native.Part{{
				FunctionResponse: &native.FunctionResponse{
					ID:       msg.ToolCallID,
					Response: native.FunctionResultBody{Output: output},
				},
			}}})
		}
	}

	var systemInstruction *native.SystemInstruction
	if len(systemParts) > 0 {
		systemInstruction = &native.SystemInstruction{Parts: systemParts}
	}

	var tools []native.Tool
	if len(in.Tools) > 0 {
		decls := make([]native.FunctionDeclaration, 0, len(in.Tools))
		for _, t := range in.Tools {
			if t.Type == "function" {
				decls = append(decls, t.Function)
			}
		}
		if len(decls) > 0 {
			tools = []native.Tool{{FunctionDeclarations: decls}}
		}
	}

	var toolConfig *native.ToolConfig
	if len(tools) > 0 {
		toolConfig = &native.ToolConfig{FunctionCallingConfig: native.FunctionCallingConfig{Mode: "VALIDATED"}}
	}

	genConfig := native.GenerationConfig{
		MaxOutputTokens: translator.MaxOutputTokensFor(model, in.MaxTokens),
		Temperature:     in.Temperature,
		TopP:            in.TopP,
		StopSequences:   in.Stop,
	}
	if budget, ok := translator.ReasoningEffortToThinkingBudget(in.ReasoningEffort); ok {
		genConfig.ThinkingConfig = &native.ThinkingConfig{ThinkingBudget: budget}
	}

	return &native.Request{
		RequestID: idgen.RequestID(),
		Model:     model,
		Request: native.Content{
			Contents:          turns,
			GenerationConfig:  genConfig,
			SystemInstruction: systemInstruction,
			Tools:             tools,
			ToolConfig:        toolConfig,
			SessionID:         sessionID,
		},
	}, nil
}

// textAndImageParts decodes an OpenAI content field, which may be a
// plain string or an array of typed blocks, into native parts.
func textAndImageParts(raw json.RawMessage) []native.Part {
	if len(raw) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil
		}
		return []native.Part{{Text: asString}}
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	parts := make([]native.Part, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, native.Part{Text: b.Text})
			}
		case "image_url":
			if b.ImageURL == nil {
				continue
			}
			if m := dataImageRe.FindStringSubmatch(b.ImageURL.URL); m != nil {
				parts = append(parts, native.Part{InlineData: &native.InlineData{
					MimeType: "image/" + m[1],
					Data:     m[2],
				}})
			}
		}
	}
	return parts
}

// ConvertResponse renders a completed native response as an OpenAI
// chat.completion object, splitting parts into reasoning_content, text,
// and tool_calls per spec §4.2.5.
func ConvertResponse(resp *native.Response, model string) ([]byte, error) {
	if len(resp.Candidates) == 0 {
		return json.Marshal(map[string]any{"choices": []any{}})
	}
	cand := resp.Candidates[0]

	var text, reasoning strings.Builder
	var toolCalls []ToolCall
	for _, part := range cand.Content.Parts {
		switch {
		case part.IsThought():
			reasoning.WriteString(part.Text)
		case part.IsFunctionCall():
			argsJSON, _ := json.Marshal(part.FunctionCall.Args)
			id := part.FunctionCall.ID
			if id == "" {
				id = idgen.ToolCallID()
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:   id,
				Type: "function",
				Function: ToolCallPayload{
					Name:      part.FunctionCall.Name,
					Arguments: string(argsJSON),
				},
			})
		case part.IsText():
			text.WriteString(part.Text)
		}
	}

	finishReason, _ := translator.FinishReason(cand.FinishReason)

	message := map[string]any{"role": "assistant"}
	if text.Len() > 0 {
		message["content"] = text.String()
	} else {
		message["content"] = nil
	}
	if reasoning.Len() > 0 {
		message["reasoning_content"] = reasoning.String()
	}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
		finishReason = "tool_calls"
	}

	body := map[string]any{
		"model": model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       message,
			"finish_reason": finishReason,
		}},
	}
	if resp.UsageMetadata != nil {
		body["usage"] = map[string]any{
			"prompt_tokens":     resp.UsageMetadata.PromptTokenCount,
			"completion_tokens": resp.UsageMetadata.CandidatesTokenCount,
			"total_tokens":      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return json.Marshal(body)
}

// ConvertStreamChunk emits one flat OpenAI chat.completion.chunk delta
// per part of the native chunk, plus a final chunk carrying
// finish_reason (and usage, when present) once the native chunk has a
// finish reason; OpenAI streaming has no block framing, unlike
// Anthropic (spec §4.2.5).
func ConvertStreamChunk(state *translator.StreamState, resp *native.Response, model string) ([]string, error) {
	if len(resp.Candidates) == 0 {
		return nil, nil
	}
	cand := resp.Candidates[0]

	var deltas []map[string]any
	for _, part := range cand.Content.Parts {
		switch {
		case part.IsThought():
			deltas = append(deltas, map[string]any{"reasoning_content": part.Text})
		case part.IsText():
			deltas = append(deltas, map[string]any{"content": part.Text})
		case part.IsFunctionCall():
			argsJSON, _ := json.Marshal(part.FunctionCall.Args)
			deltas = append(deltas, map[string]any{"tool_calls": []map[string]any{{
				"index": state.ToolCallIndex(part.FunctionCall.ID),
				"id":    part.FunctionCall.ID,
				"type":  "function",
				"function": map[string]any{
					"name":      part.FunctionCall.Name,
					"arguments": string(argsJSON),
				},
			}}})
		}
	}

	var out []string
	for _, delta := range deltas {
		chunk := map[string]any{
			"model":   model,
			"choices": []map[string]any{{"index": 0, "delta": delta}},
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, string(data))
	}

	if cand.FinishReason != "" {
		finishReason, _ := translator.FinishReason(cand.FinishReason)
		final := map[string]any{
			"model":   model,
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{}, "finish_reason": finishReason}},
		}
		if resp.UsageMetadata != nil {
			final["usage"] = map[string]any{
				"prompt_tokens":     resp.UsageMetadata.PromptTokenCount,
				"completion_tokens": resp.UsageMetadata.CandidatesTokenCount,
				"total_tokens":      resp.UsageMetadata.TotalTokenCount,
			}
		}
		data, err := json.Marshal(final)
		if err != nil {
			return nil, err
		}
		out = append(out, string(data))
	}

	return out, nil
}
