// Package anthropic translates between the Anthropic Messages wire
// format and the shared native Antigravity shape (spec §4.2.4, §4.2.5).
package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/idgen"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/native"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/translator"
)

func init() {
	translator.Register(translator.FamilyAnthropic, ConvertRequest, ConvertResponse, ConvertStreamChunk)
}

// webSearchToolName is Anthropic's built-in web-search tool; the
// upstream has no equivalent, so it is handled by an external
// collaborator locally and never forwarded (spec §4.2.4).
const webSearchToolName = "web_search_20250305"

// Request is the subset of the Anthropic Messages request body this
// translator reads.
type Request struct {
	Model         string          `json:"model"`
	System        json.RawMessage `json:"system,omitempty"`
	Messages      []Message       `json:"messages"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	Thinking      *ThinkingSpec   `json:"thinking,omitempty"`
}

// ThinkingSpec is Anthropic's extended-thinking request block.
type ThinkingSpec struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

// Message is one Anthropic message; Content may be a plain string or
// an array of typed blocks.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Tool is an Anthropic tool declaration.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     any             `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Source    *struct {
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
	} `json:"source,omitempty"`
}

// ConvertRequest maps an Anthropic Messages request into native shape:
// system becomes systemInstruction, tool_use/tool_result blocks become
// functionCall/functionResponse parts, and the built-in web-search tool
// is dropped from the forwarded tool list.
func ConvertRequest(raw []byte, sessionID string) (*native.Request, error) {
	var in Request
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("anthropic: decode request: %w", err)
	}

	model := translator.NormalizeModel(in.Model)

	var systemInstruction *native.SystemInstruction
	if parts := textParts(in.System); len(parts) > 0 {
		systemInstruction = &native.SystemInstruction{Parts: parts}
	}

	turns := make([]native.ContentTurn, 0, len(in.Messages))
	for _, msg := range in.Messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		turns = append(turns, native.ContentTurn{Role: role, Parts: blocksToParts(msg.Content)})
	}

	var tools []native.Tool
	var decls []native.FunctionDeclaration
	for _, t := range in.Tools {
		if t.Name == webSearchToolName {
			continue
		}
		decls = append(decls, native.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	if len(decls) > 0 {
		tools = []native.Tool{{FunctionDeclarations: decls}}
	}

	var toolConfig *native.ToolConfig
	if len(tools) > 0 {
		toolConfig = &native.ToolConfig{FunctionCallingConfig: native.FunctionCallingConfig{Mode: "VALIDATED"}}
	}

	genConfig := native.GenerationConfig{
		MaxOutputTokens: translator.MaxOutputTokensFor(model, in.MaxTokens),
		Temperature:     in.Temperature,
		TopP:            in.TopP,
		StopSequences:   in.StopSequences,
	}
	if in.Thinking != nil && in.Thinking.BudgetTokens > 0 {
		genConfig.ThinkingConfig = &native.ThinkingConfig{ThinkingBudget: in.Thinking.BudgetTokens}
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

func textParts(raw json.RawMessage) []native.Part {
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
	var parts []native.Part
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, native.Part{Text: b.Text})
		}
	}
	return parts
}

func blocksToParts(raw json.RawMessage) []native.Part {
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
		case "image":
			if b.Source != nil {
				parts = append(parts, native.Part{InlineData: &native.InlineData{
					MimeType: b.Source.MediaType,
					Data:     b.Source.Data,
				}})
			}
		case "tool_use":
			parts = append(parts, native.Part{FunctionCall: &native.FunctionCall{
				ID:   b.ID,
				Name: b.Name,
				Args: b.Input,
			}})
		case "tool_result":
			var output any
			if len(b.Content) > 0 {
				if err := json.Unmarshal(b.Content, &output); err != nil {
					output = string(b.Content)
				}
			}
			parts = append(parts, native.Part{FunctionResponse: &native.FunctionResponse{
				ID:       b.ToolUseID,
				Response: native.FunctionResultBody{Output: output},
			}})
		}
	}
	return parts
}

// ConvertResponse renders a completed native response as an Anthropic
// Messages response, walking parts in order into thinking/text/
// tool_use content blocks per spec §4.2.5.
func ConvertResponse(resp *native.Response, model string) ([]byte, error) {
	body := map[string]any{
		"type":  "message",
		"role":  "assistant",
		"model": model,
	}
	if len(resp.Candidates) == 0 {
		body["content"] = []any{}
		return json.Marshal(body)
	}
	cand := resp.Candidates[0]

	var content []map[string]any
	for _, part := range cand.Content.Parts {
		switch {
		case part.IsThought():
			block := map[string]any{"type": "thinking", "thinking": part.Text}
			if part.ThoughtSignature != "" {
				block["signature"] = part.ThoughtSignature
			}
			content = append(content, block)
		case part.IsFunctionCall():
			content = append(content, map[string]any{
				"type":  "tool_use",
				"id":    part.FunctionCall.ID,
				"name":  part.FunctionCall.Name,
				"input": part.FunctionCall.Args,
			})
		case part.IsText():
			content = append(content, map[string]any{"type": "text", "text": part.Text})
		}
	}
	body["content"] = content

	_, stopReason := translator.FinishReason(cand.FinishReason)
	body["stop_reason"] = stopReason

	if resp.UsageMetadata != nil {
		body["usage"] = map[string]any{
			"input_tokens":  resp.UsageMetadata.PromptTokenCount,
			"output_tokens": resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return json.Marshal(body)
}

// ConvertStreamChunk emits Anthropic-style message_start/block-start/
// delta/block-stop/message_stop SSE events, tracking which block kind
// is open and its index across calls via state so a transition (e.g.
// thinking -> text) closes the previous block before opening the next
// (spec §4.2.5).
func ConvertStreamChunk(state *translator.StreamState, resp *native.Response, model string) ([]string, error) {
	if len(resp.Candidates) == 0 {
		return nil, nil
	}
	cand := resp.Candidates[0]

	var events []string
	emit := func(event string, payload map[string]any) error {
		payload["type"] = event
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		events = append(events, string(data))
		return nil
	}

	if !state.MessageStarted {
		if err := emit("message_start", map[string]any{
			"message": map[string]any{
				"id":            idgen.MessageID(),
				"type":          "message",
				"role":          "assistant",
				"content":       []any{},
				"model":         model,
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
			},
		}); err != nil {
			return nil, err
		}
		state.MessageStarted = true
	}

	closeOpenBlock := func() error {
		if state.OpenBlock == "" {
			return nil
		}
		if err := emit("content_block_stop", map[string]any{"index": state.BlockIndex}); err != nil {
			return err
		}
		state.OpenBlock = ""
		state.BlockIndex++
		return nil
	}

	for _, part := range cand.Content.Parts {
		var kind, deltaType, deltaField string
		switch {
		case part.IsThought():
			kind, deltaType, deltaField = "thought", "thinking_delta", "thinking"
		case part.IsText():
			kind, deltaType, deltaField = "text", "text_delta", "text"
		case part.IsFunctionCall():
			kind = "tool"
		default:
			continue
		}

		if state.OpenBlock != kind {
			if err := closeOpenBlock(); err != nil {
				return nil, err
			}
			blockPayload := map[string]any{"index": state.BlockIndex}
			switch kind {
			case "thought":
				blockPayload["content_block"] = map[string]any{"type": "thinking"}
			case "text":
				blockPayload["content_block"] = map[string]any{"type": "text"}
			case "tool":
				blockPayload["content_block"] = map[string]any{
					"type": "tool_use",
					"id":   part.FunctionCall.ID,
					"name": part.FunctionCall.Name,
				}
			}
			if err := emit("content_block_start", blockPayload); err != nil {
				return nil, err
			}
			state.OpenBlock = kind
		}

		if kind == "tool" {
			argsJSON, _ := json.Marshal(part.FunctionCall.Args)
			if err := emit("content_block_delta", map[string]any{
				"index": state.BlockIndex,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": string(argsJSON)},
			}); err != nil {
				return nil, err
			}
			continue
		}

		if err := emit("content_block_delta", map[string]any{
			"index": state.BlockIndex,
			"delta": map[string]any{"type": deltaType, deltaField: part.Text},
		}); err != nil {
			return nil, err
		}
	}

	if cand.FinishReason != "" {
		if err := closeOpenBlock(); err != nil {
			return nil, err
		}
		_, stopReason := translator.FinishReason(cand.FinishReason)
		payload := map[string]any{"delta": map[string]any{"stop_reason": stopReason}}
		if resp.UsageMetadata != nil {
			payload["usage"] = map[string]any{
				"input_tokens":  resp.UsageMetadata.PromptTokenCount,
				"output_tokens": resp.UsageMetadata.CandidatesTokenCount,
			}
		}
		if err := emit("message_delta", payload); err != nil {
			return nil, err
		}
		if err := emit("message_stop", map[string]any{}); err != nil {
			return nil, err
		}
	}

	return events, nil
}
