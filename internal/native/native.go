// Package native defines the Antigravity wire shape that every family
// translator converts to and from: a single intermediate request and
// response representation carrying Gemini-style contents and a tagged
// Part union (spec §4.2).
package native

import "encoding/json"

// Request is the outbound payload sent to the upstream Antigravity
// endpoint.
type Request struct {
	Project   string  `json:"project"`
	RequestID string  `json:"requestId"`
	Model     string  `json:"model"`
	UserAgent string  `json:"userAgent"`
	Request   Content `json:"request"`
}

// Content is the inner Gemini-shaped generation request.
type Content struct {
	Contents          []ContentTurn      `json:"contents"`
	GenerationConfig  GenerationConfig   `json:"generationConfig"`
	SystemInstruction *SystemInstruction `json:"systemInstruction,omitempty"`
	Tools             []Tool             `json:"tools,omitempty"`
	ToolConfig        *ToolConfig        `json:"toolConfig,omitempty"`
	SessionID         string             `json:"sessionId"`
}

// ContentTurn is one turn of the conversation.
type ContentTurn struct {
	Role  string `json:"role"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// GenerationConfig mirrors Gemini's generationConfig block.
type GenerationConfig struct {
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	TopK            *int            `json:"topK,omitempty"`
	StopSequences   []string        `json:"stopSequences,omitempty"`
	ThinkingConfig  *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// ThinkingConfig carries the reasoning-token budget for thinking-capable
// models.
type ThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

// SystemInstruction carries the flattened system prompt.
type SystemInstruction struct {
	Parts []Part `json:"parts"`
}

// Tool is a single function-declaration group.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// FunctionDeclaration describes one callable tool.
type FunctionDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolConfig controls function-calling behavior.
type ToolConfig struct {
	FunctionCallingConfig FunctionCallingConfig `json:"functionCallingConfig"`
}

// FunctionCallingConfig sets the calling mode; the translator always
// forces "VALIDATED" when tools are present (spec §4.2.4).
type FunctionCallingConfig struct {
	Mode string `json:"mode"`
}

// Part is the tagged union carried by every content turn. Exactly one
// of Text/InlineData/FunctionCall/FunctionResponse is populated; a
// non-empty Text with Thought=true marks a reasoning part rather than
// visible output.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// InlineData carries a base64-encoded blob, e.g. an image attachment.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall is a model-issued tool invocation.
type FunctionCall struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name"`
	Args             any    `json:"args,omitempty"`
	ThoughtSignature string `json:"thoughtSignature,omitempty"`
}

// FunctionResponse carries a tool's result back to the model.
type FunctionResponse struct {
	ID       string             `json:"id,omitempty"`
	Name     string             `json:"name"`
	Response FunctionResultBody `json:"response"`
}

// FunctionResultBody wraps a tool's output payload.
type FunctionResultBody struct {
	Output any `json:"output"`
}

// IsText reports whether p carries visible (non-thought) text.
func (p Part) IsText() bool { return p.Text != "" && !p.Thought }

// IsThought reports whether p carries a reasoning/thinking fragment.
func (p Part) IsThought() bool { return p.Text != "" && p.Thought }

// IsFunctionCall reports whether p carries a tool invocation.
func (p Part) IsFunctionCall() bool { return p.FunctionCall != nil }

// IsFunctionResponse reports whether p carries a tool result.
func (p Part) IsFunctionResponse() bool { return p.FunctionResponse != nil }

// Response is the upstream's unary (non-streaming) reply shape, the
// envelope-unwrapped form of a single SSE accumulation.
type Response struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      ContentTurn `json:"content"`
	FinishReason string      `json:"finishReason,omitempty"`
	Index        int         `json:"index"`
}

// UsageMetadata carries token accounting the outbound mapping copies
// into OpenAI's usage block or Anthropic's usage block.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// StreamEnvelope is the `{"response": ...}` wrapper some upstream SSE
// events carry around a Response; UnwrapSSEPayload strips it when
// present.
type StreamEnvelope struct {
	Response *Response `json:"response"`
}

// UnwrapSSEPayload extracts the Response from a raw SSE `data:` JSON
// payload, unwrapping the optional {"response": ...} envelope.
func UnwrapSSEPayload(raw []byte) (*Response, error) {
	var env StreamEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Response != nil {
		return env.Response, nil
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
