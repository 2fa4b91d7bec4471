// Package modelinfo is the static registry of Antigravity-routed model
// ids backing the OpenAI and Gemini model-listing endpoints (spec §6,
// SPEC_FULL §12), grounded on the teacher's internal/registry static
// model tables.
package modelinfo

import "time"

// Model describes one model id this gateway routes through the
// Antigravity upstream.
type Model struct {
	ID          string `json:"id"`
	OwnedBy     string `json:"owned_by"`
	Description string `json:"description,omitempty"`
}

// Known is the static list of model ids the gateway accepts, spanning
// both Gemini-native and antigravity-routed Claude variants.
var Known = []Model{
	{ID: "gemini-2.5-pro", OwnedBy: "google", Description: "Gemini 2.5 Pro"},
	{ID: "gemini-2.5-pro-thinking", OwnedBy: "google", Description: "Gemini 2.5 Pro with extended thinking"},
	{ID: "gemini-2.5-flash", OwnedBy: "google", Description: "Gemini 2.5 Flash"},
	{ID: "gemini-2.5-flash-lite", OwnedBy: "google", Description: "Gemini 2.5 Flash Lite"},
	{ID: "gemini-3-pro-thinking", OwnedBy: "google", Description: "Gemini 3 Pro with extended thinking"},
	{ID: "claude-sonnet-4-5", OwnedBy: "anthropic", Description: "Claude Sonnet 4.5, routed via Antigravity"},
	{ID: "claude-sonnet-4-5-thinking", OwnedBy: "anthropic", Description: "Claude Sonnet 4.5 with extended thinking"},
	{ID: "claude-opus-4-1-thinking", OwnedBy: "anthropic", Description: "Claude Opus 4.1 with extended thinking"},
}

// OpenAIList renders Known as an OpenAI /v1/models list response.
func OpenAIList() map[string]any {
	data := make([]map[string]any, 0, len(Known))
	created := time.Now().Unix()
	for _, m := range Known {
		data = append(data, map[string]any{
			"id":       m.ID,
			"object":   "model",
			"created":  created,
			"owned_by": m.OwnedBy,
		})
	}
	return map[string]any{"object": "list", "data": data}
}

// GeminiList renders Known as a Gemini ListModels response.
func GeminiList() map[string]any {
	data := make([]map[string]any, 0, len(Known))
	for _, m := range Known {
		data = append(data, geminiModelEntry(m))
	}
	return map[string]any{"models": data}
}

// GeminiGet finds a single model by (bare, unprefixed) id, mirroring
// Gemini's GET /v1beta/models/{model} response shape.
func GeminiGet(id string) (map[string]any, bool) {
	for _, m := range Known {
		if m.ID == id {
			return geminiModelEntry(m), true
		}
	}
	return nil, false
}

func geminiModelEntry(m Model) map[string]any {
	return map[string]any{
		"name":                       "models/" + m.ID,
		"displayName":                m.ID,
		"description":                m.Description,
		"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent"},
	}
}
