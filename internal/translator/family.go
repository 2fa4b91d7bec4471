// Package translator detects a request's model family, normalizes
// model names, and dispatches to per-family inbound/outbound transforms
// through a Registry modeled on the teacher's sdk/translator/registry.go
// (spec §4.2).
package translator

import (
	"regexp"
	"strconv"
	"strings"
)

// Family identifies which client protocol a request arrived in, or
// which family a model name belongs to upstream.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
	FamilyGemini    Family = "gemini"
	FamilyUnknown   Family = "unknown"
)

var dateSuffix = regexp.MustCompile(`-\d{8}$`)
var geminiVersion = regexp.MustCompile(`gemini-(\d+)`)

// DetectFamily classifies a model name per spec §4.2.1: "claude" in the
// name (case-insensitive) is the anthropic-style family, "gemini" is
// the gemini family, anything else is unknown.
func DetectFamily(model string) Family {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude"):
		return FamilyAnthropic
	case strings.Contains(lower, "gemini"):
		return FamilyGemini
	default:
		return FamilyUnknown
	}
}

// NormalizeModel strips a trailing `-YYYYMMDD` date suffix and redirects
// any "haiku" model to gemini-2.5-flash-lite.
func NormalizeModel(model string) string {
	normalized := dateSuffix.ReplaceAllString(model, "")
	if strings.Contains(strings.ToLower(normalized), "haiku") {
		return "gemini-2.5-flash-lite"
	}
	return normalized
}

// IsThinkingCapable reports whether a (already normalized) model name
// supports extended thinking, per spec §4.2.1: claude models with
// "thinking" in the name, or gemini models with "thinking" in the name
// or a version number >= 3.
func IsThinkingCapable(model string) bool {
	family := DetectFamily(model)
	lower := strings.ToLower(model)

	switch family {
	case FamilyAnthropic:
		return strings.Contains(lower, "thinking")
	case FamilyGemini:
		if strings.Contains(lower, "thinking") {
			return true
		}
		if m := geminiVersion.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n >= 3
			}
		}
		return false
	default:
		return false
	}
}

// MaxOutputTokensFor caps maxOutputTokens for Gemini-family requests to
// the upstream's hard limit of 16384; other families pass through
// unchanged.
func MaxOutputTokensFor(model string, requested int) int {
	if DetectFamily(model) == FamilyGemini && requested > 16384 {
		return 16384
	}
	return requested
}

// ReasoningEffortToThinkingBudget maps an OpenAI reasoning_effort value
// to the native thinking-token budget per spec §4.2.4.
func ReasoningEffortToThinkingBudget(effort string) (int, bool) {
	switch effort {
	case "low":
		return 8000, true
	case "medium":
		return 16000, true
	case "high":
		return 32000, true
	default:
		return 0, false
	}
}

// FinishReason maps a native finishReason to the OpenAI and Anthropic
// equivalents per spec §4.2.5.
func FinishReason(native string) (openai, anthropic string) {
	switch native {
	case "STOP":
		return "stop", "end_turn"
	case "MAX_TOKENS":
		return "length", "max_tokens"
	case "TOOL_USE", "FUNCTION_CALL":
		return "tool_calls", "tool_use"
	case "SAFETY":
		return "content_filter", "stop_sequence"
	default:
		return "stop", "end_turn"
	}
}
