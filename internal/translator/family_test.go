package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFamily(t *testing.T) {
	assert.Equal(t, FamilyAnthropic, DetectFamily("claude-3-5-sonnet"))
	assert.Equal(t, FamilyAnthropic, DetectFamily("Claude-Opus"))
	assert.Equal(t, FamilyGemini, DetectFamily("gemini-2.5-pro"))
	assert.Equal(t, FamilyUnknown, DetectFamily("gpt-4o"))
}

func TestNormalizeModelStripsDateSuffix(t *testing.T) {
	assert.Equal(t, "claude-3-5-sonnet", NormalizeModel("claude-3-5-sonnet-20241022"))
}

func TestNormalizeModelRedirectsHaiku(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash-lite", NormalizeModel("claude-3-5-haiku-20241022"))
}

func TestNormalizeModelLeavesOthersAlone(t *testing.T) {
	assert.Equal(t, "gemini-2.5-pro", NormalizeModel("gemini-2.5-pro"))
}

func TestIsThinkingCapable(t *testing.T) {
	assert.True(t, IsThinkingCapable("claude-3-7-sonnet-thinking"))
	assert.False(t, IsThinkingCapable("claude-3-5-sonnet"))
	assert.True(t, IsThinkingCapable("gemini-3-pro"))
	assert.False(t, IsThinkingCapable("gemini-2.5-pro"))
	assert.True(t, IsThinkingCapable("gemini-2.5-pro-thinking"))
}

func TestMaxOutputTokensForCapsGemini(t *testing.T) {
	assert.Equal(t, 16384, MaxOutputTokensFor("gemini-2.5-pro", 50000))
	assert.Equal(t, 4096, MaxOutputTokensFor("claude-3-5-sonnet", 4096))
}

func TestReasoningEffortToThinkingBudget(t *testing.T) {
	budget, ok := ReasoningEffortToThinkingBudget("medium")
	assert.True(t, ok)
	assert.Equal(t, 16000, budget)

	_, ok = ReasoningEffortToThinkingBudget("")
	assert.False(t, ok)
}

func TestFinishReasonMapping(t *testing.T) {
	oa, an := FinishReason("MAX_TOKENS")
	assert.Equal(t, "length", oa)
	assert.Equal(t, "max_tokens", an)

	oa, an = FinishReason("TOOL_USE")
	assert.Equal(t, "tool_calls", oa)
	assert.Equal(t, "tool_use", an)
}
