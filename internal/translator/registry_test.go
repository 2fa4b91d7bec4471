package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRegistryLookupMissesUnregisteredFamily(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Inbound(FamilyOpenAI)
	assert.False(t, ok)
}

func TestDefaultRegistryHasNoFamiliesUntilSubpackagesImported(t *testing.T) {
	// This package alone (without importing openai/anthropic/gemini)
	// registers nothing; the family sub-packages self-register via
	// init() when imported by the dispatcher/api wiring.
	_, ok := Default.Outbound(FamilyGemini)
	assert.False(t, ok)
}

func TestStreamStateDefaultsToNoOpenBlock(t *testing.T) {
	s := &StreamState{}
	assert.Equal(t, "", s.OpenBlock)
}
