package modelinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIListContainsEveryKnownModel(t *testing.T) {
	list := OpenAIList()
	assert.Equal(t, "list", list["object"])

	data, ok := list["data"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, data, len(Known))

	ids := make(map[string]bool, len(data))
	for _, entry := range data {
		assert.Equal(t, "model", entry["object"])
		ids[entry["id"].(string)] = true
	}
	for _, m := range Known {
		assert.True(t, ids[m.ID], "missing %s from OpenAI list", m.ID)
	}
}

func TestGeminiListPrefixesModelNames(t *testing.T) {
	list := GeminiList()
	data, ok := list["models"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, data, len(Known))

	for i, entry := range data {
		assert.Equal(t, "models/"+Known[i].ID, entry["name"])
		methods, ok := entry["supportedGenerationMethods"].([]string)
		require.True(t, ok)
		assert.Contains(t, methods, "generateContent")
		assert.Contains(t, methods, "streamGenerateContent")
	}
}

func TestGeminiGetFindsKnownModel(t *testing.T) {
	entry, ok := GeminiGet("gemini-2.5-pro")
	require.True(t, ok)
	assert.Equal(t, "models/gemini-2.5-pro", entry["name"])
}

func TestGeminiGetUnknownModel(t *testing.T) {
	_, ok := GeminiGet("not-a-real-model")
	assert.False(t, ok)
}
