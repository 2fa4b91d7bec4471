package toolconv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeNameReplacesIllegalChars(t *testing.T) {
	assert.Equal(t, "my_tool", SanitizeName("my.tool!!"))
}

func TestSanitizeNameTrimsUnderscores(t *testing.T) {
	assert.Equal(t, "tool", SanitizeName("__tool__"))
}

func TestSanitizeNameEmptyBecomesTool(t *testing.T) {
	assert.Equal(t, "tool", SanitizeName("..."))
}

func TestSanitizeNameTruncates(t *testing.T) {
	long := strings.Repeat("a", 200)
	out := SanitizeName(long)
	assert.Len(t, out, maxSanitizedNameLen)
}

func TestSanitizeNameAlreadyValidPassesThrough(t *testing.T) {
	assert.Equal(t, "search_web-v2", SanitizeName("search_web-v2"))
}

func TestNormalizeSchemaForcesAdditionalPropertiesFalse(t *testing.T) {
	raw := []byte(`{"type":"object","properties":{"q":{"type":"string"}}}`)
	out := NormalizeSchema(raw)
	assert.Contains(t, string(out), `"additionalProperties":false`)
}

func TestNormalizeSchemaCollapsesNullableUnion(t *testing.T) {
	raw := []byte(`{"type":"object","properties":{"q":{"type":["string","null"]}}}`)
	out := NormalizeSchema(raw)
	assert.Contains(t, string(out), `"type":"string"`)
	assert.NotContains(t, string(out), `["string","null"]`)
}

func TestNormalizeSchemaLeavesExistingAdditionalProperties(t *testing.T) {
	raw := []byte(`{"type":"object","additionalProperties":true}`)
	out := NormalizeSchema(raw)
	assert.Contains(t, string(out), `"additionalProperties":true`)
}
