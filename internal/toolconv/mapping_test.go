package toolconv

import (
	"testing"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/cache"
	"github.com/stretchr/testify/assert"
)

func TestMapperRoundTrip(t *testing.T) {
	names := cache.NewToolNameCache()
	defer names.Close()
	m := NewMapper(names)

	sanitized := m.SanitizeAndRemember("sess-1", "gemini-2.5-pro", "my.tool!!")
	assert.Equal(t, "my_tool", sanitized)

	restored := m.RestoreName("sess-1", "gemini-2.5-pro", sanitized)
	assert.Equal(t, "my.tool!!", restored)
}

func TestMapperNoOpWhenNameAlreadyValid(t *testing.T) {
	names := cache.NewToolNameCache()
	defer names.Close()
	m := NewMapper(names)

	sanitized := m.SanitizeAndRemember("sess-1", "gemini-2.5-pro", "search")
	assert.Equal(t, "search", sanitized)

	restored := m.RestoreName("sess-1", "gemini-2.5-pro", "search")
	assert.Equal(t, "search", restored, "no mapping was stored, name passes through unchanged")
}
