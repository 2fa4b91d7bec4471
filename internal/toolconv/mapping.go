package toolconv

import "github.com/SolarCrown57/antigravity-claude-proxy/internal/cache"

// Mapper sanitizes tool declaration names on the way in and restores
// the original name on the way out, scoped per session/model.
type Mapper struct {
	names *cache.ToolNameCache
}

// NewMapper wraps a ToolNameCache with the sanitize/restore contract.
func NewMapper(names *cache.ToolNameCache) *Mapper {
	return &Mapper{names: names}
}

// SanitizeAndRemember sanitizes name; if sanitization changed it, the
// mapping is recorded under (sessionID, model) so RestoreName can
// later reverse it.
func (m *Mapper) SanitizeAndRemember(sessionID, model, name string) string {
	sanitized := SanitizeName(name)
	if sanitized != name {
		m.names.Put(sessionID, model, sanitized, name)
	}
	return sanitized
}

// RestoreName looks up the original name for a possibly-sanitized
// functionCall.name. Returns name unchanged if no mapping exists.
func (m *Mapper) RestoreName(sessionID, model, name string) string {
	if original, ok := m.names.Get(sessionID, model, name); ok {
		return original
	}
	return name
}
