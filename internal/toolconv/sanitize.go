// Package toolconv sanitizes tool/function names and normalizes JSON
// schema quirks the upstream Antigravity endpoint rejects, mirroring
// the teacher's ad hoc gjson/sjson schema surgery in
// sdk/api/handlers/openai/tool_sanitize.go but generalized to every
// inbound family (spec §4.2.2).
package toolconv

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxSanitizedNameLen = 128

// SanitizeName rewrites name so it matches [A-Za-z0-9_-]+, trims
// leading/trailing underscores, falls back to "tool" if the result is
// empty, and truncates to maxSanitizedNameLen.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "tool"
	}
	if len(out) > maxSanitizedNameLen {
		out = out[:maxSanitizedNameLen]
	}
	return out
}

// NormalizeSchema applies the JSON-schema fixups the upstream requires
// for every function declaration's parameters object: forcing
// additionalProperties=false when absent on an object schema, and
// collapsing nullable-union types like ["string","null"] to their
// single non-null type.
func NormalizeSchema(raw []byte) []byte {
	out := raw
	if gjson.GetBytes(out, "type").String() == "object" && !gjson.GetBytes(out, "additionalProperties").Exists() {
		if updated, err := sjson.SetBytes(out, "additionalProperties", false); err == nil {
			out = updated
		}
	}
	return normalizeNullableTypes(out)
}

// normalizeNullableTypes walks every "type" field in the schema and,
// when its value is an array such as ["string","null"], replaces it
// with the first non-null entry — Antigravity does not accept
// array-style nullable type declarations.
func normalizeNullableTypes(raw []byte) []byte {
	jsonStr := string(raw)
	var paths []string
	collectTypePaths(gjson.Parse(jsonStr), "", &paths)

	for _, path := range paths {
		value := gjson.Get(jsonStr, path)
		if !value.IsArray() {
			continue
		}
		var primary string
		for _, item := range value.Array() {
			t := item.String()
			if !strings.EqualFold(t, "null") {
				primary = t
				break
			}
		}
		if primary != "" {
			if updated, err := sjson.Set(jsonStr, path, primary); err == nil {
				jsonStr = updated
			}
		}
	}
	return []byte(jsonStr)
}

func collectTypePaths(value gjson.Result, path string, paths *[]string) {
	if value.Type != gjson.JSON {
		return
	}
	value.ForEach(func(key, val gjson.Result) bool {
		childPath := key.String()
		if path != "" {
			childPath = path + "." + childPath
		}
		if key.String() == "type" {
			*paths = append(*paths, childPath)
		}
		collectTypePaths(val, childPath, paths)
		return true
	})
}
