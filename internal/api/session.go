package api

import "github.com/tidwall/gjson"

// firstUserText extracts the first user-authored text from a raw
// client request body so the session id can be derived deterministically
// per spec §3. messagesPath names where the family's message array
// lives; each message's text is read from its "content" field.
func firstUserText(raw []byte, messagesPath string) string {
	messages := gjson.GetBytes(raw, messagesPath)
	if !messages.IsArray() {
		return ""
	}
	var found string
	messages.ForEach(func(_, msg gjson.Result) bool {
		if msg.Get("role").String() != "user" {
			return true
		}
		found = extractText(msg.Get("content"))
		return found == ""
	})
	return found
}

// firstGeminiUserText mirrors firstUserText for Gemini's contents[] /
// parts[].text shape, whose role marker is the same "user" value.
func firstGeminiUserText(raw []byte) string {
	contents := gjson.GetBytes(raw, "contents")
	if !contents.IsArray() {
		return ""
	}
	var found string
	contents.ForEach(func(_, turn gjson.Result) bool {
		if turn.Get("role").String() != "user" {
			return true
		}
		turn.Get("parts").ForEach(func(_, part gjson.Result) bool {
			if t := part.Get("text").String(); t != "" {
				found = t
				return false
			}
			return true
		})
		return found == ""
	})
	return found
}

// extractText pulls plain text out of a content field that may be a
// bare string or an array of typed content blocks (OpenAI/Anthropic
// shape).
func extractText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var found string
		content.ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "text" {
				found = block.Get("text").String()
				return false
			}
			return true
		})
		return found
	}
	return ""
}
