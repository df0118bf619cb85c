package llm

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

const reasoningClose = "</think>"

// StripReasoning returns the text after the last (case-insensitive) closing reasoning marker,
// trimmed. Text without a marker is returned unchanged.
func StripReasoning(text string) string {
	for i := len(text) - len(reasoningClose); i >= 0; i-- {
		if strings.EqualFold(text[i:i+len(reasoningClose)], reasoningClose) {
			return strings.TrimSpace(text[i+len(reasoningClose):])
		}
	}
	return text
}

// ExtractJSONObject returns the substring from the first '{' to the last '}'.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || start >= end {
		return "", false
	}
	return text[start : end+1], true
}

// DecodeJSONObject decodes the first JSON object embedded in free text into T.
// Surrounding commentary is ignored. Failures wrap ErrMalformedResponse.
func DecodeJSONObject[T any](text string) (T, error) {
	var out T
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return out, eris.Wrap(ErrMalformedResponse, "no JSON object in response")
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, eris.Wrapf(ErrMalformedResponse, "decode JSON object: %v", err)
	}
	return out, nil
}
