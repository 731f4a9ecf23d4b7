package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
)

// maxChatDepth bounds recursion on hostile component trees.
const maxChatDepth = 32

// formatCode matches legacy section sign color and style codes.
var formatCode = regexp.MustCompile(`§[0-9a-fk-orA-FK-OR]`)

// FlattenChat renders a chat component to text: the text field followed by
// the extra entries, depth first. Plain strings and arrays are accepted at any
// level; colors and styles are dropped. ok is false when raw holds no usable
// description (absent, null or of another JSON type).
func FlattenChat(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}

	switch v.(type) {
	case string, map[string]any, []any:
	default:
		return "", false
	}

	var sb strings.Builder
	flatten(&sb, v, 0)
	return sb.String(), true
}

func flatten(sb *strings.Builder, v any, depth int) {
	if depth > maxChatDepth {
		return
	}

	switch c := v.(type) {
	case string:
		sb.WriteString(c)
	case []any:
		for _, e := range c {
			flatten(sb, e, depth+1)
		}
	case map[string]any:
		if text, ok := c["text"].(string); ok {
			sb.WriteString(text)
		}
		if extra, ok := c["extra"].([]any); ok {
			for _, e := range extra {
				flatten(sb, e, depth+1)
			}
		}
	}
}

// StripFormatting removes section sign formatting codes and surrounding whitespace.
func StripFormatting(s string) string {
	return strings.TrimSpace(formatCode.ReplaceAllString(s, ""))
}
