package llm

import (
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when no balanced JSON object can be located
// in the model output.
var ErrNoJSONObject = errors.New("no JSON object found in model output")

// ExtractJSONObject locates the first syntactically complete JSON object in
// free-form model output. Markdown code fences are stripped first, then the
// text is scanned for the first balanced brace-delimited substring, honoring
// string literals and escapes. The result is not guaranteed to be valid
// JSON; callers still parse it strictly.
func ExtractJSONObject(content string) (string, error) {
	content = stripCodeFence(content)

	start := strings.IndexByte(content, '{')
	if start == -1 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSONObject
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	// Skip past the opening ``` and optional language identifier line.
	start := 3
	if newlineIdx := strings.Index(content[start:], "\n"); newlineIdx != -1 {
		start += newlineIdx + 1
	}

	if endIdx := strings.Index(content[start:], "```"); endIdx != -1 {
		return strings.TrimSpace(content[start : start+endIdx])
	}
	return strings.TrimSpace(content[start:])
}
