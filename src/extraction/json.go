package extraction

import (
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*\\n?")
	fenceClose = regexp.MustCompile("\\n?```\\s*$")
)

// StripCodeFence removes a Markdown code fence around the text, if any. Text
// without a leading fence is only trimmed.
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpen.ReplaceAllString(cleaned, "")
		cleaned = fenceClose.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// FirstJSONObject returns the first balanced {...} object in text, skipping
// braces inside JSON strings. ok is false when no complete object exists.
func FirstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := matchObject(text, start); end > start {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchObject(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return i
			}
		}
	}
	return -1
}
