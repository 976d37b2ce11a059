package script

import (
	"strings"
	"unicode"
)

const (
	codeFence = "```"
	jsonTag   = "json"
)

// StripCodeFence removes the markdown fence and bare "json" tag models often
// wrap around a JSON reply. Text inside the body is left untouched.
func StripCodeFence(text string) string {
	body := strings.TrimSpace(text)

	if strings.HasPrefix(body, codeFence) {
		newline := strings.IndexByte(body, '\n')
		if newline >= 0 {
			body = body[newline+1:]
		} else {
			body = strings.TrimPrefix(body, codeFence)
		}

		body = strings.TrimSpace(body)
		body = strings.TrimSuffix(body, codeFence)
		body = strings.TrimSpace(body)
	}

	if len(body) >= len(jsonTag) && strings.EqualFold(body[:len(jsonTag)], jsonTag) {
		rest := body[len(jsonTag):]
		if rest != "" && (rest[0] == '{' || unicode.IsSpace(rune(rest[0]))) {
			body = strings.TrimSpace(rest)
		}
	}

	return body
}
