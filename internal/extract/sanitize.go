// Package extract recovers structured data from free-form model text.
//
// Generative models are asked for JSON but routinely wrap it in prose or
// Markdown code fences. The helpers here are deliberately forgiving: they
// never return an error, and callers treat an empty result as "the model
// gave us nothing usable".
package extract

import "strings"

const (
	fenceJSON = "```json"
	fence     = "```"
)

// Sanitize strips ```json / ``` fence markers anywhere in raw and trims the
// surrounding whitespace.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	clean := strings.ReplaceAll(raw, fenceJSON, "")
	clean = strings.ReplaceAll(clean, fence, "")
	return strings.TrimSpace(clean)
}
