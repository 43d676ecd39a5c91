package pipeline

import "strings"

// ExtractJSON recovers the JSON payload a model wrapped in prose. It takes
// the span from the first '{' to the last '}' inclusive; when no such span
// exists it returns the trimmed input unchanged. This is a deliberate
// heuristic, not a balanced-brace parser: models reliably emit exactly one
// object surrounded by chatter, and the caller still has to parse the result.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
