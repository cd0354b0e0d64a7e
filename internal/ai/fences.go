package ai

import "strings"

// StripFences removes a surrounding markdown code fence (```json ... ```)
// and any <think>...</think> blocks some models emit before it. Text after
// the opening of the payload is never touched.
func StripFences(s string) string {
	s = stripLeadingThink(strings.TrimSpace(s))
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func stripLeadingThink(s string) string {
	for strings.HasPrefix(s, "<think>") {
		end := strings.Index(s, "</think>")
		if end == -1 {
			return ""
		}
		s = strings.TrimSpace(s[end+len("</think>"):])
	}
	return s
}
