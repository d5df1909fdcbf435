package remote

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// StatusError is returned for any non-2xx answer from the remote service.
// Message holds the server-provided explanation when one was sent.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Status)
}

// messageFrom extracts a human-readable message from an error body.  JSON
// bodies are searched for message, error and detail keys (error may itself
// be an object with a message); short plain-text bodies are used as is.
func messageFrom(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		return ""
	}
	if strings.HasPrefix(trimmed, "<") || utf8.RuneCountInString(trimmed) > 200 {
		return ""
	}
	return trimmed
}
