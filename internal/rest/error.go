package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError carries the backend's status code and raw body. Call sites own the
// mapping from status code to a user-facing message; there is no shared
// taxonomy.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status code=%d with body=%s", e.StatusCode, e.Body)
}

func AsAPIError(err error) (*APIError, bool) {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Message extracts a single human-readable message from the error body,
// falling back to a generic text when the body is not one of the known shapes.
func (e *APIError) Message() string {
	body := map[string]json.RawMessage{}
	if err := json.Unmarshal(e.Body, &body); err == nil {
		for _, key := range []string{"message", "error", "detail", "title"} {
			var msg string
			if raw, ok := body[key]; ok && json.Unmarshal(raw, &msg) == nil && msg != "" {
				return msg
			}
		}
	}
	var messages []string
	if err := json.Unmarshal(e.Body, &messages); err == nil && len(messages) > 0 {
		return strings.Join(messages, "; ")
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// FieldErrors decodes the server's validation error body into a field-keyed
// map. The ordering API is not consistent about the shape; three conventions
// are in the wild:
//
//   - {"errors": {"city": ["City is required"]}} or {"city": "City is required"}
//   - {"errors": ["City is required", ...]} or a bare array of strings
//   - {"message": "City is required"}
func (e *APIError) FieldErrors() map[string]string {
	fields := map[string]string{}

	var payload any
	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return fields
	}
	if inner, ok := payload.(map[string]any); ok {
		if nested, ok := inner["errors"]; ok {
			payload = nested
		}
	}

	switch shape := payload.(type) {
	case map[string]any:
		for field, raw := range shape {
			switch value := raw.(type) {
			case string:
				fields[field] = value
			case []any:
				messages := make([]string, 0, len(value))
				for _, m := range value {
					if s, ok := m.(string); ok {
						messages = append(messages, s)
					}
				}
				if len(messages) > 0 {
					fields[field] = strings.Join(messages, "; ")
				}
			}
		}
	case []any:
		for _, raw := range shape {
			if s, ok := raw.(string); ok {
				fields[fieldFromMessage(s)] = s
			}
		}
	}
	return fields
}

// fieldFromMessage guesses the offending field from messages like
// "City is required" so array-of-strings bodies still yield field-level rows.
func fieldFromMessage(message string) string {
	first, _, found := strings.Cut(message, " ")
	if !found {
		return message
	}
	return strings.ToLower(first)
}
