package openrouter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// APIError is a non-success answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("OpenRouter API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("OpenRouter API error (status %d): %s", e.StatusCode, Truncate(e.Body, 200))
}

// errorFromBody builds an APIError from a response body. For a 2xx status
// it returns nil unless the body carries an error envelope.
func errorFromBody(status int, body []byte) *APIError {
	envelope := gjson.GetBytes(body, "error")
	if status >= 200 && status < 300 && !envelope.Exists() {
		return nil
	}

	msg := ""
	switch {
	case envelope.IsObject():
		msg = envelope.Get("message").String()
		if code := envelope.Get("code"); code.Exists() && status == http.StatusOK {
			if n := int(code.Int()); n >= 400 {
				status = n
			}
		}
	case envelope.Type == gjson.String:
		msg = envelope.String()
	}

	return &APIError{StatusCode: status, Message: msg, Body: string(body)}
}

func hasChoices(body []byte) bool {
	return gjson.GetBytes(body, "choices.#").Int() > 0
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
