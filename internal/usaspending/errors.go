package usaspending

import (
	"fmt"
)

const bodySnippetLen = 512

// ValidationError is a 400/422 response from the upstream API. These are
// never retried: the request itself is malformed and retrying cannot help.
// Truncated request and response bodies are carried for diagnosis.
type ValidationError struct {
	Endpoint     string
	StatusCode   int
	RequestBody  string
	ResponseBody string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("usaspending: validation error %d on %s: request=%q response=%q",
		e.StatusCode, e.Endpoint, e.RequestBody, e.ResponseBody)
}

// TransientError is a server-side or transport failure that survived the
// full retry budget.
type TransientError struct {
	Endpoint   string
	Attempts   int
	LastStatus int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("usaspending: %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
	}
	return fmt.Sprintf("usaspending: %s failed after %d attempts (last status %d)", e.Endpoint, e.Attempts, e.LastStatus)
}

func (e *TransientError) Unwrap() error { return e.Err }

func snippet(b []byte) string {
	if len(b) > bodySnippetLen {
		return string(b[:bodySnippetLen]) + "..."
	}
	return string(b)
}
