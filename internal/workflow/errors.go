package workflow

import "fmt"

// APIError is a non-2xx answer from the workflow engine
type APIError struct {
	StatusCode int
	Message    string // Response body
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("workflow engine error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError is returned when waiting for the executions API limiter fails
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("workflow engine rate limit wait aborted: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Detail returns the engine's response body
func (e *APIError) Detail() string {
	if e.Message == "" {
		return e.Error()
	}
	return e.Message
}
