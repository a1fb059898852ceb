package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoChoices is returned when a chat completion carries no choices.
	ErrNoChoices = errors.New("llm: no choices in response")

	// ErrMaxRetries wraps the last error once all retries are spent.
	ErrMaxRetries = errors.New("llm: max retries exceeded")

	// ErrNoJSON is returned by ExtractJSON when the text holds no object.
	ErrNoJSON = errors.New("llm: no JSON object found in response")
)

// APIError is a non-200 answer from a provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error %d: %s", e.StatusCode, e.Body)
}
