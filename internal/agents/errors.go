package agents

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned when a quote is requested without LLM credentials.
var ErrMissingAPIKey = errors.New("llm api key is not configured")

// ModelError wraps failures of the outbound model call, including a chat
// model that could not be created.
type ModelError struct {
	Symbol string
	Err    error
}

func (e *ModelError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("model call failed: %v", e.Err)
	}
	return fmt.Sprintf("model call for %s failed: %v", e.Symbol, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}
