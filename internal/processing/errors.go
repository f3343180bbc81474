package processing

import (
	"errors"
	"fmt"
	"strings"
)

// ExtractionError means no JSON object could be located in the model output.
type ExtractionError struct {
	Length int
}

func (e *ExtractionError) Error() string {
	return "Failed to parse market data from AI response."
}

// ParseError means the located text is not valid JSON.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return "Market data returned by the AI model is not valid JSON."
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError means the JSON decoded but required quote fields are missing.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Market data from the AI model is incomplete (missing: %s).", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsParserError reports whether err carries one of the parser failures.
func IsParserError(err error) bool {
	var extractErr *ExtractionError
	var parseErr *ParseError
	var validationErr *ValidationError
	return errors.As(err, &extractErr) || errors.As(err, &parseErr) || errors.As(err, &validationErr)
}
