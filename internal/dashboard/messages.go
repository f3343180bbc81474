package dashboard

import (
	"errors"

	"github.com/dyike/MarketPulse/internal/processing"
)

// FallbackMessage is shown for every failure that is not a parser error.
const FallbackMessage = "Unable to fetch market data. Please check the ticker symbol and try again."

// UserMessage maps a fetch error to the text shown to the user. Parser
// errors carry their own message; everything else collapses to
// FallbackMessage.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var extractErr *processing.ExtractionError
	if errors.As(err, &extractErr) {
		return extractErr.Error()
	}
	var parseErr *processing.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Error()
	}
	var validationErr *processing.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	return FallbackMessage
}
