package agents

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/utils"
)

const quoteRequest = `Return the JSON object for "{{.upper}}" now.`

// NewQuoteTemplate returns the chat template for a quote request. It uses Go
// template syntax so the JSON shape in the prompt needs no escaping.
func NewQuoteTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(utils.MustLoadPrompt("quote")),
		schema.UserMessage(quoteRequest),
	)
}

func quoteVars(symbol, grounding string, chartPoints int, now time.Time) map[string]any {
	symbol = strings.TrimSpace(symbol)
	if chartPoints <= 0 {
		chartPoints = config.DefaultChartPoints
	}
	return map[string]any{
		"symbol":       symbol,
		"upper":        strings.ToUpper(symbol),
		"chart_points": chartPoints,
		"grounding":    strings.TrimSpace(grounding),
		"current_date": now.Format("2006-01-02"),
	}
}

// BuildQuoteMessages renders the prompt sent to the model for symbol, with
// grounding embedded as search context when non-empty.
func BuildQuoteMessages(ctx context.Context, symbol, grounding string) ([]*schema.Message, error) {
	return NewQuoteTemplate().Format(ctx, quoteVars(symbol, grounding, config.DefaultChartPoints, time.Now()))
}
