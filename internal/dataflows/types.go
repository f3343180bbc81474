package dataflows

import (
	"context"
	"time"
)

// Finding is one piece of live context about a symbol: a headline, a quote
// snapshot or a company fact.
type Finding struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Source looks up live context for a symbol.
type Source interface {
	Name() string
	Search(ctx context.Context, symbol string) ([]Finding, error)
}
