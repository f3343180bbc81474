package dataflows

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/MarketPulse/config"
)

const defaultSourceTimeout = 8 * time.Second

// Grounder collects live context for a symbol from several sources at once
// and renders it as a plain-text block for the quote prompt. Source failures
// are logged and skipped; grounding never fails a fetch.
type Grounder struct {
	sources  []Source
	timeout  time.Duration
	maxItems int
	log      zerolog.Logger
	now      func() time.Time
}

// GrounderOption configures a Grounder.
type GrounderOption func(*Grounder)

func WithSourceTimeout(d time.Duration) GrounderOption {
	return func(g *Grounder) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithMaxItems(n int) GrounderOption {
	return func(g *Grounder) {
		g.maxItems = n
	}
}

func WithGrounderClock(now func() time.Time) GrounderOption {
	return func(g *Grounder) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGrounder(sources []Source, opts ...GrounderOption) *Grounder {
	g := &Grounder{
		sources: sources,
		timeout: defaultSourceTimeout,
		log:     log.With().Str("component", "grounding").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultSources returns Google News and Yahoo Finance, plus Finnhub and
// Longport when their credentials are configured.
func DefaultSources(cfg config.Config) []Source {
	sources := []Source{
		NewGoogleNewsSource(cfg.GroundingMaxArticles),
		NewYahooSource(nil),
	}
	if cfg.FinnhubAPIKey != "" {
		sources = append(sources, NewFinnhubSource(cfg.FinnhubAPIKey, "", cfg.GroundingMaxArticles))
	}
	if cfg.HasLongport() {
		sources = append(sources, NewLongportSource(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	}
	return sources
}

func NewGrounderFromConfig(cfg config.Config) *Grounder {
	return NewGrounder(DefaultSources(cfg), WithMaxItems(cfg.GroundingMaxArticles*2))
}

// Sources returns the names of the configured sources.
func (g *Grounder) Sources() []string {
	names := make([]string, 0, len(g.sources))
	for _, s := range g.sources {
		names = append(names, s.Name())
	}
	return names
}

// Close releases sources that hold connections.
func (g *Grounder) Close() error {
	var errs []error
	for _, src := range g.sources {
		if c, ok := src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", src.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Collect queries every source concurrently and returns their findings in
// source order.
func (g *Grounder) Collect(ctx context.Context, symbol string) []Finding {
	results := make([][]Finding, len(g.sources))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, src := range g.sources {
		i, src := i, src
		eg.Go(func() error {
			srcCtx, cancel := context.WithTimeout(egCtx, g.timeout)
			defer cancel()

			started := time.Now()
			findings, err := src.Search(srcCtx, symbol)
			if err != nil {
				g.log.Warn().Err(err).Str("source", src.Name()).Str("symbol", symbol).Msg("grounding source failed")
			}
			g.log.Debug().Str("source", src.Name()).Int("findings", len(findings)).Dur("elapsed", time.Since(started)).Msg("grounding source done")
			results[i] = findings
			return nil
		})
	}
	_ = eg.Wait()

	var all []Finding
	for _, findings := range results {
		all = append(all, findings...)
	}
	if g.maxItems > 0 && len(all) > g.maxItems {
		all = all[:g.maxItems]
	}
	return all
}

// Ground returns the rendered search results for symbol, or "" when no source
// found anything.
func (g *Grounder) Ground(ctx context.Context, symbol string) string {
	return Render(g.Collect(ctx, symbol), g.now())
}

// Render formats findings as a numbered list.
func Render(findings []Finding, now time.Time) string {
	if len(findings) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, f := range findings {
		fmt.Fprintf(&sb, "%d. [%s] %s", i+1, f.Source, f.Title)
		var meta []string
		if f.Publisher != "" {
			meta = append(meta, f.Publisher)
		}
		if ago := TimeAgo(f.PublishedAt, now); ago != "" {
			meta = append(meta, ago)
		}
		if len(meta) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(meta, ", "))
		}
		sb.WriteString("\n")
		if f.Summary != "" {
			fmt.Fprintf(&sb, "   %s\n", f.Summary)
		}
		if f.URL != "" {
			fmt.Fprintf(&sb, "   %s\n", f.URL)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
