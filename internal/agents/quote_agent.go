package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/dataflows"
	"github.com/dyike/MarketPulse/internal/graph"
	"github.com/dyike/MarketPulse/internal/models"
	"github.com/dyike/MarketPulse/internal/processing"
)

// Grounder supplies live search context for a symbol. An empty result means
// no context was found.
type Grounder interface {
	Ground(ctx context.Context, symbol string) string
}

// Option configures a QuoteAgent.
type Option func(*QuoteAgent)

func WithGrounder(g Grounder) Option {
	return func(a *QuoteAgent) {
		a.grounder = g
	}
}

func WithModelFactory(factory ModelFactory) Option {
	return func(a *QuoteAgent) {
		if factory != nil {
			a.factory = factory
		}
	}
}

func WithParser(p *processing.QuoteParser) Option {
	return func(a *QuoteAgent) {
		if p != nil {
			a.parser = p
		}
	}
}

func WithCallback(handler callbacks.Handler) Option {
	return func(a *QuoteAgent) {
		a.handler = handler
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *QuoteAgent) {
		a.log = logger
	}
}

// QuoteAgent asks the configured chat model for a market snapshot and parses
// the reply into a Quote. The chat model is created on first use, so a
// missing API key only surfaces when a quote is fetched.
type QuoteAgent struct {
	cfg      config.Config
	tpl      prompt.ChatTemplate
	grounder Grounder
	factory  ModelFactory
	parser   *processing.QuoteParser
	handler  callbacks.Handler
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	runnable graph.QuoteRunnable
}

func NewQuoteAgent(cfg config.Config, opts ...Option) *QuoteAgent {
	logger := log.With().Str("component", "agents").Logger()
	a := &QuoteAgent{
		cfg:     cfg,
		tpl:     NewQuoteTemplate(),
		factory: NewChatModel,
		parser:  processing.NewQuoteParser(),
		log:     logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.handler == nil {
		a.handler = graph.NewLoggerCallback(a.log)
	}
	return a
}

// Config returns the configuration the agent was built with.
func (a *QuoteAgent) Config() config.Config {
	return a.cfg
}

// FetchQuote runs one grounded model call for symbol and returns the parsed
// Quote. Model failures are returned as *ModelError; reply problems as the
// parser's own error types.
func (a *QuoteAgent) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if err := dataflows.ValidateSymbol(symbol); err != nil {
		return nil, &ModelError{Symbol: symbol, Err: err}
	}

	runnable, err := a.chain(ctx)
	if err != nil {
		return nil, &ModelError{Symbol: symbol, Err: err}
	}

	// sources carry their own timeouts
	grounding := ""
	if a.cfg.SearchGrounding && a.grounder != nil {
		grounding = a.grounder.Ground(ctx, symbol)
	}

	if timeout := a.cfg.LLMTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := a.now()
	vars := quoteVars(symbol, grounding, a.cfg.ChartPoints, started)
	reply, err := runnable.Invoke(ctx, vars, compose.WithCallbacks(a.handler))
	if err != nil {
		return nil, &ModelError{Symbol: symbol, Err: err}
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return nil, &ModelError{Symbol: symbol, Err: errors.New("empty model reply")}
	}

	quote, err := a.parser.Parse(reply.Content)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Int("reply_bytes", len(reply.Content)).Msg("model reply rejected")
		return nil, fmt.Errorf("parse reply for %s: %w", symbol, err)
	}

	a.log.Info().
		Str("symbol", quote.Symbol).
		Float64("price", quote.Price).
		Bool("grounded", grounding != "").
		Dur("elapsed", a.now().Sub(started)).
		Msg("quote fetched")
	return quote, nil
}

// chain compiles the prompt -> model chain on first use. A failure is not
// cached so a later call can pick up fixed credentials.
func (a *QuoteAgent) chain(ctx context.Context) (graph.QuoteRunnable, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runnable != nil {
		return a.runnable, nil
	}

	chatModel, err := a.factory(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	r, err := graph.NewQuoteChain(ctx, a.tpl, chatModel)
	if err != nil {
		return nil, err
	}
	a.runnable = r
	return r, nil
}
