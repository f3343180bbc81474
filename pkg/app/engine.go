package app

import (
	"sync/atomic"
	"time"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/agents"
	"github.com/dyike/MarketPulse/internal/dataflows"
)

// Engine is one immutable build of the quote pipeline for a config.
type Engine struct {
	Config  config.Config
	Agent   *agents.QuoteAgent
	Sources []string
	BuiltAt time.Time
	Version uint64

	grounder *dataflows.Grounder
}

// Close releases the engine's grounding connections.
func (e *Engine) Close() error {
	if e == nil || e.grounder == nil {
		return nil
	}
	return e.grounder.Close()
}

var engineSeq atomic.Uint64

func BuildEngine(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []agents.Option
	var sources []string
	var grounder *dataflows.Grounder
	if cfg.SearchGrounding {
		grounder = dataflows.NewGrounderFromConfig(cfg)
		sources = grounder.Sources()
		opts = append(opts, agents.WithGrounder(grounder))
	}

	return &Engine{
		Config:   cfg,
		Agent:    agents.NewQuoteAgent(cfg, opts...),
		Sources:  sources,
		BuiltAt:  time.Now(),
		Version:  engineSeq.Add(1),
		grounder: grounder,
	}, nil
}
