package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/rs/zerolog"

	"github.com/dyike/MarketPulse/config"
)

type initFunc func(ctx context.Context) error

// EinoDebugger starts the eino devops server so the quote chain can be
// inspected from the visual debugger.
type EinoDebugger struct {
	config config.Config
	log    zerolog.Logger
	init   initFunc
}

func NewEinoDebugger(cfg config.Config, logger zerolog.Logger) *EinoDebugger {
	return &EinoDebugger{
		config: cfg,
		log:    logger.With().Str("component", "eino_debug").Logger(),
		init:   func(ctx context.Context) error { return devops.Init(ctx) },
	}
}

// Initialize must run before the quote chain is compiled, otherwise the
// chain is not registered with the debugger. The devops server listens on
// its default port; EinoDebugPort only feeds the reported URL.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.config.EinoDebugEnabled {
		return nil
	}

	d.log.Debug().Int("port", d.config.EinoDebugPort).Msg("initializing eino debug plugin")

	if err := d.init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}

	d.log.Info().Str("url", d.GetDebugURL()).Msg("eino debug server ready")
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config.EinoDebugEnabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.config.EinoDebugEnabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.config.EinoDebugPort)
}
