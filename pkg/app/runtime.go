package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dyike/MarketPulse/config"
)

type EngineBuilder func(config.Config) (*Engine, error)

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

func WithNotifier(fn func(topic, payload string)) Option {
	return func(r *Runtime) {
		r.notify = fn
	}
}

// WithReloadHook registers fn to run after every successful build,
// including the first one.
func WithReloadHook(fn func(*Engine)) Option {
	return func(r *Runtime) {
		if fn != nil {
			r.hooks = append(r.hooks, fn)
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runtime) {
		r.log = logger
	}
}

// Runtime keeps the current Engine and rebuilds it whenever the config file
// changes.
type Runtime struct {
	cfgMgr *config.Manager
	engine atomic.Pointer[Engine]

	builder EngineBuilder
	notify  func(string, string)
	hooks   []func(*Engine)
	log     zerolog.Logger
	cancel  context.CancelFunc
}

func NewRuntime(cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	rt := &Runtime{
		cfgMgr:  cfgMgr,
		builder: BuildEngine,
		log:     log.With().Str("component", "runtime").Logger(),
	}

	for _, opt := range opts {
		opt(rt)
	}

	if err := rt.reload(cfgMgr.Get()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	if err := cfgMgr.Watch(ctx, func(cfg config.Config) {
		if err := rt.reload(cfg); err != nil {
			rt.log.Error().Err(err).Msg("engine reload failed, keeping previous engine")
		}
	}); err != nil {
		cancel()
		return nil, err
	}

	return rt, nil
}

func (r *Runtime) Engine() *Engine {
	return r.engine.Load()
}

// Config returns the live configuration.
func (r *Runtime) Config() config.Config {
	return r.cfgMgr.Get()
}

// Close stops watching the config and releases the current engine.
func (r *Runtime) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	r.release(r.engine.Load())
}

func (r *Runtime) UpdateConfigJSON(jsonStr string) error {
	return r.cfgMgr.UpdateFromJSON(jsonStr)
}

func (r *Runtime) reload(cfg config.Config) error {
	engine, err := r.builder(cfg)
	if err != nil {
		r.notifyFailure(err)
		return err
	}
	prev := r.engine.Swap(engine)
	r.log.Info().Uint64("version", engine.Version).Str("provider", cfg.LLMProvider).Msg("engine built")
	for _, hook := range r.hooks {
		hook(engine)
	}
	r.notifySuccess(engine)
	// hooks have moved callers onto the new engine
	r.release(prev)
	return nil
}

func (r *Runtime) release(engine *Engine) {
	if engine == nil {
		return
	}
	if err := engine.Close(); err != nil {
		r.log.Warn().Err(err).Uint64("version", engine.Version).Msg("close engine")
	}
}

func (r *Runtime) notifySuccess(engine *Engine) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"version":  engine.Version,
		"built_at": engine.BuiltAt.UTC().Format(time.RFC3339),
	})
	r.notify("engine.reloaded", string(payload))
}

func (r *Runtime) notifyFailure(err error) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"error": err.Error(),
	})
	r.notify("engine.reload_failed", string(payload))
}
