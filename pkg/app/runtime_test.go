package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/dataflows"
)

func newManager(t *testing.T) *config.Manager {
	t.Helper()
	mgr, err := config.NewManager(config.WithConfigDir(t.TempDir()), config.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	return mgr
}

func TestBuildEngine(t *testing.T) {
	cfg := *config.DefaultConfig()
	cfg.SearchGrounding = true
	cfg.FinnhubAPIKey = ""
	cfg.LongportAppKey = ""

	engine, err := BuildEngine(cfg)
	require.NoError(t, err)
	require.NotNil(t, engine.Agent)
	assert.Equal(t, []string{"google_news", "yahoo_finance"}, engine.Sources)

	cfg.SearchGrounding = false
	next, err := BuildEngine(cfg)
	require.NoError(t, err)
	assert.Empty(t, next.Sources)
	assert.Greater(t, next.Version, engine.Version)
}

func TestBuildEngineRejectsInvalidConfig(t *testing.T) {
	cfg := *config.DefaultConfig()
	cfg.LLMProvider = "nope"
	_, err := BuildEngine(cfg)
	assert.Error(t, err)
}

func TestRuntimeReloadRunsHooks(t *testing.T) {
	mgr := newManager(t)

	var mu sync.Mutex
	var symbols []string
	var topics []string
	rt, err := NewRuntime(mgr,
		WithLogger(zerolog.Nop()),
		WithReloadHook(func(e *Engine) {
			mu.Lock()
			defer mu.Unlock()
			symbols = append(symbols, e.Config.DefaultSymbol)
		}),
		WithNotifier(func(topic, _ string) {
			mu.Lock()
			defer mu.Unlock()
			topics = append(topics, topic)
		}),
	)
	require.NoError(t, err)
	defer rt.Close()

	first := rt.Engine()
	require.NotNil(t, first)

	cfg := rt.Config()
	cfg.DefaultSymbol = "NVDA"
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, rt.UpdateConfigJSON(string(data)))

	assert.Equal(t, "NVDA", rt.Engine().Config.DefaultSymbol)
	assert.NotSame(t, first, rt.Engine())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "NVDA", symbols[len(symbols)-1])
	assert.GreaterOrEqual(t, len(symbols), 2)
	assert.Contains(t, topics, "engine.reloaded")
}

func TestRuntimeKeepsEngineOnBuildFailure(t *testing.T) {
	mgr := newManager(t)

	fail := false
	builds := 0
	rt, err := NewRuntime(mgr,
		WithLogger(zerolog.Nop()),
		WithBuilder(func(cfg config.Config) (*Engine, error) {
			builds++
			if fail {
				return nil, errors.New("boom")
			}
			return &Engine{Config: cfg, Version: uint64(builds)}, nil
		}),
	)
	require.NoError(t, err)
	defer rt.Close()

	fail = true
	cfg := rt.Config()
	cfg.DefaultSymbol = "MSFT"
	require.NoError(t, mgr.Update(cfg))

	assert.Equal(t, uint64(1), rt.Engine().Version)
	assert.Equal(t, 2, builds)
}

func TestNewRuntimeRequiresManager(t *testing.T) {
	_, err := NewRuntime(nil)
	assert.Error(t, err)
}

type heldSource struct {
	mu     sync.Mutex
	closed int
}

func (h *heldSource) Name() string { return "held" }

func (h *heldSource) Search(context.Context, string) ([]dataflows.Finding, error) {
	return nil, nil
}

func (h *heldSource) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *heldSource) closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func TestRuntimeClosesReplacedEngine(t *testing.T) {
	mgr := newManager(t)

	var mu sync.Mutex
	var held []*heldSource
	rt, err := NewRuntime(mgr,
		WithLogger(zerolog.Nop()),
		WithBuilder(func(cfg config.Config) (*Engine, error) {
			src := &heldSource{}
			mu.Lock()
			held = append(held, src)
			mu.Unlock()
			return &Engine{Config: cfg, grounder: dataflows.NewGrounder([]dataflows.Source{src})}, nil
		}),
	)
	require.NoError(t, err)

	cfg := rt.Config()
	cfg.DefaultSymbol = "AMZN"
	require.NoError(t, mgr.Update(cfg))

	mu.Lock()
	require.Len(t, held, 2)
	first, second := held[0], held[1]
	mu.Unlock()
	assert.Equal(t, 1, first.closes())
	assert.Zero(t, second.closes())

	rt.Close()
	assert.Equal(t, 1, second.closes())
	assert.Equal(t, 1, first.closes())
}

func TestEngineCloseWithoutGrounding(t *testing.T) {
	cfg := *config.DefaultConfig()
	cfg.SearchGrounding = false
	engine, err := BuildEngine(cfg)
	require.NoError(t, err)
	assert.NoError(t, engine.Close())

	var none *Engine
	assert.NoError(t, none.Close())
}
