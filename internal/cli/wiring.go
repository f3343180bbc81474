package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/display"
	"github.com/dyike/MarketPulse/internal/logging"
	"github.com/dyike/MarketPulse/pkg/app"
)

type globalFlags struct {
	configPath string
	debug      bool
}

// appEnv is the live wiring shared by watch and serve: the config manager,
// the reloadable engine and the dashboard it feeds.
type appEnv struct {
	mgr   *config.Manager
	rt    *app.Runtime
	board *dashboard.Dashboard
	log   zerolog.Logger
}

func loadConfig(flags *globalFlags) (*config.Manager, config.Config, error) {
	var opts []config.ManagerOption
	if flags.configPath != "" {
		opts = append(opts, config.WithConfigPath(flags.configPath))
	}
	mgr, err := config.NewManager(opts...)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return mgr, prepare(mgr.Get(), flags), nil
}

// prepare applies flag overrides and environment credentials.
func prepare(cfg config.Config, flags *globalFlags) config.Config {
	if flags.debug {
		cfg.Debug = true
	}
	cfg.FillCredentials()
	return cfg
}

func openApp(flags *globalFlags) (*appEnv, error) {
	mgr, cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg)

	board := dashboard.NewFromConfig(cfg, nil, dashboard.WithLogger(logger.With().Str("component", "dashboard").Logger()))

	rt, err := app.NewRuntime(mgr,
		app.WithLogger(logger.With().Str("component", "runtime").Logger()),
		app.WithBuilder(func(c config.Config) (*app.Engine, error) {
			return app.BuildEngine(prepare(c, flags))
		}),
		app.WithReloadHook(func(e *app.Engine) {
			board.SetFetcher(e.Agent)
			board.SetRefreshInterval(e.Config.RefreshInterval())
		}),
	)
	if err != nil {
		board.Close()
		return nil, err
	}

	return &appEnv{mgr: mgr, rt: rt, board: board, log: logger}, nil
}

func (e *appEnv) view() *display.DashboardView {
	engine := e.rt.Engine()
	return display.NewDashboardView(
		display.WithModelName(engine.Config.LLMModel),
		display.WithSources(engine.Sources),
	)
}

func (e *appEnv) Close() {
	e.board.Close()
	e.rt.Close()
}
