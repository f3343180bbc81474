package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/debug"
	"github.com/dyike/MarketPulse/internal/display"
	"github.com/dyike/MarketPulse/internal/httpapi"
	"github.com/dyike/MarketPulse/internal/logging"
	"github.com/dyike/MarketPulse/internal/models"
	"github.com/dyike/MarketPulse/pkg/app"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "marketpulse",
		Short: "MarketPulse - AI-grounded market dashboard",
		Long: `MarketPulse asks a language model, grounded in live search results, for a
structured market snapshot of a ticker and renders it as a dashboard.
Without a subcommand it starts the interactive dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags, "")
		},
	}

	rootCmd.AddCommand(newWatchCmd(flags))
	rootCmd.AddCommand(newQuoteCmd(flags))
	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newConfigCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Configuration file path (.json or .yaml)")

	return rootCmd
}

// newWatchCmd creates the interactive dashboard command
func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [SYMBOL]",
		Short: "Open the interactive dashboard",
		Long: `Open the interactive dashboard, loading SYMBOL or the configured default.
Example: marketpulse watch RELIANCE`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := ""
			if len(args) == 1 {
				symbol = args[0]
			}
			return runWatch(cmd, flags, symbol)
		},
	}
}

// newQuoteCmd creates the one-shot quote command
func newQuoteCmd(flags *globalFlags) *cobra.Command {
	var asJSON, noGrounding bool

	cmd := &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Fetch one market snapshot and print it",
		Long: `Fetch a single market snapshot for SYMBOL.
Example: marketpulse quote AAPL --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if noGrounding {
				cfg.SearchGrounding = false
			}
			logging.Setup(cfg)

			engine, err := app.BuildEngine(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()
			view := display.NewDashboardView(display.WithModelName(cfg.LLMModel), display.WithSources(engine.Sources))
			return runQuote(cmd.Context(), cmd.OutOrStdout(), engine.Agent, view, args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the quote as JSON")
	cmd.Flags().BoolVar(&noGrounding, "no-grounding", false, "Skip live search grounding")
	return cmd
}

// newServeCmd creates the HTTP API command
func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard state over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openApp(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := env.rt.Engine().Config
			if addr == "" {
				addr = cfg.ListenAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := debug.NewEinoDebugger(cfg, env.log).Initialize(ctx); err != nil {
				env.log.Warn().Err(err).Msg("eino debugger unavailable")
			}

			go env.board.Start(ctx)

			srv := httpapi.NewServer(env.board,
				httpapi.WithLogger(env.log.With().Str("component", "httpapi").Logger()),
				httpapi.WithBaseContext(ctx),
			)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to listen_addr from config)")
	return cmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "MarketPulse %s\n", Version)
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(flags *globalFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			showConfig(cmd.OutOrStdout(), mgr.Path(), cfg)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return validateConfig(cmd.OutOrStdout(), cfg)
		},
	})

	return configCmd
}

func runWatch(cmd *cobra.Command, flags *globalFlags, symbol string) error {
	env, err := openApp(flags)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	DisplayWelcomeBanner(out)
	return NewWatchSession(env.board, env.view(), surveyPrompter{}, out).Run(ctx, symbol)
}

// runQuote fetches one quote. Failures print the same message the dashboard
// would show and are returned so the exit code is non-zero.
func runQuote(ctx context.Context, out io.Writer, fetcher dashboard.QuoteFetcher, view *display.DashboardView, symbol string, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	quote, err := fetcher.FetchQuote(ctx, strings.TrimSpace(symbol))
	if err != nil {
		DisplayError(out, fmt.Errorf("%s", dashboard.UserMessage(err)))
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(quote)
	}
	return view.Print(out, models.RequestState{Status: models.StatusSuccess, Symbol: quote.Symbol, Quote: quote}, false)
}

// showConfig displays the current configuration
func showConfig(w io.Writer, path string, cfg config.Config) {
	fmt.Fprintln(w, headerStyle.Render("MarketPulse configuration"))
	fmt.Fprintf(w, "Config File:          %s\n", path)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Fprintf(w, "LLM Model:            %s\n", cfg.LLMModel)
	if cfg.LLMBaseURL != "" {
		fmt.Fprintf(w, "LLM Base URL:         %s\n", cfg.LLMBaseURL)
	}
	fmt.Fprintf(w, "LLM API Key:          %s\n", maskSecret(cfg.LLMAPIKey))
	fmt.Fprintf(w, "LLM Timeout:          %s\n", cfg.LLMTimeout())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Default Symbol:       %s\n", cfg.DefaultSymbol)
	fmt.Fprintf(w, "Refresh Interval:     %s\n", cfg.RefreshInterval())
	fmt.Fprintf(w, "Chart Points:         %d\n", cfg.ChartPoints)
	fmt.Fprintf(w, "Listen Address:       %s\n", cfg.ListenAddr)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Search Grounding:     %t\n", cfg.SearchGrounding)
	fmt.Fprintf(w, "Max Articles:         %d\n", cfg.GroundingMaxArticles)
	fmt.Fprintf(w, "Finnhub API:          %s\n", configured(cfg.FinnhubAPIKey != ""))
	fmt.Fprintf(w, "Longport API:         %s\n", configured(cfg.HasLongport()))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Log Level:            %s\n", logging.Level(cfg))
	fmt.Fprintf(w, "Eino Debug:           %t\n", cfg.EinoDebugEnabled)
	if cfg.EinoDebugEnabled {
		fmt.Fprintf(w, "Debug URL:            http://localhost:%d\n", cfg.EinoDebugPort)
	}
}

// validateConfig validates the configuration and reports missing credentials
func validateConfig(w io.Writer, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		DisplayError(w, err)
		return err
	}

	var warnings []string
	if cfg.LLMAPIKey == "" {
		warnings = append(warnings, "no LLM API key: set LLM_API_KEY (every fetch will fail)")
	}
	if cfg.SearchGrounding && cfg.FinnhubAPIKey == "" {
		warnings = append(warnings, "Finnhub not configured: set MARKETPULSE_FINNHUB_API_KEY for company news")
	}
	if !cfg.SearchGrounding {
		warnings = append(warnings, "search grounding is off: quotes rely on model knowledge only")
	}

	for _, warning := range warnings {
		DisplayWarning(w, warning)
	}
	if len(warnings) == 0 {
		DisplaySuccess(w, "Configuration is valid")
	} else {
		DisplaySuccess(w, fmt.Sprintf("Configuration is valid with %d warning(s)", len(warnings)))
	}
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "not set"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:3] + "..." + s[len(s)-4:]
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
