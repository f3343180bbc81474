package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"

	DefaultSymbol      = "TATAMOTORS"
	DefaultChartPoints = 20
)

type Config struct {
	LLMProvider          string `json:"llm_provider" yaml:"llm_provider"`
	LLMModel             string `json:"llm_model" yaml:"llm_model"`
	LLMBaseURL           string `json:"llm_base_url" yaml:"llm_base_url"`
	LLMAPIKey            string `json:"llm_api_key,omitempty" yaml:"llm_api_key,omitempty"`
	LLMMaxTokens         int    `json:"llm_max_tokens" yaml:"llm_max_tokens"`
	LLMTimeoutSeconds    int    `json:"llm_timeout_seconds" yaml:"llm_timeout_seconds"`
	SearchGrounding      bool   `json:"search_grounding" yaml:"search_grounding"`
	GroundingMaxArticles int    `json:"grounding_max_articles" yaml:"grounding_max_articles"`

	DefaultSymbol          string `json:"default_symbol" yaml:"default_symbol"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds" yaml:"refresh_interval_seconds"`
	ChartPoints            int    `json:"chart_points" yaml:"chart_points"`
	ListenAddr             string `json:"listen_addr" yaml:"listen_addr"`

	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled" yaml:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port" yaml:"eino_debug_port"`

	// Grounding sources
	FinnhubAPIKey       string `json:"finnhub_api_key,omitempty" yaml:"finnhub_api_key,omitempty"`
	LongportAppKey      string `json:"longport_app_key,omitempty" yaml:"longport_app_key,omitempty"`
	LongportAppSecret   string `json:"longport_app_secret,omitempty" yaml:"longport_app_secret,omitempty"`
	LongportAccessToken string `json:"longport_access_token,omitempty" yaml:"longport_access_token,omitempty"`
}

func DefaultConfig() *Config {
	cfg := baseConfig()

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

func baseConfig() *Config {
	return &Config{
		LLMProvider:          ProviderDeepSeek,
		LLMModel:             "deepseek-chat",
		LLMBaseURL:           "",
		LLMMaxTokens:         4096,
		LLMTimeoutSeconds:    90,
		SearchGrounding:      true,
		GroundingMaxArticles: 8,

		DefaultSymbol:          DefaultSymbol,
		RefreshIntervalSeconds: 60,
		ChartPoints:            DefaultChartPoints,
		ListenAddr:             "127.0.0.1:8080",

		Debug:    false,
		LogLevel: "info",

		// Eino Debug defaults
		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("LLM_BASE_URL"); val != "" {
		c.LLMBaseURL = val
	}
	for _, key := range []string{"LLM_API_KEY", "DEEPSEEK_API_KEY", "OPENAI_API_KEY", "API_KEY"} {
		if val := os.Getenv(key); val != "" {
			c.LLMAPIKey = val
			break
		}
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.LLMMaxTokens = v
		}
	}
	if val := os.Getenv("LLM_TIMEOUT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.LLMTimeoutSeconds = v
		}
	}

	if val := os.Getenv("SEARCH_GROUNDING"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.SearchGrounding = enabled
		}
	}
	if val := os.Getenv("GROUNDING_MAX_ARTICLES"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.GroundingMaxArticles = v
		}
	}

	if val := os.Getenv("DEFAULT_SYMBOL"); val != "" {
		c.DefaultSymbol = strings.ToUpper(strings.TrimSpace(val))
	}
	if val := os.Getenv("REFRESH_INTERVAL"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.RefreshIntervalSeconds = v
		}
	}
	if val := os.Getenv("CHART_POINTS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.ChartPoints = v
		}
	}
	if val := os.Getenv("LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}

	if val := os.Getenv("MARKETPULSE_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	if val := os.Getenv("MARKETPULSE_FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}
	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}
}

// FillCredentials copies credentials from the environment (and .env) into
// fields the config file left blank. Keys stay out of the persisted file.
func (c *Config) FillCredentials() {
	_ = godotenv.Load()
	env := baseConfig()
	env.loadFromEnv()

	if c.LLMAPIKey == "" {
		c.LLMAPIKey = env.LLMAPIKey
	}
	if c.FinnhubAPIKey == "" {
		c.FinnhubAPIKey = env.FinnhubAPIKey
	}
	if !c.HasLongport() && env.HasLongport() {
		c.LongportAppKey = env.LongportAppKey
		c.LongportAppSecret = env.LongportAppSecret
		c.LongportAccessToken = env.LongportAccessToken
	}
}

// Validate reports the first invalid setting. A missing API key is not an
// error here: it surfaces when a quote is fetched.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderDeepSeek, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLMProvider)
	}
	if strings.TrimSpace(c.LLMModel) == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.RefreshIntervalSeconds < 1 {
		return fmt.Errorf("refresh interval must be at least 1 second, got %d", c.RefreshIntervalSeconds)
	}
	if c.ChartPoints < 2 || c.ChartPoints > 100 {
		return fmt.Errorf("chart points must be between 2 and 100, got %d", c.ChartPoints)
	}
	if strings.TrimSpace(c.DefaultSymbol) == "" {
		return fmt.Errorf("default symbol is required")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// HasLongport reports whether all three Longport credentials are set.
func (c *Config) HasLongport() bool {
	return c.LongportAppKey != "" && c.LongportAppSecret != "" && c.LongportAccessToken != ""
}
