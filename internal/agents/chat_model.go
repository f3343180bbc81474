package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/MarketPulse/config"
)

// ModelFactory creates the chat model a QuoteAgent talks to.
type ModelFactory func(ctx context.Context, cfg config.Config) (model.ChatModel, error)

// NewChatModel builds a DeepSeek or OpenAI-compatible chat model from config.
func NewChatModel(ctx context.Context, cfg config.Config) (model.ChatModel, error) {
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	switch cfg.LLMProvider {
	case config.ProviderDeepSeek:
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   cfg.LLMTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek model: %w", err)
		}
		return cm, nil

	case config.ProviderOpenAI:
		maxTokens := cfg.LLMMaxTokens
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			MaxTokens: &maxTokens,
			Timeout:   cfg.LLMTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return cm, nil

	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}
