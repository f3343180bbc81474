package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/MarketPulse/consts"
)

// QuoteRunnable renders the quote prompt from template variables and returns
// the raw model reply.
type QuoteRunnable = compose.Runnable[map[string]any, *schema.Message]

// NewQuoteChain compiles the prompt -> model chain used for one quote request.
func NewQuoteChain(ctx context.Context, tpl prompt.ChatTemplate, chatModel model.ChatModel) (QuoteRunnable, error) {
	if tpl == nil || chatModel == nil {
		return nil, fmt.Errorf("quote chain needs a template and a chat model")
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.
		AppendChatTemplate(tpl, compose.WithNodeName(consts.QuotePromptNode)).
		AppendChatModel(chatModel, compose.WithNodeName(consts.QuoteModelNode))

	r, err := chain.Compile(ctx, compose.WithGraphName(consts.QuoteChainName))
	if err != nil {
		return nil, fmt.Errorf("failed to compile quote chain: %w", err)
	}
	return r, nil
}
