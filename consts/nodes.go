package consts

const (
	// quote chain nodes
	QuotePromptNode = "quote_prompt"
	QuoteModelNode  = "quote_model"

	QuoteChainName = "market_quote"
)
