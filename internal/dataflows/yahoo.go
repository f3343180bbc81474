package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/MarketPulse/consts"
)

// QuoteGetter fetches a Yahoo Finance quote; quote.Get satisfies it.
type QuoteGetter func(symbol string) (*finance.Quote, error)

// YahooSource reports the last Yahoo Finance quote snapshot for a symbol.
// Bare symbols that Yahoo does not know are retried on NSE (".NS").
type YahooSource struct {
	get   QuoteGetter
	retry *RetryConfig
	now   func() time.Time
}

func NewYahooSource(get QuoteGetter) *YahooSource {
	if get == nil {
		get = quote.Get
	}
	return &YahooSource{
		get:   get,
		retry: DefaultRetryConfig(),
		now:   time.Now,
	}
}

func (s *YahooSource) Name() string {
	return consts.Source_Yahoo
}

func (s *YahooSource) Search(ctx context.Context, symbol string) ([]Finding, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	candidates := []string{symbol}
	if !strings.Contains(symbol, ".") {
		candidates = append(candidates, symbol+".NS")
	}

	for _, candidate := range candidates {
		var q *finance.Quote
		err := WithRetry(ctx, s.retry, func() error {
			var err error
			q, err = s.get(candidate)
			if err != nil {
				return fmt.Errorf("failed to get quote for %s: %w", candidate, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if q != nil && q.RegularMarketPrice > 0 {
			return []Finding{s.snapshot(q)}, nil
		}
	}
	return nil, nil
}

func (s *YahooSource) snapshot(q *finance.Quote) Finding {
	name := q.ShortName
	if name == "" {
		name = q.Symbol
	}

	price := decimal.NewFromFloat(q.RegularMarketPrice).StringFixed(2)
	change := decimal.NewFromFloat(q.RegularMarketChange).StringFixed(2)
	changePct := decimal.NewFromFloat(q.RegularMarketChangePercent).StringFixed(2)

	summary := fmt.Sprintf("price %s %s, change %s (%s%%), open %s, high %s, low %s, previous close %s, volume %d, exchange %s, market state %s",
		price, q.CurrencyID, change, changePct,
		decimal.NewFromFloat(q.RegularMarketOpen).StringFixed(2),
		decimal.NewFromFloat(q.RegularMarketDayHigh).StringFixed(2),
		decimal.NewFromFloat(q.RegularMarketDayLow).StringFixed(2),
		decimal.NewFromFloat(q.RegularMarketPreviousClose).StringFixed(2),
		q.RegularMarketVolume, q.FullExchangeName, q.MarketState,
	)

	return Finding{
		Source:      consts.Source_Yahoo,
		Title:       fmt.Sprintf("%s (%s) quote", name, q.Symbol),
		Summary:     summary,
		Publisher:   "Yahoo Finance",
		PublishedAt: s.now(),
	}
}
