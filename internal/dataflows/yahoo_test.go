package dataflows

import (
	"context"
	"errors"
	"testing"

	finance "github.com/piquette/finance-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYahooSourceFallsBackToNSE(t *testing.T) {
	var asked []string
	src := NewYahooSource(func(symbol string) (*finance.Quote, error) {
		asked = append(asked, symbol)
		if symbol != "TATAMOTORS.NS" {
			return nil, nil
		}
		return &finance.Quote{
			Symbol:             "TATAMOTORS.NS",
			ShortName:          "TATA MOTORS LTD",
			CurrencyID:         "INR",
			RegularMarketPrice: 981.456,
			RegularMarketOpen:  975,
		}, nil
	})
	src.retry = &RetryConfig{MaxRetries: 0}

	findings, err := src.Search(context.Background(), "tatamotors")
	require.NoError(t, err)
	assert.Equal(t, []string{"TATAMOTORS", "TATAMOTORS.NS"}, asked)
	require.Len(t, findings, 1)
	assert.Equal(t, "TATA MOTORS LTD (TATAMOTORS.NS) quote", findings[0].Title)
	assert.Contains(t, findings[0].Summary, "price 981.46 INR")
	assert.Contains(t, findings[0].Summary, "open 975.00")
}

func TestYahooSourcePropagatesErrors(t *testing.T) {
	src := NewYahooSource(func(string) (*finance.Quote, error) {
		return nil, errors.New("rate limited")
	})
	src.retry = &RetryConfig{MaxRetries: 0}

	_, err := src.Search(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "rate limited")
}

func TestYahooSourceTitleFallsBackToSymbol(t *testing.T) {
	src := NewYahooSource(func(symbol string) (*finance.Quote, error) {
		return &finance.Quote{Symbol: symbol, CurrencyID: "USD", RegularMarketPrice: 10}, nil
	})
	src.retry = &RetryConfig{MaxRetries: 0}

	findings, err := src.Search(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "AAPL (AAPL) quote", findings[0].Title)
}
