package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/MarketPulse/consts"
)

// LongportSource reads security facts and the latest daily candles from the
// Longport quote API. The quote context is opened on first use and held
// until Close.
type LongportSource struct {
	appKey      string
	appSecret   string
	accessToken string

	// open dials the quote context; swapped in tests.
	open func(*lpconfig.Config) (longportQuoter, error)

	mu       sync.Mutex
	quoteCtx longportQuoter
	closed   bool
}

// longportQuoter is the part of quote.QuoteContext a search uses.
type longportQuoter interface {
	StaticInfo(ctx context.Context, symbols []string) ([]*quote.StaticInfo, error)
	Candlesticks(ctx context.Context, symbol string, period quote.Period, count int32, adjustType quote.AdjustType) ([]*quote.Candlestick, error)
	Close() error
}

var errLongportClosed = errors.New("longport source closed")

func NewLongportSource(appKey, appSecret, accessToken string) *LongportSource {
	return &LongportSource{
		appKey:      appKey,
		appSecret:   appSecret,
		accessToken: accessToken,
		open: func(conf *lpconfig.Config) (longportQuoter, error) {
			return quote.NewFromCfg(conf)
		},
	}
}

func (s *LongportSource) Name() string {
	return consts.Source_Longport
}

// client returns the open quote context, dialing it if needed. A failed dial
// is not remembered so the next search retries.
func (s *LongportSource) client() (longportQuoter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errLongportClosed
	}
	if s.quoteCtx != nil {
		return s.quoteCtx, nil
	}
	if s.appKey == "" || s.appSecret == "" || s.accessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}
	conf, err := lpconfig.New(lpconfig.WithConfigKey(s.appKey, s.appSecret, s.accessToken))
	if err != nil {
		return nil, err
	}
	qc, err := s.open(conf)
	if err != nil {
		return nil, fmt.Errorf("open longport quote context: %w", err)
	}
	s.quoteCtx = qc
	return qc, nil
}

// Close releases the quote connection. Later searches fail.
func (s *LongportSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.quoteCtx == nil {
		return nil
	}
	err := s.quoteCtx.Close()
	s.quoteCtx = nil
	return err
}

// LongportSymbol maps a bare ticker to Longport's market-qualified form.
func LongportSymbol(symbol string) string {
	symbol = NormalizeSymbol(symbol)
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".US"
}

func (s *LongportSource) Search(ctx context.Context, symbol string) ([]Finding, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	qc, err := s.client()
	if err != nil {
		return nil, err
	}
	lpSymbol := LongportSymbol(symbol)

	var findings []Finding
	infos, err := qc.StaticInfo(ctx, []string{lpSymbol})
	if err != nil {
		return nil, fmt.Errorf("longport static info for %s: %w", lpSymbol, err)
	}
	for _, info := range infos {
		if info == nil {
			continue
		}
		findings = append(findings, Finding{
			Source:    consts.Source_Longport,
			Title:     fmt.Sprintf("%s (%s) listing", info.NameEn, info.Symbol),
			Summary:   fmt.Sprintf("exchange %s, currency %s, lot size %d", info.Exchange, info.Currency, info.LotSize),
			Publisher: "Longport",
		})
	}

	sticks, err := qc.Candlesticks(ctx, lpSymbol, quote.PeriodDay, 2, quote.AdjustTypeNo)
	if err != nil {
		return findings, fmt.Errorf("longport candlesticks for %s: %w", lpSymbol, err)
	}
	if f, ok := candleFinding(lpSymbol, sticks); ok {
		findings = append(findings, f)
	}
	return findings, nil
}

func candleFinding(symbol string, sticks []*quote.Candlestick) (Finding, bool) {
	if len(sticks) == 0 || sticks[len(sticks)-1] == nil {
		return Finding{}, false
	}
	last := sticks[len(sticks)-1]
	summary := fmt.Sprintf("open %s, high %s, low %s, close %s, volume %d",
		fixed(last.Open), fixed(last.High), fixed(last.Low), fixed(last.Close), last.Volume)
	if len(sticks) > 1 && sticks[0] != nil && sticks[0].Close != nil && last.Close != nil && !sticks[0].Close.IsZero() {
		change := last.Close.Sub(*sticks[0].Close)
		pct := change.Div(*sticks[0].Close).Mul(decimal.NewFromInt(100))
		summary += fmt.Sprintf(", change %s (%s%%)", change.StringFixed(2), pct.StringFixed(2))
	}
	return Finding{
		Source:      consts.Source_Longport,
		Title:       fmt.Sprintf("%s daily candle", symbol),
		Summary:     summary,
		Publisher:   "Longport",
		PublishedAt: time.Unix(last.Timestamp, 0),
	}, true
}

func fixed(d *decimal.Decimal) string {
	if d == nil {
		return "n/a"
	}
	return d.StringFixed(2)
}
