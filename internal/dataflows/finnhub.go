package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/MarketPulse/consts"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubSource reads company news from the Finnhub API.
type FinnhubSource struct {
	client     *resty.Client
	apiKey     string
	lookback   time.Duration
	maxResults int
	retry      *RetryConfig
	now        func() time.Time
}

// FinnhubNews represents news from Finnhub API
type FinnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// NewFinnhubSource creates a source against baseURL; an empty baseURL uses
// the public API.
func NewFinnhubSource(apiKey, baseURL string, maxResults int) *FinnhubSource {
	if baseURL == "" {
		baseURL = finnhubBaseURL
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(15 * time.Second)

	return &FinnhubSource{
		client:     client,
		apiKey:     apiKey,
		lookback:   72 * time.Hour,
		maxResults: maxResults,
		retry:      DefaultRetryConfig(),
		now:        time.Now,
	}
}

func (s *FinnhubSource) Name() string {
	return consts.Source_Finnhub
}

func (s *FinnhubSource) Search(ctx context.Context, symbol string) ([]Finding, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("finnhub API key not configured")
	}
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	to := s.now()
	from := to.Add(-s.lookback)

	var news []FinnhubNews
	err := WithRetry(ctx, s.retry, func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol": symbol,
				"from":   from.Format("2006-01-02"),
				"to":     to.Format("2006-01-02"),
				"token":  s.apiKey,
			}).
			Get("/company-news")
		if err != nil {
			return fmt.Errorf("failed to fetch company news: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("finnhub API error %d: %s", resp.StatusCode(), resp.String())
		}
		if err := json.Unmarshal(resp.Body(), &news); err != nil {
			return fmt.Errorf("failed to parse finnhub response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(news, func(i, j int) bool {
		return news[i].DateTime > news[j].DateTime
	})

	findings := make([]Finding, 0, len(news))
	for _, item := range news {
		if s.maxResults > 0 && len(findings) >= s.maxResults {
			break
		}
		findings = append(findings, Finding{
			Source:      consts.Source_Finnhub,
			Title:       strings.TrimSpace(item.Headline),
			Summary:     strings.TrimSpace(item.Summary),
			Publisher:   item.Source,
			URL:         item.URL,
			PublishedAt: time.Unix(item.DateTime, 0),
		})
	}
	return findings, nil
}
