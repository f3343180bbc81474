package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/MarketPulse/consts"
)

const googleNewsRSSURL = "https://news.google.com/rss"

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	PubDate     string    `xml:"pubDate"`
	Source      rssSource `xml:"source"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// GoogleNewsSource searches the Google News RSS feed for recent stock news.
type GoogleNewsSource struct {
	client     *resty.Client
	baseURL    string
	language   string
	country    string
	maxResults int
	retry      *RetryConfig
}

type GoogleNewsOption func(*GoogleNewsSource)

// WithGoogleNewsBaseURL points the source at another feed root.
func WithGoogleNewsBaseURL(base string) GoogleNewsOption {
	return func(s *GoogleNewsSource) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

func WithGoogleNewsRetry(cfg *RetryConfig) GoogleNewsOption {
	return func(s *GoogleNewsSource) {
		s.retry = cfg
	}
}

func NewGoogleNewsSource(maxResults int, opts ...GoogleNewsOption) *GoogleNewsSource {
	client := resty.New()
	client.SetTimeout(15 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; MarketPulse/1.0)")

	s := &GoogleNewsSource{
		client:     client,
		baseURL:    googleNewsRSSURL,
		language:   "en",
		country:    "US",
		maxResults: maxResults,
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GoogleNewsSource) Name() string {
	return consts.Source_GoogleNews
}

func (s *GoogleNewsSource) Search(ctx context.Context, symbol string) ([]Finding, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	rssURL := s.searchURL(NormalizeSymbol(symbol) + " stock")

	var feed rssFeed
	err := WithRetry(ctx, s.retry, func() error {
		resp, err := s.client.R().SetContext(ctx).Get(rssURL)
		if err != nil {
			return fmt.Errorf("failed to fetch RSS feed: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("HTTP error %d when fetching RSS feed", resp.StatusCode())
		}
		if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
			return fmt.Errorf("failed to parse RSS XML: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if s.maxResults > 0 && len(findings) >= s.maxResults {
			break
		}
		findings = append(findings, s.convertItem(item))
	}
	return findings, nil
}

func (s *GoogleNewsSource) searchURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", s.language)
	v.Set("gl", s.country)
	v.Set("ceid", fmt.Sprintf("%s:%s", s.country, strings.Split(s.language, "-")[0]))
	return s.baseURL + "/search?" + v.Encode()
}

func (s *GoogleNewsSource) convertItem(item rssItem) Finding {
	pubTime, err := time.Parse(time.RFC1123Z, item.PubDate)
	if err != nil {
		pubTime, _ = time.Parse(time.RFC1123, item.PubDate)
	}

	publisher := strings.TrimSpace(item.Source.Text)
	if publisher == "" && item.Source.URL != "" {
		if u, err := url.Parse(item.Source.URL); err == nil {
			publisher = u.Host
		}
	}

	title := strings.TrimSpace(item.Title)
	// Google appends " - Publisher" to every headline
	if publisher != "" {
		title = strings.TrimSuffix(title, " - "+publisher)
	}

	summary := cleanHTMLContent(item.Description)
	if strings.HasPrefix(summary, title) {
		summary = ""
	}

	return Finding{
		Source:      consts.Source_GoogleNews,
		Title:       title,
		Summary:     summary,
		Publisher:   publisher,
		URL:         item.Link,
		PublishedAt: pubTime,
	}
}

// cleanHTMLContent extracts the text of an HTML fragment.
func cleanHTMLContent(htmlContent string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return strings.TrimSpace(htmlContent)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
