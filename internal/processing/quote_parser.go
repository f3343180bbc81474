package processing

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dyike/MarketPulse/internal/models"
)

// LastUpdatedLayout formats the locally stamped refresh time.
const LastUpdatedLayout = "15:04:05"

const snippetLimit = 120

// QuoteParser turns raw model output into a validated Quote.
type QuoteParser struct {
	now      func() time.Time
	validate *validator.Validate
}

// ParserOption configures a QuoteParser.
type ParserOption func(*QuoteParser)

// WithClock overrides the clock used for LastUpdated.
func WithClock(now func() time.Time) ParserOption {
	return func(p *QuoteParser) {
		if now != nil {
			p.now = now
		}
	}
}

// rawQuote mirrors models.Quote with pointers so absent fields can be told
// apart from zero values.
type rawQuote struct {
	Symbol        *string         `json:"symbol" validate:"required,min=1"`
	CompanyName   *string         `json:"companyName" validate:"required"`
	Price         *float64        `json:"price" validate:"required"`
	Currency      *string         `json:"currency" validate:"required"`
	Change        *float64        `json:"change" validate:"required"`
	ChangePercent *float64        `json:"changePercent" validate:"required"`
	MarketCap     *string         `json:"marketCap" validate:"required"`
	Volume        *string         `json:"volume" validate:"required"`
	High          *float64        `json:"high" validate:"required"`
	Low           *float64        `json:"low" validate:"required"`
	Open          *float64        `json:"open" validate:"required"`
	Analysis      *string         `json:"analysis" validate:"required"`
	ChartData     []rawChartPoint `json:"chartData" validate:"required,dive"`
	News          []rawNewsItem   `json:"news" validate:"required,dive"`
}

type rawChartPoint struct {
	Time  *string  `json:"time" validate:"required"`
	Price *float64 `json:"price" validate:"required"`
}

type rawNewsItem struct {
	Title   *string `json:"title" validate:"required"`
	Source  *string `json:"source" validate:"required"`
	URL     string  `json:"url"`
	TimeAgo string  `json:"timeAgo"`
}

// NewQuoteParser creates a parser with a validator keyed on JSON field names.
func NewQuoteParser(opts ...ParserOption) *QuoteParser {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	p := &QuoteParser{
		now:      time.Now,
		validate: v,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewQuoteParser()

// ParseQuote parses model output with the default parser.
func ParseQuote(raw string) (*models.Quote, error) {
	return defaultParser.Parse(raw)
}

// Parse strips a code fence, locates the JSON object, decodes and validates it,
// then stamps LastUpdated.
func (p *QuoteParser) Parse(raw string) (*models.Quote, error) {
	body, err := ExtractJSON(StripFence(raw))
	if err != nil {
		return nil, err
	}

	var rq rawQuote
	if err := json.Unmarshal([]byte(body), &rq); err != nil {
		return nil, &ParseError{Snippet: snippet(body), Err: err}
	}

	if err := p.validate.Struct(&rq); err != nil {
		return nil, &ValidationError{Fields: missingFields(err), Err: err}
	}

	quote := rq.toQuote()
	quote.LastUpdated = p.now().Format(LastUpdatedLayout)
	return quote, nil
}

// StripFence removes a leading ``` or ```json marker and a trailing ``` marker,
// trimming surrounding whitespace. It strips to a fixed point, so applying it
// twice gives the same result as once.
func StripFence(text string) string {
	cleaned := strings.TrimSpace(text)
	for {
		next := stripFenceOnce(cleaned)
		if next == cleaned {
			return cleaned
		}
		cleaned = next
	}
}

func stripFenceOnce(text string) string {
	switch {
	case strings.HasPrefix(text, "```json"):
		text = strings.TrimPrefix(text, "```json")
	case strings.HasPrefix(text, "```"):
		text = strings.TrimPrefix(text, "```")
	default:
		return text
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ExtractJSON returns the first JSON object in text. The object is found with
// a string-aware balanced brace scan starting at the first "{"; if that never
// closes, it falls back to the span from the first "{" to the last "}".
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", &ExtractionError{Length: len(text)}
	}

	if end := balancedEnd(text, start); end > 0 {
		return text[start : end+1], nil
	}

	end := strings.LastIndex(text, "}")
	if end < start {
		return "", &ExtractionError{Length: len(text)}
	}
	return text[start : end+1], nil
}

// balancedEnd returns the index of the brace closing the object opened at
// start, or -1 when it never closes.
func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func missingFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		// drop the root struct name
		if idx := strings.Index(ns, "."); idx >= 0 {
			ns = ns[idx+1:]
		}
		fields = append(fields, ns)
	}
	return fields
}

func snippet(s string) string {
	if len(s) <= snippetLimit {
		return s
	}
	return s[:snippetLimit] + "..."
}

func (rq *rawQuote) toQuote() *models.Quote {
	q := &models.Quote{
		Symbol:        *rq.Symbol,
		CompanyName:   *rq.CompanyName,
		Price:         *rq.Price,
		Currency:      *rq.Currency,
		Change:        *rq.Change,
		ChangePercent: *rq.ChangePercent,
		MarketCap:     *rq.MarketCap,
		Volume:        *rq.Volume,
		High:          *rq.High,
		Low:           *rq.Low,
		Open:          *rq.Open,
		Analysis:      *rq.Analysis,
		ChartData:     make([]models.ChartPoint, 0, len(rq.ChartData)),
		News:          make([]models.NewsItem, 0, len(rq.News)),
	}
	for _, p := range rq.ChartData {
		q.ChartData = append(q.ChartData, models.ChartPoint{Time: *p.Time, Price: *p.Price})
	}
	for _, n := range rq.News {
		q.News = append(q.News, models.NewsItem{
			Title:   *n.Title,
			Source:  *n.Source,
			URL:     n.URL,
			TimeAgo: n.TimeAgo,
		})
	}
	return q
}
