package models

// Quote is the market snapshot synthesized by the model for one ticker.
// JSON names follow the response contract embedded in the quote prompt.
type Quote struct {
	Symbol        string       `json:"symbol"`
	CompanyName   string       `json:"companyName"`
	Price         float64      `json:"price"`
	Currency      string       `json:"currency"`
	Change        float64      `json:"change"`
	ChangePercent float64      `json:"changePercent"`
	MarketCap     string       `json:"marketCap"` // free-form, e.g. "2.5T"
	Volume        string       `json:"volume"`    // free-form, e.g. "45M"
	High          float64      `json:"high"`
	Low           float64      `json:"low"`
	Open          float64      `json:"open"`
	Analysis      string       `json:"analysis"`
	ChartData     []ChartPoint `json:"chartData"`
	News          []NewsItem   `json:"news"`
	// LastUpdated is stamped locally when the fetch completes.
	LastUpdated string `json:"lastUpdated"`
}

// ChartPoint is one intraday sample, ordered by time.
type ChartPoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price"`
}

type NewsItem struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	URL     string `json:"url,omitempty"`
	TimeAgo string `json:"timeAgo,omitempty"`
}

// IsUp reports whether the day change is non-negative.
func (q *Quote) IsUp() bool {
	return q.Change >= 0
}

// Clone returns a deep copy so observers cannot mutate shared state.
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}
	c := *q
	c.ChartData = append([]ChartPoint(nil), q.ChartData...)
	c.News = append([]NewsItem(nil), q.News...)
	return &c
}
