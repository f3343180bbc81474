package models

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// RequestState is the single "current" record shown by the dashboard.
// Quote survives an error so the last good snapshot stays on screen.
type RequestState struct {
	Status    Status `json:"status"`
	Quote     *Quote `json:"data"`
	Error     string `json:"error,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	RequestID uint64 `json:"requestId"`
}

func (s RequestState) Loading() bool {
	return s.Status == StatusLoading
}

// LoadedSymbol is the symbol of the quote on screen, or "".
func (s RequestState) LoadedSymbol() string {
	if s.Quote == nil {
		return ""
	}
	return s.Quote.Symbol
}

// Snapshot copies the state including its quote.
func (s RequestState) Snapshot() RequestState {
	s.Quote = s.Quote.Clone()
	return s
}
