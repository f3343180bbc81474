package dashboard

import (
	"strings"

	"github.com/dyike/MarketPulse/consts"
)

// Preset is a one-click watchlist entry.
type Preset struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

var watchlist = []Preset{
	{Symbol: "TATAMOTORS", Name: "Tata Motors", Exchange: consts.ExchangeNSE},
	{Symbol: "SBIN", Name: "State Bank of India", Exchange: consts.ExchangeNSE},
	{Symbol: "RELIANCE", Name: "Reliance Industries", Exchange: consts.ExchangeNSE},
	{Symbol: "TCS", Name: "Tata Consultancy Services", Exchange: consts.ExchangeNSE},
	{Symbol: "HDFCBANK", Name: "HDFC Bank", Exchange: consts.ExchangeNSE},
	{Symbol: "AAPL", Name: "Apple Inc.", Exchange: consts.ExchangeNASDAQ},
	{Symbol: "TSLA", Name: "Tesla, Inc.", Exchange: consts.ExchangeNASDAQ},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Exchange: consts.ExchangeNASDAQ},
	{Symbol: "MSFT", Name: "Microsoft Corp.", Exchange: consts.ExchangeNASDAQ},
	{Symbol: "NVDA", Name: "NVIDIA Corp.", Exchange: consts.ExchangeNASDAQ},
}

// Watchlist returns the fixed preset list.
func Watchlist() []Preset {
	out := make([]Preset, len(watchlist))
	copy(out, watchlist)
	return out
}

// IsActive reports whether symbol is the symbol of the loaded quote,
// ignoring case.
func (d *Dashboard) IsActive(symbol string) bool {
	loaded := d.State().LoadedSymbol()
	return loaded != "" && strings.EqualFold(strings.TrimSpace(symbol), loaded)
}
