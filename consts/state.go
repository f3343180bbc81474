package consts

const (
	// Exchange labels shown next to watchlist presets
	ExchangeNSE    = "NSE"
	ExchangeNASDAQ = "NASDAQ"
)

const (
	// Grounding source names
	Source_GoogleNews = "google_news"
	Source_Yahoo      = "yahoo_finance"
	Source_Finnhub    = "finnhub"
	Source_Longport   = "longport"
)
