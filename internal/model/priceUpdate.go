package model

// PriceRefreshResult summarizes a batch price refresh.
// Success is true if at least one ticker was refreshed.
type PriceRefreshResult struct {
	Success      bool                `json:"success"`
	Updated      []UpdatedTicker     `json:"updated"`
	Errors       []PriceRefreshError `json:"errors"`
	TotalUpdated int                 `json:"totalUpdated"`
	TotalErrors  int                 `json:"totalErrors"`
}

// UpdatedTicker is a ticker whose price history was extended.
type UpdatedTicker struct {
	Ticker      string `json:"ticker"`
	PricesAdded int    `json:"pricesAdded"`
}

// PriceRefreshError is a ticker the provider could not serve.
type PriceRefreshError struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}
