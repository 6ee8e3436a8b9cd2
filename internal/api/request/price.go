package request

// RefreshPricesRequest is the optional body of a price refresh. No tickers
// means every ticker any portfolio has traded.
type RefreshPricesRequest struct {
	Tickers []string `json:"tickers"`
}

// PriceEntry is one manually supplied close.
type PriceEntry struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
}

// StorePricesRequest is the body of a manual price upload.
type StorePricesRequest struct {
	Prices []PriceEntry `json:"prices"`
}
