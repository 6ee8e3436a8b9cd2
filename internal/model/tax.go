package model

import "time"

// TaxRates is the configurable rate schedule, as decimal fractions.
type TaxRates struct {
	ShortTermCapitalGains float64 `json:"shortTermCapitalGains" toml:"shortTermCapitalGains"`
	LongTermCapitalGains  float64 `json:"longTermCapitalGains" toml:"longTermCapitalGains"`
	QualifiedDividends    float64 `json:"qualifiedDividends" toml:"qualifiedDividends"`
}

// TermType summarizes the holding periods of a ticker's realized gains.
type TermType string

// Term types. Mixed means both short- and long-term gains are nonzero.
const (
	TermShort TermType = "short-term"
	TermLong  TermType = "long-term"
	TermMixed TermType = "mixed"
)

// TickerGains aggregates one ticker's realized gains within a tax year.
type TickerGains struct {
	Ticker        string              `json:"ticker"`
	ShortTermGain float64             `json:"shortTermGain"`
	LongTermGain  float64             `json:"longTermGain"`
	RealizedGain  float64             `json:"realizedGain"`
	Proceeds      float64             `json:"proceeds"`
	CostBasis     float64             `json:"costBasis"`
	TermType      TermType            `json:"termType"`
	Events        []RealizedGainEvent `json:"events"`
}

// TaxSummary is the year-to-date tax picture of a portfolio.
type TaxSummary struct {
	PortfolioID       string        `json:"portfolioId"`
	Year              int           `json:"year"`
	Taxable           bool          `json:"taxable"`
	ShortTermGains    float64       `json:"shortTermGains"`
	LongTermGains     float64       `json:"longTermGains"`
	RealizedGainsYTD  float64       `json:"realizedGainsYtd"`
	DividendIncomeYTD float64       `json:"dividendIncomeYtd"`
	GainsByTicker     []TickerGains `json:"gainsByTicker"`
	EstimatedTaxDue   float64       `json:"estimatedTaxDue"`
	Rates             TaxRates      `json:"rates"`
}

// TaxImpact is the hypothetical outcome of a sale that has not happened.
type TaxImpact struct {
	PortfolioID   string              `json:"portfolioId"`
	Ticker        string              `json:"ticker"`
	Shares        float64             `json:"shares"`
	Price         float64             `json:"price"`
	SaleDate      time.Time           `json:"saleDate"`
	Taxable       bool                `json:"taxable"`
	Proceeds      float64             `json:"proceeds"`
	CostBasis     float64             `json:"costBasis"`
	RealizedGain  float64             `json:"realizedGain"`
	ShortTermGain float64             `json:"shortTermGain"`
	LongTermGain  float64             `json:"longTermGain"`
	EstimatedTax  float64             `json:"estimatedTax"`
	Approximate   bool                `json:"approximate"`
	Lots          []RealizedGainEvent `json:"lots,omitempty"`
}
