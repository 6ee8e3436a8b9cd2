package model

import "time"

// AccountType tells the tax estimator whether gains are taxable.
type AccountType string

// Account types. IRA accounts are tax-advantaged and skip estimation.
const (
	AccountTaxable AccountType = "taxable"
	AccountIRA     AccountType = "ira"
)

// Valid reports whether a is a known account type.
func (a AccountType) Valid() bool {
	return a == AccountTaxable || a == AccountIRA
}

// Taxable reports whether realized gains in this account are taxed.
func (a AccountType) Taxable() bool {
	return a != AccountIRA
}

// Portfolio represents a portfolio from the database.
// Metadata carries band/thesis linkage and is passed through untouched.
type Portfolio struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	AccountType         AccountType       `json:"accountType"`
	IsArchived          bool              `json:"isArchived"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	CashBalance         float64           `json:"cashBalance"`
	AggregatesUpdatedAt *time.Time        `json:"aggregatesUpdatedAt,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
}

// PortfolioFilter for querying portfolios
type PortfolioFilter struct {
	IncludeArchived bool
}

// Holding is the persisted current aggregate for one ticker of a portfolio.
type Holding struct {
	PortfolioID   string    `json:"portfolioId"`
	Ticker        string    `json:"ticker"`
	Quantity      float64   `json:"quantity"`
	CostBasis     float64   `json:"costBasis"`
	AverageCost   float64   `json:"averageCost"`
	FirstAcquired time.Time `json:"firstAcquired,omitzero"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Aggregate is the current state of a portfolio derived by full replay.
type Aggregate struct {
	PortfolioID  string    `json:"portfolioId"`
	AsOf         time.Time `json:"asOf"`
	CashBalance  float64   `json:"cashBalance"`
	Holdings     []Holding `json:"holdings"`
	RealizedGain float64   `json:"realizedGain"`
}

// ValuationLine is the value of one position on a date.
type ValuationLine struct {
	Ticker     string    `json:"ticker"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	PriceDate  time.Time `json:"priceDate,omitzero"`
	Value      float64   `json:"value"`
	CostBasis  float64   `json:"costBasis"`
	Resolution string    `json:"resolution"`
}

// PortfolioValue is the valuation of a portfolio on a date.
type PortfolioValue struct {
	PortfolioID   string          `json:"portfolioId"`
	Date          time.Time       `json:"date"`
	CashBalance   float64         `json:"cashBalance"`
	HoldingsValue float64         `json:"holdingsValue"`
	TotalValue    float64         `json:"totalValue"`
	TotalCost     float64         `json:"totalCost"`
	Unrealized    float64         `json:"unrealizedGain"`
	Lines         []ValuationLine `json:"positions"`
	Warnings      []string        `json:"warnings,omitempty"`
}
