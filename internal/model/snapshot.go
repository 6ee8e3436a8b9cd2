package model

import "time"

// Position is the aggregate holding of one ticker at a point in time.
type Position struct {
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
	// CostBasis is lot-derived; for shares with no matching lot the
	// weighted-average cost stands in.
	CostBasis     float64   `json:"costBasis"`
	AverageCost   float64   `json:"averageCost"`
	FirstAcquired time.Time `json:"firstAcquired,omitzero"`
	Closed        bool      `json:"closed"`
}

// Snapshot is the reconstructed cash and position state of a portfolio as of Date.
// It is a pure function of the transactions dated on or before Date, so it can
// be deleted and rebuilt at any time.
type Snapshot struct {
	ID          string     `json:"id,omitempty"`
	PortfolioID string     `json:"portfolioId"`
	Date        time.Time  `json:"date"`
	CashBalance float64    `json:"cashBalance"`
	Positions   []Position `json:"positions"`
	// Incomplete marks a snapshot replayed from a ledger with sells no lot
	// covered; its positions are right but its lot-derived cost is not.
	Incomplete   bool      `json:"incomplete,omitempty"`
	CalculatedAt time.Time `json:"calculatedAt,omitzero"`
}

// OpenPositions returns the positions not marked closed.
func (s Snapshot) OpenPositions() []Position {
	open := make([]Position, 0, len(s.Positions))
	for _, p := range s.Positions {
		if !p.Closed {
			open = append(open, p)
		}
	}
	return open
}

// Tickers returns the tickers of all open positions.
func (s Snapshot) Tickers() []string {
	tickers := make([]string, 0, len(s.Positions))
	for _, p := range s.Positions {
		if !p.Closed {
			tickers = append(tickers, p.Ticker)
		}
	}
	return tickers
}

// PricePoint is a daily closing price.
type PricePoint struct {
	Ticker string    `json:"ticker,omitempty"`
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Source string    `json:"source,omitempty"`
}
