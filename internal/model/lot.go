package model

import "time"

// HoldingPeriod classifies a realized gain for tax purposes.
type HoldingPeriod string

// Holding period classes. A lot held 365 days or fewer is short-term.
const (
	ShortTerm HoldingPeriod = "short-term"
	LongTerm  HoldingPeriod = "long-term"
)

// ShortTermMaxDays is the longest holding, in calendar days, still taxed as short-term.
const ShortTermMaxDays = 365

// ClassifyHoldingPeriod returns ShortTerm when sold is at most 365 calendar
// days after acquired, LongTerm otherwise.
func ClassifyHoldingPeriod(acquired, sold time.Time) HoldingPeriod {
	if DaysBetween(acquired, sold) <= ShortTermMaxDays {
		return ShortTerm
	}
	return LongTerm
}

// Lot is an acquisition batch still (partly) held.
// Lots are derived from the transaction log and never stored as truth.
type Lot struct {
	Ticker            string    `json:"ticker"`
	TransactionID     string    `json:"transactionId,omitempty"`
	AcquiredOn        time.Time `json:"acquiredOn"`
	OriginalQuantity  float64   `json:"originalQuantity"`
	RemainingQuantity float64   `json:"remainingQuantity"`
	CostPerShare      float64   `json:"costPerShare"`
}

// CostBasis returns the cost of the remaining shares.
func (l Lot) CostBasis() float64 {
	return l.RemainingQuantity * l.CostPerShare
}

// RealizedGainEvent records a sell consuming (part of) one lot.
type RealizedGainEvent struct {
	Ticker            string        `json:"ticker"`
	SaleDate          time.Time     `json:"saleDate"`
	AcquiredOn        time.Time     `json:"acquiredOn"`
	Quantity          float64       `json:"quantity"`
	Proceeds          float64       `json:"proceeds"`
	CostBasis         float64       `json:"costBasis"`
	Gain              float64       `json:"gain"`
	HoldingPeriod     HoldingPeriod `json:"holdingPeriod"`
	SaleTransactionID string        `json:"saleTransactionId,omitempty"`
	LotTransactionID  string        `json:"lotTransactionId,omitempty"`
}
