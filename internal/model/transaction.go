package model

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
)

// DateLayout is the calendar-date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// TransactionType enumerates the ledger entry kinds.
type TransactionType string

// Ledger entry kinds. Buy and DividendReinvest acquire shares and open lots.
const (
	TransactionBuy              TransactionType = "buy"
	TransactionSell             TransactionType = "sell"
	TransactionDividend         TransactionType = "dividend"
	TransactionDividendReinvest TransactionType = "dividend_reinvest"
	TransactionCash             TransactionType = "cash"
)

// ParseTransactionType maps a wire value onto a TransactionType.
func ParseTransactionType(s string) (TransactionType, bool) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Valid reports whether t is one of the known kinds.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionBuy, TransactionSell, TransactionDividend, TransactionDividendReinvest, TransactionCash:
		return true
	}
	return false
}

// Acquires reports whether entries of this kind open a tax lot.
func (t TransactionType) Acquires() bool {
	return t == TransactionBuy || t == TransactionDividendReinvest
}

// Transaction is an immutable ledger entry.
// Quantity is signed: positive for acquisitions, negative for sells, zero for
// cash-only entries. Amount is the signed cash impact on the portfolio.
type Transaction struct {
	ID          string          `json:"id"`
	PortfolioID string          `json:"portfolioId"`
	Seq         int64           `json:"seq"`
	Type        TransactionType `json:"type"`
	Ticker      string          `json:"ticker,omitempty"`
	Date        time.Time       `json:"date"`
	Quantity    float64         `json:"quantity"`
	Price       *float64        `json:"price,omitempty"`
	Amount      float64         `json:"amount"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"createdAt,omitempty"`
}

// TransactionInput is the untrusted shape a transaction arrives in before it
// is admitted to the ledger.
type TransactionInput struct {
	Type     string   `json:"type"`
	Ticker   string   `json:"ticker"`
	Date     string   `json:"date"`
	Quantity float64  `json:"quantity"`
	Price    *float64 `json:"price,omitempty"`
	Amount   float64  `json:"amount"`
	Notes    string   `json:"notes,omitempty"`
}

// NewTransaction validates in and builds a ledger entry for portfolioID.
// It returns an *apperrors.ValidationError listing every violated field.
func NewTransaction(portfolioID string, in TransactionInput) (Transaction, error) {
	verr := &apperrors.ValidationError{}

	txType, ok := ParseTransactionType(in.Type)
	if !ok {
		verr.Add("type", "must be one of buy, sell, dividend, dividend_reinvest, cash")
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		verr.Add("date", "must be a calendar date in YYYY-MM-DD format")
	}

	tx := Transaction{
		PortfolioID: portfolioID,
		Type:        txType,
		Ticker:      strings.ToUpper(strings.TrimSpace(in.Ticker)),
		Date:        date,
		Quantity:    in.Quantity,
		Price:       in.Price,
		Amount:      in.Amount,
		Notes:       in.Notes,
	}

	if ok {
		tx.validateInto(verr)
	}
	if err := verr.OrNil(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Validate checks the per-type invariants of an already-built transaction.
func (t Transaction) Validate() error {
	verr := &apperrors.ValidationError{}
	if !t.Type.Valid() {
		verr.Add("type", "must be one of buy, sell, dividend, dividend_reinvest, cash")
		return verr
	}
	if t.Date.IsZero() {
		verr.Add("date", "is required")
	}
	t.validateInto(verr)
	return verr.OrNil()
}

func (t Transaction) validateInto(verr *apperrors.ValidationError) {
	for field, v := range map[string]float64{"quantity": t.Quantity, "amount": t.Amount} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			verr.Add(field, "must be a finite number")
		}
	}
	if t.Price != nil && (*t.Price < 0 || math.IsNaN(*t.Price) || math.IsInf(*t.Price, 0)) {
		verr.Add("price", "must be a non-negative finite number")
	}

	switch t.Type {
	case TransactionBuy, TransactionDividendReinvest:
		if t.Ticker == "" {
			verr.Add("ticker", "is required for "+string(t.Type))
		}
		if !(t.Quantity > 0) {
			verr.Add("quantity", "must be positive for "+string(t.Type))
		}
		if t.Amount > 0 {
			verr.Add("amount", "must not be positive for "+string(t.Type))
		}
	case TransactionSell:
		if t.Ticker == "" {
			verr.Add("ticker", "is required for sell")
		}
		if !(t.Quantity < 0) {
			verr.Add("quantity", "must be negative for sell")
		}
		if t.Amount < 0 {
			verr.Add("amount", "must not be negative for sell")
		}
	case TransactionDividend:
		if t.Ticker == "" {
			verr.Add("ticker", "is required for dividend")
		}
		if t.Quantity != 0 {
			verr.Add("quantity", "must be zero for dividend")
		}
		if t.Amount < 0 {
			verr.Add("amount", "must not be negative for dividend")
		}
	case TransactionCash:
		if t.Quantity != 0 {
			verr.Add("quantity", "must be zero for cash")
		}
		if t.Ticker != "" {
			verr.Add("ticker", "must be empty for cash")
		}
	}
}

// UnitPrice returns the per-share price of a share-moving entry, falling back
// to |amount| / |quantity| when no explicit price was recorded.
func (t Transaction) UnitPrice() float64 {
	if t.Price != nil {
		return *t.Price
	}
	if t.Quantity == 0 {
		return 0
	}
	return math.Abs(t.Amount) / math.Abs(t.Quantity)
}

// SortTransactions orders txs by date, breaking ties by insertion sequence.
// Replaying the same set always yields the same order.
func SortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].Seq < txs[j].Seq
	})
}

// SortedTransactions returns a sorted copy of txs, leaving the input untouched.
func SortedTransactions(txs []Transaction) []Transaction {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	SortTransactions(sorted)
	return sorted
}

// ParseDate parses a YYYY-MM-DD calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return d.UTC(), nil
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / (24 * time.Hour))
}

// DateKey formats t as a YYYY-MM-DD map key.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// TransactionFilter narrows a transaction listing. Zero fields match everything.
type TransactionFilter struct {
	Ticker string
	Type   TransactionType
	From   time.Time
	To     time.Time
}

// TransactionPage is one page of a keyset-paginated listing.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	NextCursor   string        `json:"nextCursor,omitempty"`
}

// ImportResult reports a bulk import.
type ImportResult struct {
	Imported int       `json:"imported"`
	FirstSeq int64     `json:"firstSeq"`
	LastSeq  int64     `json:"lastSeq"`
	AsOf     time.Time `json:"asOf"`
}
