package validation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/request"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// Query reads typed query parameters and collects every malformed one into a
// single validation error.
//
// Example:
//
//	q := validation.NewQuery(r.URL.Query())
//	date := q.Date("date", time.Now())
//	year := q.Int("year", 0, 1900, 9999)
//	if err := q.Err(); err != nil { ... }
type Query struct {
	values url.Values
	errs   *apperrors.ValidationError
}

// NewQuery wraps the query values of a request.
func NewQuery(values url.Values) *Query {
	return &Query{values: values, errs: &apperrors.ValidationError{}}
}

// String returns the trimmed value of field, empty when absent.
func (q *Query) String(field string) string {
	return strings.TrimSpace(q.values.Get(field))
}

// Date parses field as YYYY-MM-DD. An absent field returns def.
func (q *Query) Date(field string, def time.Time) time.Time {
	raw := q.String(field)
	if raw == "" {
		return model.Day(def)
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		q.errs.Add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}
	}
	return d
}

// Int parses field as an integer within [lo, hi]. An absent field returns def.
func (q *Query) Int(field string, def, lo, hi int) int {
	raw := q.String(field)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		q.errs.Add(field, fmt.Sprintf("must be an integer between %d and %d", lo, hi))
		return def
	}
	return n
}

// Float parses an optional number. An absent field returns nil.
func (q *Query) Float(field string) *float64 {
	raw := q.String(field)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.errs.Add(field, "must be a number")
		return nil
	}
	return &f
}

// RequiredFloat parses a number that must be present.
func (q *Query) RequiredFloat(field string) float64 {
	if q.String(field) == "" {
		q.errs.Add(field, "is required")
		return 0
	}
	if f := q.Float(field); f != nil {
		return *f
	}
	return 0
}

// Err returns the collected validation error, or nil.
func (q *Query) Err() error {
	return q.errs.OrNil()
}

// TransactionListQuery is the parsed query of a transaction listing.
type TransactionListQuery struct {
	Filter model.TransactionFilter
	Cursor string
	Limit  int
}

// ValidateTransactionListQuery parses ticker, type, from, to, cursor and
// limit. A limit of 0 leaves the page size to the service.
func ValidateTransactionListQuery(values url.Values) (TransactionListQuery, error) {
	q := NewQuery(values)
	out := TransactionListQuery{
		Filter: model.TransactionFilter{
			Ticker: strings.ToUpper(q.String("ticker")),
			From:   q.Date("from", time.Time{}),
			To:     q.Date("to", time.Time{}),
		},
		Cursor: q.String("cursor"),
		Limit:  q.Int("limit", 0, 1, 1000),
	}

	if raw := q.String("type"); raw != "" {
		t, ok := model.ParseTransactionType(raw)
		if !ok {
			q.errs.Add("type", "must be one of buy, sell, dividend, dividend_reinvest, cash")
		}
		out.Filter.Type = t
	}
	if !out.Filter.From.IsZero() && !out.Filter.To.IsZero() && out.Filter.From.After(out.Filter.To) {
		q.errs.Add("from", "must not be after to")
	}

	if err := q.Err(); err != nil {
		return TransactionListQuery{}, err
	}
	return out, nil
}

// ValidateStorePrices converts a manual price upload, reporting malformed
// dates per entry. Ticker and price checks are left to the price service.
func ValidateStorePrices(req request.StorePricesRequest) ([]model.PricePoint, error) {
	verr := &apperrors.ValidationError{}
	if len(req.Prices) == 0 {
		verr.Add("prices", "must not be empty")
	}

	points := make([]model.PricePoint, len(req.Prices))
	for i, e := range req.Prices {
		d, err := model.ParseDate(e.Date)
		if err != nil {
			verr.Add(fmt.Sprintf("prices[%d].date", i), "must be a date in YYYY-MM-DD format")
		}
		points[i] = model.PricePoint{Ticker: e.Ticker, Date: d, Price: e.Price, Source: "manual"}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return points, nil
}
