package apperrors

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationError collects per-field messages for a rejected input.
// A malformed transaction never enters the ledger, so nothing downstream
// has to cope with one.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError holding a single field message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records a message for field, replacing any earlier one.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// OrNil returns nil when no field has been recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, field := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(msgs, "; ")
}

// Is reports ErrValidation as the category of every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientLotsError is returned when a sell asks for more shares than
// the open lots of its ticker hold on the sale date.
type InsufficientLotsError struct {
	Ticker    string
	Date      time.Time
	Requested float64
	Available float64
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("insufficient lots for %s on %s: requested %g, available %g",
		e.Ticker, e.Date.Format("2006-01-02"), e.Requested, e.Available)
}

// Is reports ErrInsufficientLots as the category of every InsufficientLotsError.
func (e *InsufficientLotsError) Is(target error) bool {
	return target == ErrInsufficientLots
}

// NoPriceDataError reports a ticker with no price at or before Date.
// Valuation recovers from it locally and surfaces it as a warning.
type NoPriceDataError struct {
	Ticker string
	Date   time.Time
	// Fallback describes how the valuation recovered: "earliest" or "zero".
	Fallback string
}

func (e *NoPriceDataError) Error() string {
	return fmt.Sprintf("no price data for %s on or before %s (valued using %s)",
		e.Ticker, e.Date.Format("2006-01-02"), e.Fallback)
}

// Is reports ErrNoPriceData as the category of every NoPriceDataError.
func (e *NoPriceDataError) Is(target error) bool {
	return target == ErrNoPriceData
}
