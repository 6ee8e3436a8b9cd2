package apperrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	t.Run("matches the validation category through wrapping", func(t *testing.T) {
		verr := NewValidationError("quantity", "must be positive for buy")
		wrapped := fmt.Errorf("create transaction: %w", verr)

		assert.ErrorIs(t, wrapped, ErrValidation)

		var target *ValidationError
		assert.True(t, errors.As(wrapped, &target))
		assert.Equal(t, "must be positive for buy", target.Fields["quantity"])
	})

	t.Run("message lists fields in a stable order", func(t *testing.T) {
		verr := &ValidationError{}
		verr.Add("type", "unknown transaction type")
		verr.Add("date", "must be YYYY-MM-DD")

		assert.Equal(t, "date: must be YYYY-MM-DD; type: unknown transaction type", verr.Error())
	})

	t.Run("OrNil drops an empty error", func(t *testing.T) {
		verr := &ValidationError{}
		assert.NoError(t, verr.OrNil())

		verr.Add("ticker", "required")
		assert.Error(t, verr.OrNil())
	})
}

func TestInsufficientLotsError(t *testing.T) {
	err := &InsufficientLotsError{
		Ticker:    "AAPL",
		Date:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Requested: 150,
		Available: 100,
	}

	assert.ErrorIs(t, fmt.Errorf("replay: %w", err), ErrInsufficientLots)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "AAPL on 2024-03-01")
}

func TestNotFoundCategory(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", ErrPortfolioNotFound)

	assert.ErrorIs(t, wrapped, ErrPortfolioNotFound)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrTransactionNotFound)
}
