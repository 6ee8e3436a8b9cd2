package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

func pricesOf(ticker string, kv ...any) []model.PricePoint {
	var points []model.PricePoint
	for i := 0; i+1 < len(kv); i += 2 {
		points = append(points, model.PricePoint{Ticker: ticker, Date: day(kv[i].(string)), Price: kv[i+1].(float64)})
	}
	return points
}

func TestPriceTable_ForwardFill(t *testing.T) {
	table := NewPriceTable(map[string][]model.PricePoint{
		"X": pricesOf("X", "2024-01-05", 50.0, "2024-01-01", 10.0),
	})

	t.Run("uses the latest price on or before the date", func(t *testing.T) {
		p, ok := table.PriceOn("X", day("2024-01-03"))
		require.True(t, ok)
		assert.Equal(t, 10.0, p.Price, "day 3 uses day 1, never day 5 or an interpolation")
		assert.Equal(t, day("2024-01-01"), p.Date)
	})

	t.Run("exact date hit", func(t *testing.T) {
		p, ok := table.PriceOn("X", day("2024-01-05"))
		require.True(t, ok)
		assert.Equal(t, 50.0, p.Price)
	})

	t.Run("nothing before the first point", func(t *testing.T) {
		_, ok := table.PriceOn("X", day("2023-12-31"))
		assert.False(t, ok)
	})
}

func TestValueAt(t *testing.T) {
	table := NewPriceTable(map[string][]model.PricePoint{
		"X": pricesOf("X", "2024-01-01", 10.0, "2024-01-05", 50.0),
		"Y": pricesOf("Y", "2024-02-01", 7.0),
	})

	positions := []model.Position{
		{Ticker: "X", Quantity: 2, FirstAcquired: day("2024-01-01")},
		{Ticker: "Y", Quantity: 3},
		{Ticker: "Z", Quantity: 4},
		{Ticker: "W", Quantity: 0, Closed: true},
	}

	v := ValueAt(day("2024-01-03"), positions, 100, true, table)

	assert.InDelta(t, 2*10+3*7, v.HoldingsValue, 1e-9)
	assert.InDelta(t, 100+2*10+3*7, v.Total, 1e-9)
	require.Len(t, v.Lines, 3, "closed positions are excluded")
	assert.Equal(t, ResolutionForward, v.Lines[0].Resolution)
	assert.Equal(t, ResolutionEarliest, v.Lines[1].Resolution)
	assert.Equal(t, ResolutionMissing, v.Lines[2].Resolution)
	assert.Zero(t, v.Lines[2].Value)

	require.Len(t, v.Warnings, 2, "fallbacks are warnings, never failures")
	for _, w := range v.Warnings {
		assert.ErrorIs(t, w, apperrors.ErrNoPriceData)
	}

	t.Run("cash excluded when not requested", func(t *testing.T) {
		v := ValueAt(day("2024-01-03"), positions, 100, false, table)
		assert.InDelta(t, v.HoldingsValue, v.Total, 1e-12)
		assert.Zero(t, v.Cash)
	})

	t.Run("positions started after the date contribute nothing", func(t *testing.T) {
		late := []model.Position{{Ticker: "X", Quantity: 2, FirstAcquired: day("2024-01-10")}}
		v := ValueAt(day("2024-01-05"), late, 0, true, table)
		assert.Zero(t, v.Total)
		assert.Empty(t, v.Lines)
	})
}
