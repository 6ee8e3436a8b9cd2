package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

func days(start string, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = day(start).AddDate(0, 0, i)
	}
	return out
}

func TestTimeWeightedIndex_DepositIsNeutral(t *testing.T) {
	dates := days("2024-01-01", 2)
	values := []float64{1000, 1500}
	flows := CashFlows{}
	flows.Add(dates[1], 500)

	// Zero market movement: yesterday's holdings are still worth 1000.
	revalue := func(i int) (float64, bool) { return 1000, true }

	res := TimeWeightedIndex(dates, values, flows, revalue)
	assert.InDelta(t, 100, res.Index[1], 1e-12)
	assert.Empty(t, res.FallbackDays)
}

func TestTimeWeightedIndex_DepositFallback(t *testing.T) {
	dates := days("2024-01-01", 2)
	flows := CashFlows{}
	flows.Add(dates[1], 500)

	res := TimeWeightedIndex(dates, []float64{1000, 1500}, flows, nil)
	assert.InDelta(t, 100, res.Index[1], 1e-12, "(1500-500)/1000 - 1 = 0")
	assert.Equal(t, []time.Time{dates[1]}, res.FallbackDays)
}

func TestTimeWeightedIndex_Withdrawal(t *testing.T) {
	dates := days("2024-01-01", 2)
	flows := CashFlows{}
	flows.Add(dates[1], -300)

	res := TimeWeightedIndex(dates, []float64{1000, 770}, flows, func(int) (float64, bool) {
		require.FailNow(t, "withdrawals add the amount back and never revalue")
		return 0, false
	})
	assert.InDelta(t, 107, res.Index[1], 1e-9, "(770+300)/1000 - 1 = 7%")
}

func TestTimeWeightedIndex_MatchesSimpleReturnWithoutFlows(t *testing.T) {
	dates := days("2024-01-01", 5)
	values := []float64{1000, 1040, 990, 1100, 1210}

	res := TimeWeightedIndex(dates, values, CashFlows{}, nil)
	assert.InDelta(t, values[4]/values[0]-1, TotalReturn(res.Index), 1e-12)
}

func TestTimeWeightedIndex_NonPositiveValueCarriesForward(t *testing.T) {
	dates := days("2024-01-01", 4)
	values := []float64{0, 0, 500, 550}
	flows := CashFlows{}
	flows.Add(dates[2], 500)

	res := TimeWeightedIndex(dates, values, flows, nil)
	assert.Equal(t, []float64{100, 100, 100, 110}, roundAll(res.Index))
	assert.Equal(t, 2, res.CarriedForward)
}

func TestSimpleReturnIndex(t *testing.T) {
	values := []float64{0, 1000, 1100, 1650, 1500}
	costs := []float64{0, 1000, 1000, 1500, 1200}

	index := SimpleReturnIndex(values, costs)
	assert.Equal(t, []float64{100, 100, 110, 110, 125}, roundAll(index))
}

func TestNormalizeBenchmark(t *testing.T) {
	index := NormalizeBenchmark([]float64{0, 50, 55, 0, 60})
	assert.Equal(t, []float64{0, 100, 110, 110, 120}, roundAll(index))
	assert.InDelta(t, 0.2, TotalReturn(index), 1e-12)
}

func TestAnnualize(t *testing.T) {
	assert.InDelta(t, 0.21, Annualize(0.21, 365), 1e-12)
	assert.InDelta(t, math.Pow(1.21, 0.5)-1, Annualize(0.21, 730), 1e-12)
	assert.InDelta(t, 0.1, Annualize(0.1, 0), 1e-12)
	assert.Equal(t, -1.0, Annualize(-1.5, 100))
}

func TestSelectReturnMode(t *testing.T) {
	dates := days("2024-01-01", 3)
	flows := CashFlows{}
	flows.Add(dates[2], 100)

	all := func(time.Time) bool { return true }
	missingDayOne := func(d time.Time) bool { return !d.Equal(dates[1]) }

	assert.Equal(t, model.ReturnTimeWeighted, SelectReturnMode(dates, flows, all))
	assert.Equal(t, model.ReturnSimple, SelectReturnMode(dates, flows, missingDayOne))
}

func TestFlowsFromTransactions(t *testing.T) {
	txs := ledgerOf().
		cash("2024-01-01", 1000).
		buy("2024-01-01", "X", 1, 100).
		cash("2024-01-01", -200).
		dividend("2024-01-02", "X", 3).
		txs

	flows := FlowsFromTransactions(txs)
	assert.InDelta(t, 800, flows.On(day("2024-01-01")), 1e-12, "only cash entries count, netted per day")
	assert.Zero(t, flows.On(day("2024-01-02")))

	trade := TradeFlowsFromTransactions(txs)
	require.InDelta(t, 100, trade.On(day("2024-01-01")), 1e-12)
}

func roundAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Round(x*1e6) / 1e6
	}
	return out
}
