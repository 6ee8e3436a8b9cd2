package ledger

import (
	"math"
	"time"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// IndexBase is the starting value of every growth index.
const IndexBase = 100.0

// CashFlows holds net external cash flow per calendar day.
// Positive values are deposits, negative values withdrawals.
type CashFlows map[string]float64

// Add accumulates amount onto date.
func (c CashFlows) Add(date time.Time, amount float64) {
	c[model.DateKey(date)] += amount
}

// On returns the net flow on date.
func (c CashFlows) On(date time.Time) float64 {
	return c[model.DateKey(date)]
}

// FlowsFromTransactions collects the cash-type transactions of txs.
// Trade cash movements are not external flows.
func FlowsFromTransactions(txs []model.Transaction) CashFlows {
	flows := make(CashFlows)
	for _, tx := range txs {
		if tx.Type == model.TransactionCash {
			flows.Add(tx.Date, tx.Amount)
		}
	}
	return flows
}

// TradeFlowsFromTransactions treats the cash side of trades as external
// flows: a buy funds new capital, a sale returns it. Used when the portfolio
// does not track a cash balance and values are holdings only.
func TradeFlowsFromTransactions(txs []model.Transaction) CashFlows {
	flows := make(CashFlows)
	for _, tx := range txs {
		switch tx.Type {
		case model.TransactionBuy, model.TransactionSell, model.TransactionDividendReinvest:
			flows.Add(tx.Date, -tx.Amount)
		}
	}
	return flows
}

// Revaluer returns the value, at the prices of day i+1, of the holdings the
// portfolio had at the end of day i. ok is false when that cannot be computed.
type Revaluer func(i int) (value float64, ok bool)

// IndexResult is a growth index plus the days on which a deposit could not be
// revalued and the withdrawal formula was used instead.
type IndexResult struct {
	Index          []float64
	FallbackDays   []time.Time
	CarriedForward int
}

// TimeWeightedIndex chains per-day returns into a growth index starting at
// IndexBase, neutralizing deposits and withdrawals:
//
//   - no flow: r = V[i+1]/V[i] - 1
//   - deposit: r = revalue(i)/V[i] - 1, the pre-existing holdings at new prices
//   - withdrawal: r = (V[i+1] - C)/V[i] - 1
//   - V[i] <= 0: the index carries forward
//
// Deposits use revaluation while withdrawals add the amount back; the two
// conventions are deliberately not unified. A deposit whose revaluation is
// unavailable falls back to the withdrawal form and is listed in FallbackDays.
func TimeWeightedIndex(dates []time.Time, values []float64, flows CashFlows, revalue Revaluer) IndexResult {
	res := IndexResult{Index: make([]float64, len(values))}
	if len(values) == 0 {
		return res
	}
	res.Index[0] = IndexBase

	for i := 0; i+1 < len(values); i++ {
		prev, next := values[i], values[i+1]
		if prev <= 0 {
			res.Index[i+1] = res.Index[i]
			res.CarriedForward++
			continue
		}

		flow := flows.On(dates[i+1])
		var r float64
		switch {
		case flow > 0:
			if revalued, ok := callRevalue(revalue, i); ok {
				r = revalued/prev - 1
			} else {
				r = (next-flow)/prev - 1
				res.FallbackDays = append(res.FallbackDays, dates[i+1])
			}
		case flow < 0:
			r = (next-flow)/prev - 1
		default:
			r = next/prev - 1
		}
		res.Index[i+1] = res.Index[i] * (1 + r)
	}
	return res
}

func callRevalue(revalue Revaluer, i int) (float64, bool) {
	if revalue == nil {
		return 0, false
	}
	return revalue(i)
}

// SimpleReturnIndex is the fallback when flow-adjusted returns cannot be
// computed. Each day's return is value over cost basis, so the ratio is only
// recomputed when buys or sells change the basis; the index is that ratio
// rebased to IndexBase on the first day with positive cost. Days without
// positive cost carry the index forward.
func SimpleReturnIndex(values, costs []float64) []float64 {
	index := make([]float64, len(values))
	if len(values) == 0 {
		return index
	}

	base := 0.0
	last := IndexBase
	for i := range values {
		if costs[i] <= 0 {
			index[i] = last
			continue
		}
		ratio := values[i] / costs[i]
		if base == 0 {
			if ratio <= 0 {
				index[i] = last
				continue
			}
			base = ratio
		}
		last = IndexBase * ratio / base
		index[i] = last
	}
	return index
}

// NormalizeBenchmark rebases a benchmark to IndexBase at its first positive
// value. Entries before it are zero and later non-positive entries carry the
// previous index forward.
func NormalizeBenchmark(values []float64) []float64 {
	index := make([]float64, len(values))
	base := 0.0
	for i, v := range values {
		switch {
		case base == 0 && v > 0:
			base = v
			index[i] = IndexBase
		case base == 0:
			index[i] = 0
		case v > 0:
			index[i] = IndexBase * v / base
		default:
			index[i] = index[i-1]
		}
	}
	return index
}

// TotalReturn returns the compounded return of an index from its first
// positive entry to its last entry.
func TotalReturn(index []float64) float64 {
	for _, start := range index {
		if start > 0 {
			return index[len(index)-1]/start - 1
		}
	}
	return 0
}

// Annualize converts a total return over days calendar days into an annual
// rate: (1+r)^(365/days) - 1. Periods of zero days return rTotal unchanged.
func Annualize(rTotal float64, days int) float64 {
	if days <= 0 {
		return rTotal
	}
	growth := 1 + rTotal
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, 365.0/float64(days)) - 1
}

// SelectReturnMode picks time-weighted returns when every day before a
// deposit has a snapshot to revalue, and simple returns otherwise.
func SelectReturnMode(dates []time.Time, flows CashFlows, hasSnapshot func(time.Time) bool) model.ReturnMode {
	for i := 1; i < len(dates); i++ {
		if flows.On(dates[i]) > 0 && !hasSnapshot(dates[i-1]) {
			return model.ReturnSimple
		}
	}
	if len(dates) > 0 && !hasSnapshot(dates[0]) {
		return model.ReturnSimple
	}
	return model.ReturnTimeWeighted
}
