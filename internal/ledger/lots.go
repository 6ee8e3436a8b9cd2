// Package ledger replays a portfolio's transaction log into point-in-time
// state and derives valuations, time-weighted returns and realized-gain tax
// estimates from it. Everything here is pure and synchronous: callers fetch
// transactions and prices, the engine computes.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// QuantityEpsilon absorbs float rounding: a position or lot at or below it is empty.
const QuantityEpsilon = 1e-9

var decEpsilon = decimal.NewFromFloat(QuantityEpsilon)

type lotEntry struct {
	transactionID string
	acquiredOn    time.Time
	original      decimal.Decimal
	remaining     decimal.Decimal
	costPerShare  decimal.Decimal
}

func (l lotEntry) toModel(ticker string) model.Lot {
	return model.Lot{
		Ticker:            ticker,
		TransactionID:     l.transactionID,
		AcquiredOn:        l.acquiredOn,
		OriginalQuantity:  l.original.InexactFloat64(),
		RemainingQuantity: l.remaining.InexactFloat64(),
		CostPerShare:      l.costPerShare.InexactFloat64(),
	}
}

// LotBook keeps a FIFO queue of open lots per ticker and the realized-gain
// events emitted by disposals. Quantities and costs are held as decimals so
// replaying the same prefix twice yields identical state.
type LotBook struct {
	queues map[string][]lotEntry
	events []model.RealizedGainEvent
}

// NewLotBook returns an empty LotBook.
func NewLotBook() *LotBook {
	return &LotBook{queues: make(map[string][]lotEntry)}
}

func (b *LotBook) clone() *LotBook {
	c := &LotBook{
		queues: make(map[string][]lotEntry, len(b.queues)),
		events: make([]model.RealizedGainEvent, len(b.events)),
	}
	for ticker, queue := range b.queues {
		c.queues[ticker] = append([]lotEntry(nil), queue...)
	}
	copy(c.events, b.events)
	return c
}

// Acquire opens a lot for a buy or dividend_reinvest.
func (b *LotBook) Acquire(tx model.Transaction) {
	b.queues[tx.Ticker] = append(b.queues[tx.Ticker], lotEntry{
		transactionID: tx.ID,
		acquiredOn:    model.Day(tx.Date),
		original:      decimal.NewFromFloat(tx.Quantity),
		remaining:     decimal.NewFromFloat(tx.Quantity),
		costPerShare:  decimal.NewFromFloat(tx.UnitPrice()),
	})
}

// Dispose consumes |tx.Quantity| shares oldest-first and records one event per
// lot touched. When the open lots cannot cover the sale it returns an
// *apperrors.InsufficientLotsError and leaves the book unchanged.
func (b *LotBook) Dispose(tx model.Transaction) ([]model.RealizedGainEvent, error) {
	queue, events, err := consume(b.queues[tx.Ticker], tx.Ticker, decimal.NewFromFloat(-tx.Quantity),
		decimal.NewFromFloat(tx.UnitPrice()), model.Day(tx.Date), tx.ID)
	if err != nil {
		return nil, err
	}
	b.queues[tx.Ticker] = queue
	b.events = append(b.events, events...)
	return events, nil
}

// DisposeAvailable consumes as much of the sale as the open lots cover and
// returns the uncovered remainder. Used when lot history is known to be incomplete.
func (b *LotBook) DisposeAvailable(tx model.Transaction) ([]model.RealizedGainEvent, float64) {
	want := decimal.NewFromFloat(-tx.Quantity)
	open := sumRemaining(b.queues[tx.Ticker])
	take := decimal.Min(want, open)

	var events []model.RealizedGainEvent
	if take.GreaterThan(decimal.Zero) {
		queue, ev, err := consume(b.queues[tx.Ticker], tx.Ticker, take,
			decimal.NewFromFloat(tx.UnitPrice()), model.Day(tx.Date), tx.ID)
		if err == nil {
			b.queues[tx.Ticker] = queue
			b.events = append(b.events, ev...)
			events = ev
		}
	}
	return events, want.Sub(take).InexactFloat64()
}

// Preview runs the consumption of a hypothetical sale against a copy of the
// ticker's queue. The book is never modified.
func (b *LotBook) Preview(ticker string, shares, price float64, date time.Time) ([]model.RealizedGainEvent, error) {
	_, events, err := consume(b.queues[ticker], ticker, decimal.NewFromFloat(shares),
		decimal.NewFromFloat(price), model.Day(date), "")
	return events, err
}

// Open returns the open lots of ticker, oldest first.
func (b *LotBook) Open(ticker string) []model.Lot {
	queue := b.queues[ticker]
	lots := make([]model.Lot, 0, len(queue))
	for _, l := range queue {
		lots = append(lots, l.toModel(ticker))
	}
	return lots
}

// OpenAll returns the open lots of every ticker that still has any.
func (b *LotBook) OpenAll() map[string][]model.Lot {
	all := make(map[string][]model.Lot, len(b.queues))
	for _, ticker := range b.Tickers() {
		all[ticker] = b.Open(ticker)
	}
	return all
}

// Tickers returns the tickers with at least one open lot, sorted.
func (b *LotBook) Tickers() []string {
	tickers := make([]string, 0, len(b.queues))
	for ticker, queue := range b.queues {
		if len(queue) > 0 {
			tickers = append(tickers, ticker)
		}
	}
	sort.Strings(tickers)
	return tickers
}

// OpenQuantity returns the shares of ticker held across open lots.
func (b *LotBook) OpenQuantity(ticker string) float64 {
	return sumRemaining(b.queues[ticker]).InexactFloat64()
}

// CostBasis returns the cost of the shares of ticker held across open lots.
func (b *LotBook) CostBasis(ticker string) float64 {
	total := decimal.Zero
	for _, l := range b.queues[ticker] {
		total = total.Add(l.remaining.Mul(l.costPerShare))
	}
	return total.InexactFloat64()
}

// Events returns every realized-gain event recorded so far, in sale order.
func (b *LotBook) Events() []model.RealizedGainEvent {
	out := make([]model.RealizedGainEvent, len(b.events))
	copy(out, b.events)
	return out
}

// TrackLots replays the acquisitions and sells in txs dated on or before
// cutoff into a fresh LotBook. Other transaction kinds are ignored.
func TrackLots(txs []model.Transaction, cutoff time.Time) (*LotBook, error) {
	book := NewLotBook()
	cutoff = model.Day(cutoff)
	for _, tx := range model.SortedTransactions(txs) {
		if tx.Date.After(cutoff) {
			break
		}
		switch {
		case tx.Type.Acquires():
			book.Acquire(tx)
		case tx.Type == model.TransactionSell:
			if _, err := book.Dispose(tx); err != nil {
				return nil, err
			}
		}
	}
	return book, nil
}

func sumRemaining(queue []lotEntry) decimal.Decimal {
	total := decimal.Zero
	for _, l := range queue {
		total = total.Add(l.remaining)
	}
	return total
}

// consume takes qty shares from the front of queue. The input slice is not
// mutated; the returned queue shares no lot state with it.
func consume(queue []lotEntry, ticker string, qty, pricePerShare decimal.Decimal, saleDate time.Time, saleID string) ([]lotEntry, []model.RealizedGainEvent, error) {
	available := sumRemaining(queue)
	if qty.Sub(available).GreaterThan(decEpsilon) {
		return nil, nil, &apperrors.InsufficientLotsError{
			Ticker:    ticker,
			Date:      saleDate,
			Requested: qty.InexactFloat64(),
			Available: available.InexactFloat64(),
		}
	}

	remaining := make([]lotEntry, len(queue))
	copy(remaining, queue)

	var events []model.RealizedGainEvent
	left := qty
	for len(remaining) > 0 && left.GreaterThan(decEpsilon) {
		lot := remaining[0]
		take := decimal.Min(lot.remaining, left)

		proceeds := take.Mul(pricePerShare)
		cost := take.Mul(lot.costPerShare)
		events = append(events, model.RealizedGainEvent{
			Ticker:            ticker,
			SaleDate:          saleDate,
			AcquiredOn:        lot.acquiredOn,
			Quantity:          take.InexactFloat64(),
			Proceeds:          proceeds.InexactFloat64(),
			CostBasis:         cost.InexactFloat64(),
			Gain:              proceeds.Sub(cost).InexactFloat64(),
			HoldingPeriod:     model.ClassifyHoldingPeriod(lot.acquiredOn, saleDate),
			SaleTransactionID: saleID,
			LotTransactionID:  lot.transactionID,
		})

		left = left.Sub(take)
		lot.remaining = lot.remaining.Sub(take)
		if lot.remaining.LessThanOrEqual(decEpsilon) {
			remaining = remaining[1:]
		} else {
			remaining[0] = lot
		}
	}
	return remaining, events, nil
}
