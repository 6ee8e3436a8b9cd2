package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// State is the replayed portfolio as of AsOf.
type State struct {
	AsOf        time.Time
	CashBalance float64
	// Positions holds every ticker ever held, sorted, closed ones flagged.
	Positions []model.Position
	Lots      *LotBook
	// Unmatched holds, per ticker, shares sold that no open lot covered.
	// Only lenient replays populate it.
	Unmatched map[string]float64
}

// OpenPositions returns the positions with quantity above QuantityEpsilon.
func (s State) OpenPositions() []model.Position {
	open := make([]model.Position, 0, len(s.Positions))
	for _, p := range s.Positions {
		if !p.Closed {
			open = append(open, p)
		}
	}
	return open
}

// Position returns the position of ticker, open or closed.
func (s State) Position(ticker string) (model.Position, bool) {
	i := sort.Search(len(s.Positions), func(i int) bool { return s.Positions[i].Ticker >= ticker })
	if i < len(s.Positions) && s.Positions[i].Ticker == ticker {
		return s.Positions[i], true
	}
	return model.Position{}, false
}

// RealizedGain sums the gains of every realized event in the replay.
func (s State) RealizedGain() float64 {
	total := decimal.Zero
	for _, e := range s.Lots.Events() {
		total = total.Add(decimal.NewFromFloat(e.Gain))
	}
	return total.InexactFloat64()
}

// Snapshot converts the state to a snapshot of portfolioID.
func (s State) Snapshot(portfolioID string) model.Snapshot {
	positions := make([]model.Position, len(s.Positions))
	copy(positions, s.Positions)
	return model.Snapshot{
		PortfolioID: portfolioID,
		Date:        s.AsOf,
		CashBalance: s.CashBalance,
		Positions:   positions,
		Incomplete:  len(s.Unmatched) > 0,
	}
}

// ReplayOption adjusts how a replay treats inconsistent input.
type ReplayOption func(*replayer)

// Lenient makes sells that exceed the open lots consume what is there and
// record the rest in State.Unmatched instead of failing. Quantities and cash
// are unaffected by lot matching, so lenient replays still value correctly.
func Lenient() ReplayOption {
	return func(r *replayer) { r.strict = false }
}

// Replay folds the transactions dated on or before asOf, in (date, seq)
// order, into cash, positions and lots. A sell that exceeds its open lots
// returns an *apperrors.InsufficientLotsError unless Lenient is given.
func Replay(txs []model.Transaction, asOf time.Time, opts ...ReplayOption) (State, error) {
	r := newReplayer(opts...)
	asOf = model.Day(asOf)
	for _, tx := range model.SortedTransactions(txs) {
		if tx.Date.After(asOf) {
			break
		}
		if err := r.apply(tx); err != nil {
			return State{}, err
		}
	}
	return r.state(asOf, true), nil
}

// SnapshotAt replays txs leniently to date and returns the snapshot.
func SnapshotAt(portfolioID string, txs []model.Transaction, date time.Time) (model.Snapshot, error) {
	state, err := Replay(txs, date, Lenient())
	if err != nil {
		return model.Snapshot{}, err
	}
	return state.Snapshot(portfolioID), nil
}

// SnapshotSeries produces one snapshot per date in a single pass over txs.
// Dates must be ascending. Each snapshot equals SnapshotAt for its date.
func SnapshotSeries(portfolioID string, txs []model.Transaction, dates []time.Time, opts ...ReplayOption) ([]model.Snapshot, error) {
	opts = append([]ReplayOption{Lenient()}, opts...)
	r := newReplayer(opts...)
	sorted := model.SortedTransactions(txs)

	snapshots := make([]model.Snapshot, 0, len(dates))
	next := 0
	var prev time.Time
	for i, d := range dates {
		d = model.Day(d)
		if i > 0 && d.Before(prev) {
			return nil, fmt.Errorf("snapshot dates must be ascending: %s after %s",
				d.Format(model.DateLayout), prev.Format(model.DateLayout))
		}
		prev = d

		for next < len(sorted) && !sorted[next].Date.After(d) {
			if err := r.apply(sorted[next]); err != nil {
				return nil, err
			}
			next++
		}
		snapshots = append(snapshots, r.state(d, false).Snapshot(portfolioID))
	}
	return snapshots, nil
}

type positionAcc struct {
	quantity      decimal.Decimal
	averageTotal  decimal.Decimal
	firstAcquired time.Time
}

type replayer struct {
	strict    bool
	cash      decimal.Decimal
	positions map[string]*positionAcc
	book      *LotBook
	unmatched map[string]decimal.Decimal
}

func newReplayer(opts ...ReplayOption) *replayer {
	r := &replayer{
		strict:    true,
		positions: make(map[string]*positionAcc),
		book:      NewLotBook(),
		unmatched: make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *replayer) position(ticker string) *positionAcc {
	p, ok := r.positions[ticker]
	if !ok {
		p = &positionAcc{}
		r.positions[ticker] = p
	}
	return p
}

func (r *replayer) apply(tx model.Transaction) error {
	amount := decimal.NewFromFloat(tx.Amount)
	qty := decimal.NewFromFloat(tx.Quantity)

	switch tx.Type {
	case model.TransactionBuy, model.TransactionDividendReinvest:
		p := r.position(tx.Ticker)
		if p.quantity.LessThanOrEqual(decEpsilon) {
			p.firstAcquired = model.Day(tx.Date)
			p.averageTotal = decimal.Zero
		}
		p.quantity = p.quantity.Add(qty)
		p.averageTotal = p.averageTotal.Add(qty.Mul(decimal.NewFromFloat(tx.UnitPrice())))
		r.book.Acquire(tx)
		r.cash = r.cash.Add(amount)

	case model.TransactionSell:
		if r.strict {
			if _, err := r.book.Dispose(tx); err != nil {
				return err
			}
		} else if _, short := r.book.DisposeAvailable(tx); short > QuantityEpsilon {
			r.unmatched[tx.Ticker] = r.unmatched[tx.Ticker].Add(decimal.NewFromFloat(short))
		}
		p := r.position(tx.Ticker)
		sold := qty.Neg()
		if p.quantity.GreaterThan(decEpsilon) {
			kept := decimal.Max(p.quantity.Sub(sold), decimal.Zero)
			p.averageTotal = p.averageTotal.Mul(kept).Div(p.quantity)
		}
		p.quantity = p.quantity.Add(qty)
		r.cash = r.cash.Add(amount)

	case model.TransactionDividend, model.TransactionCash:
		r.cash = r.cash.Add(amount)

	default:
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	return nil
}

// state materializes the accumulators. withLots clones the lot book so the
// returned State stays valid while the replayer keeps advancing.
func (r *replayer) state(asOf time.Time, withLots bool) State {
	tickers := make([]string, 0, len(r.positions))
	for ticker := range r.positions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	positions := make([]model.Position, 0, len(tickers))
	for _, ticker := range tickers {
		p := r.positions[ticker]
		qty := p.quantity.InexactFloat64()
		closed := p.quantity.LessThanOrEqual(decEpsilon)

		pos := model.Position{
			Ticker:        ticker,
			Quantity:      qty,
			FirstAcquired: p.firstAcquired,
			Closed:        closed,
		}
		if !closed {
			pos.AverageCost = p.averageTotal.Div(p.quantity).InexactFloat64()
			lotQty := sumRemaining(r.book.queues[ticker])
			if lotQty.Sub(p.quantity).Abs().LessThanOrEqual(decEpsilon) {
				pos.CostBasis = r.book.CostBasis(ticker)
			} else {
				pos.CostBasis = p.averageTotal.InexactFloat64()
			}
		}
		positions = append(positions, pos)
	}

	unmatched := make(map[string]float64, len(r.unmatched))
	for ticker, q := range r.unmatched {
		unmatched[ticker] = q.InexactFloat64()
	}

	state := State{
		AsOf:        asOf,
		CashBalance: r.cash.InexactFloat64(),
		Positions:   positions,
		Unmatched:   unmatched,
	}
	if withLots {
		state.Lots = r.book.clone()
	}
	return state
}
