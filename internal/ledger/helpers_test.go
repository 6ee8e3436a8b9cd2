package ledger

import (
	"time"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// day parses a YYYY-MM-DD date or panics; test input only.
func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type txSeq struct {
	seq int64
	txs []model.Transaction
}

func (s *txSeq) add(tx model.Transaction) *txSeq {
	s.seq++
	tx.Seq = s.seq
	if tx.ID == "" {
		tx.ID = tx.Ticker + "-" + tx.Date.Format(model.DateLayout) + "-" + string(tx.Type)
	}
	s.txs = append(s.txs, tx)
	return s
}

func (s *txSeq) buy(date, ticker string, qty, price float64) *txSeq {
	return s.add(model.Transaction{
		Type: model.TransactionBuy, Ticker: ticker, Date: day(date),
		Quantity: qty, Price: model.Float64Ptr(price), Amount: -qty * price,
	})
}

func (s *txSeq) sell(date, ticker string, qty, price float64) *txSeq {
	return s.add(model.Transaction{
		Type: model.TransactionSell, Ticker: ticker, Date: day(date),
		Quantity: -qty, Price: model.Float64Ptr(price), Amount: qty * price,
	})
}

func (s *txSeq) cash(date string, amount float64) *txSeq {
	return s.add(model.Transaction{Type: model.TransactionCash, Date: day(date), Amount: amount})
}

func (s *txSeq) dividend(date, ticker string, amount float64) *txSeq {
	return s.add(model.Transaction{Type: model.TransactionDividend, Ticker: ticker, Date: day(date), Amount: amount})
}

func (s *txSeq) reinvest(date, ticker string, qty, price float64) *txSeq {
	return s.add(model.Transaction{
		Type: model.TransactionDividendReinvest, Ticker: ticker, Date: day(date),
		Quantity: qty, Price: model.Float64Ptr(price), Amount: 0,
	})
}

func ledgerOf() *txSeq { return &txSeq{} }
