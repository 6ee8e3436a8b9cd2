package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

const sampleLedger = `# opening deposit
{"type":"cash","date":"2023-01-02","amount":2000}

{"type":"buy","ticker":"aapl","date":"2023-01-03","quantity":10,"price":100,"amount":-1000}
{"type":"buy","ticker":"AAPL","date":"2023-02-01","quantity":5,"price":120,"amount":-600}
{"type":"sell","ticker":"AAPL","date":"2023-06-01","quantity":-12,"price":150,"amount":1800}
`

var usd = formatter{currency: "USD"}

func sampleTransactions(t *testing.T) []model.Transaction {
	t.Helper()
	txs, err := readLedger(strings.NewReader(sampleLedger))
	require.NoError(t, err)
	return txs
}

func TestReadLedger(t *testing.T) {
	t.Run("skips comments and blank lines", func(t *testing.T) {
		txs := sampleTransactions(t)
		require.Len(t, txs, 4)

		assert.Equal(t, "L2", txs[0].ID)
		assert.Equal(t, int64(2), txs[0].Seq)
		assert.Equal(t, model.TransactionCash, txs[0].Type)

		assert.Equal(t, "AAPL", txs[1].Ticker)
		assert.Equal(t, int64(4), txs[1].Seq)
		assert.Equal(t, "2023-01-03", model.DateKey(txs[1].Date))
	})

	t.Run("reports every bad line", func(t *testing.T) {
		in := `{"type":"buy","ticker":"AAPL","date":"2023-01-03","quantity":10,"price":100,"amount":-1000}
{"type":"buy","ticker":"AAPL","date":"03/01/2023","quantity":1,"amount":-1}
{"type":"cash","date":"2023-01-02","amount":1,"fee":2}
not json
`
		_, err := readLedger(strings.NewReader(in))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
		assert.Contains(t, err.Error(), "line 3")
		assert.Contains(t, err.Error(), "line 4")
		assert.NotContains(t, err.Error(), "line 1:")
	})

	t.Run("dividend needs a ticker", func(t *testing.T) {
		in := `{"type":"buy","ticker":"AAPL","date":"2023-01-03","quantity":10,"price":100,"amount":-1000}
{"type":"dividend","date":"2023-03-01","amount":12.5}
`
		_, err := readLedger(strings.NewReader(in))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2: ticker: is required for dividend")
	})

	t.Run("empty input", func(t *testing.T) {
		txs, err := readLedger(strings.NewReader("\n# nothing yet\n"))
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestReadPrices(t *testing.T) {
	t.Run("groups by ticker", func(t *testing.T) {
		table, err := readPrices([]byte(`{"prices":[
			{"ticker":"aapl","date":"2023-06-30","price":130},
			{"ticker":"AAPL","date":"2023-06-01","price":150}
		]}`))
		require.NoError(t, err)

		p, ok := table.PriceOn("AAPL", time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC))
		require.True(t, ok)
		assert.Equal(t, 150.0, p.Price)
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			data string
		}{
			{"not json", `prices`},
			{"no prices", `{"prices":[]}`},
			{"bad date", `{"prices":[{"ticker":"AAPL","date":"June 1","price":1}]}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := readPrices([]byte(tt.data))
				assert.ErrorContains(t, err, "invalid price file")
			})
		}
	})
}

func TestFormatter(t *testing.T) {
	in := inputFlags{currency: "eur"}
	f, err := in.formatter()
	require.NoError(t, err)
	assert.Equal(t, "EUR", f.currency)

	in.currency = "XXX1"
	_, err = in.formatter()
	assert.ErrorContains(t, err, "unknown currency")

	assert.Equal(t, "$2,200.00", usd.money(2200))
	assert.Equal(t, "+$560.00", usd.signed(560))
	assert.Equal(t, "-", usd.signed(0))
	assert.Equal(t, "n/a", percent(1.0/zero()))
	assert.Equal(t, "12.50%", percent(0.125))
}

func zero() float64 { return 0 }

func TestParseDay(t *testing.T) {
	today := model.Day(time.Now())
	for _, s := range []string{"", "today", "TODAY"} {
		d, err := parseDay(s)
		require.NoError(t, err)
		assert.True(t, d.Equal(today))
	}

	d, err := parseDay("2023-06-01")
	require.NoError(t, err)
	assert.Equal(t, "2023-06-01", model.DateKey(d))

	_, err = parseDay("yesterday")
	assert.Error(t, err)
}

func TestReplayReport(t *testing.T) {
	txs := sampleTransactions(t)

	t.Run("after the sale", func(t *testing.T) {
		md, err := (&replayCmd{date: "2023-12-31"}).report(txs, usd)
		require.NoError(t, err)

		assert.Contains(t, md, "# Holdings on 2023-12-31")
		assert.Contains(t, md, "Cash balance: **$2,200.00**")
		assert.Contains(t, md, "| AAPL | 3 | $360.00 |")
		assert.Contains(t, md, "Realized gain to date: **+$560.00**")
		assert.NotContains(t, md, "Unmatched")
	})

	t.Run("before any trade", func(t *testing.T) {
		md, err := (&replayCmd{date: "2023-01-02"}).report(txs, usd)
		require.NoError(t, err)
		assert.Contains(t, md, "No open positions.")
		assert.Contains(t, md, "Cash balance: **$2,000.00**")
	})

	t.Run("oversold", func(t *testing.T) {
		oversold, err := readLedger(strings.NewReader(
			`{"type":"sell","ticker":"MSFT","date":"2023-03-01","quantity":-5,"price":10,"amount":50}`))
		require.NoError(t, err)

		md, err := (&replayCmd{date: "2023-12-31"}).report(oversold, usd)
		require.NoError(t, err)
		assert.Contains(t, md, "- MSFT: 5 shares sold without an open lot")

		_, err = (&replayCmd{date: "2023-12-31", strict: true}).report(oversold, usd)
		assert.Error(t, err)
	})
}

func TestLotsReport(t *testing.T) {
	txs := sampleTransactions(t)

	md, err := (&lotsCmd{date: "2023-12-31"}).report(txs, usd)
	require.NoError(t, err)
	assert.Contains(t, md, "## AAPL")
	assert.Contains(t, md, "| 2023-02-01 | 5 | 3 | $120.00 | $360.00 |")
	assert.NotContains(t, md, "| 2023-01-03 |")
	assert.Contains(t, md, "Total: 3 shares, $360.00")

	md, err = (&lotsCmd{date: "2023-01-31"}).report(txs, usd)
	require.NoError(t, err)
	assert.Contains(t, md, "| 2023-01-03 | 10 | 10 | $100.00 | $1,000.00 |")

	md, err = (&lotsCmd{date: "2023-12-31", ticker: " msft "}).report(txs, usd)
	require.NoError(t, err)
	assert.Contains(t, md, "No open lots.")
}

func TestTaxReport(t *testing.T) {
	txs := sampleTransactions(t)

	rates := filepath.Join(t.TempDir(), "rates.toml")
	require.NoError(t, os.WriteFile(rates, []byte(
		"shortTermCapitalGains = 0.30\nlongTermCapitalGains = 0.15\nqualifiedDividends = 0.15\n"), 0o600))

	t.Run("taxable", func(t *testing.T) {
		md, err := (&taxCmd{year: 2023, ratesPath: rates}).report(txs, usd)
		require.NoError(t, err)
		assert.Contains(t, md, "# Tax summary 2023")
		assert.Contains(t, md, "| Short-term gains | +$560.00 | 30.00% |")
		assert.Contains(t, md, "| Long-term gains | - | 15.00% |")
		assert.Contains(t, md, "Estimated tax due: **$168.00**")
		assert.Contains(t, md, "| AAPL | $1,800.00 | $1,240.00 | +$560.00 | short-term |")
	})

	t.Run("other year", func(t *testing.T) {
		md, err := (&taxCmd{year: 2022, ratesPath: rates}).report(txs, usd)
		require.NoError(t, err)
		assert.Contains(t, md, "Estimated tax due: **$0.00**")
		assert.NotContains(t, md, "## By ticker")
	})

	t.Run("ira", func(t *testing.T) {
		md, err := (&taxCmd{year: 2023, ratesPath: rates, ira: true}).report(txs, usd)
		require.NoError(t, err)
		assert.Contains(t, md, "Tax-advantaged account")
	})

	t.Run("missing rates file", func(t *testing.T) {
		_, err := (&taxCmd{year: 2023, ratesPath: filepath.Join(t.TempDir(), "none.toml")}).report(txs, usd)
		assert.Error(t, err)
	})
}

func TestValueReport(t *testing.T) {
	txs := sampleTransactions(t)

	prices := filepath.Join(t.TempDir(), "prices.json")
	require.NoError(t, os.WriteFile(prices, []byte(`{"prices":[{"ticker":"AAPL","date":"2023-06-30","price":130}]}`), 0o600))

	cmd := &valueCmd{inputFlags: inputFlags{pricesPath: prices}, date: "2023-07-01"}
	md, err := cmd.report(txs, usd)
	require.NoError(t, err)
	assert.Contains(t, md, "| AAPL | 3 | $130.00 | 2023-06-30 | $390.00 | +$30.00 |")
	assert.Contains(t, md, "Holdings: **$390.00**")
	assert.Contains(t, md, "Cash: **$2,200.00**")
	assert.Contains(t, md, "Total: **$2,590.00**")
	assert.NotContains(t, md, "## Warnings")

	t.Run("no prices", func(t *testing.T) {
		md, err := (&valueCmd{date: "2023-07-01"}).report(txs, usd)
		require.NoError(t, err)
		assert.Contains(t, md, "## Warnings")
		assert.Contains(t, md, "no price data for AAPL")
	})
}

func TestPrintMarkdownRaw(t *testing.T) {
	var b strings.Builder
	require.NoError(t, printMarkdown(&b, "# Title\n", true))
	assert.Equal(t, "# Title\n", b.String())
}
