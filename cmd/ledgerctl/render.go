package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/ledger"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// formatter renders amounts in one currency.
type formatter struct {
	currency string
}

// money formats an amount with the currency's grapheme and minor units.
func (f formatter) money(amount float64) string {
	return money.NewFromFloat(amount, f.currency).Display()
}

// signed is money with an explicit + for gains. Zero prints as "-".
func (f formatter) signed(amount float64) string {
	m := money.NewFromFloat(amount, f.currency)
	switch {
	case m.IsZero():
		return "-"
	case m.IsPositive():
		return "+" + m.Display()
	}
	return m.Display()
}

func quantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func percent(r float64) string {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(r*100, 'f', 2, 64) + "%"
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return model.DateKey(t)
}

// printMarkdown renders md for the terminal, or writes it as is when raw.
func printMarkdown(w io.Writer, md string, raw bool) error {
	if raw {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func holdingsMarkdown(state ledger.State, f formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Holdings on %s\n\n", day(state.AsOf))
	fmt.Fprintf(&b, "Cash balance: **%s**\n\n", f.money(state.CashBalance))

	open := state.OpenPositions()
	if len(open) == 0 {
		b.WriteString("No open positions.\n")
	} else {
		b.WriteString("| Ticker | Quantity | Cost basis | Average cost | First acquired |\n")
		b.WriteString("|:---|---:|---:|---:|:---|\n")
		for _, p := range open {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				p.Ticker, quantity(p.Quantity), f.money(p.CostBasis), f.money(p.AverageCost), day(p.FirstAcquired))
		}
	}
	fmt.Fprintf(&b, "\nRealized gain to date: **%s**\n", f.signed(state.RealizedGain()))

	if len(state.Unmatched) > 0 {
		b.WriteString("\n## Unmatched sales\n\n")
		for _, ticker := range sortedKeys(state.Unmatched) {
			fmt.Fprintf(&b, "- %s: %s shares sold without an open lot\n", ticker, quantity(state.Unmatched[ticker]))
		}
	}
	return b.String()
}

func lotsMarkdown(book *ledger.LotBook, asOf time.Time, ticker string, f formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Open lots on %s\n\n", day(asOf))

	tickers := book.Tickers()
	if ticker != "" {
		tickers = []string{ticker}
	}

	found := false
	for _, t := range tickers {
		lots := book.Open(t)
		if len(lots) == 0 {
			continue
		}
		found = true
		fmt.Fprintf(&b, "## %s\n\n", t)
		b.WriteString("| Acquired | Original | Remaining | Cost/share | Cost basis |\n")
		b.WriteString("|:---|---:|---:|---:|---:|\n")
		for _, l := range lots {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				day(l.AcquiredOn), quantity(l.OriginalQuantity), quantity(l.RemainingQuantity),
				f.money(l.CostPerShare), f.money(l.CostPerShare*l.RemainingQuantity))
		}
		fmt.Fprintf(&b, "\nTotal: %s shares, %s\n\n", quantity(book.OpenQuantity(t)), f.money(book.CostBasis(t)))
	}
	if !found {
		b.WriteString("No open lots.\n")
	}
	return b.String()
}

func taxMarkdown(s model.TaxSummary, f formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tax summary %d\n\n", s.Year)
	if !s.Taxable {
		b.WriteString("Tax-advantaged account: nothing to report.\n")
		return b.String()
	}

	b.WriteString("| | Amount | Rate |\n|:---|---:|---:|\n")
	fmt.Fprintf(&b, "| Short-term gains | %s | %s |\n", f.signed(s.ShortTermGains), percent(s.Rates.ShortTermCapitalGains))
	fmt.Fprintf(&b, "| Long-term gains | %s | %s |\n", f.signed(s.LongTermGains), percent(s.Rates.LongTermCapitalGains))
	fmt.Fprintf(&b, "| Dividend income | %s | %s |\n", f.money(s.DividendIncomeYTD), percent(s.Rates.QualifiedDividends))
	fmt.Fprintf(&b, "\nEstimated tax due: **%s**\n", f.money(s.EstimatedTaxDue))

	if len(s.GainsByTicker) > 0 {
		b.WriteString("\n## By ticker\n\n")
		b.WriteString("| Ticker | Proceeds | Cost basis | Gain | Term |\n|:---|---:|---:|---:|:---|\n")
		for _, g := range s.GainsByTicker {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				g.Ticker, f.money(g.Proceeds), f.money(g.CostBasis), f.signed(g.RealizedGain), g.TermType)
		}
	}
	return b.String()
}

func valueMarkdown(v ledger.Valuation, includeCash bool, f formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Value on %s\n\n", day(v.Date))

	if len(v.Lines) > 0 {
		b.WriteString("| Ticker | Quantity | Price | Price date | Value | Unrealized |\n")
		b.WriteString("|:---|---:|---:|:---|---:|---:|\n")
		for _, l := range v.Lines {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				l.Ticker, quantity(l.Quantity), f.money(l.Price), day(l.PriceDate), f.money(l.Value), f.signed(l.Value-l.CostBasis))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Holdings: **%s**\n\n", f.money(v.HoldingsValue))
	if includeCash {
		fmt.Fprintf(&b, "Cash: **%s**\n\n", f.money(v.Cash))
	}
	fmt.Fprintf(&b, "Total: **%s**\n", f.money(v.Total))

	if len(v.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range v.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
