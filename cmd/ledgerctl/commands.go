package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/config"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/ledger"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// parseDay parses a -d flag value; "today" and the empty string mean today.
func parseDay(s string) (time.Time, error) {
	if s == "" || strings.EqualFold(s, "today") {
		return model.Day(time.Now()), nil
	}
	return model.ParseDate(s)
}

// run loads the shared inputs, builds a report and prints it.
func run(in *inputFlags, report func(txs []model.Transaction, f formatter) (string, error)) subcommands.ExitStatus {
	f, err := in.formatter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	txs, err := in.loadLedger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	md, err := report(txs, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := printMarkdown(os.Stdout, md, in.raw); err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering report: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// replayCmd holds the flags for the 'replay' subcommand.
type replayCmd struct {
	inputFlags
	date   string
	strict bool
}

func (*replayCmd) Name() string     { return "replay" }
func (*replayCmd) Synopsis() string { return "replay the ledger into cash and positions" }
func (*replayCmd) Usage() string {
	return `ledgerctl replay [-ledger <file>] [-d <date>] [-strict]

  Replays every transaction dated on or before the date and prints the cash
  balance and open positions with their FIFO cost basis.
`
}

func (c *replayCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.date, "d", "today", "replay up to and including this date (YYYY-MM-DD)")
	f.BoolVar(&c.strict, "strict", false, "fail when a sale exceeds its open lots")
}

func (c *replayCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(&c.inputFlags, c.report)
}

func (c *replayCmd) report(txs []model.Transaction, f formatter) (string, error) {
	asOf, err := parseDay(c.date)
	if err != nil {
		return "", err
	}
	var opts []ledger.ReplayOption
	if !c.strict {
		opts = append(opts, ledger.Lenient())
	}
	state, err := ledger.Replay(txs, asOf, opts...)
	if err != nil {
		return "", err
	}
	return holdingsMarkdown(state, f), nil
}

// lotsCmd holds the flags for the 'lots' subcommand.
type lotsCmd struct {
	inputFlags
	date   string
	ticker string
}

func (*lotsCmd) Name() string     { return "lots" }
func (*lotsCmd) Synopsis() string { return "list open FIFO lots" }
func (*lotsCmd) Usage() string {
	return `ledgerctl lots [-ledger <file>] [-d <date>] [-t <ticker>]

  Lists the open acquisition lots, oldest first, after every sale dated on or
  before the date has consumed its shares.
`
}

func (c *lotsCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.date, "d", "today", "lot state as of this date (YYYY-MM-DD)")
	f.StringVar(&c.ticker, "t", "", "only this ticker")
}

func (c *lotsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(&c.inputFlags, c.report)
}

func (c *lotsCmd) report(txs []model.Transaction, f formatter) (string, error) {
	asOf, err := parseDay(c.date)
	if err != nil {
		return "", err
	}
	book, err := ledger.TrackLots(txs, asOf)
	if err != nil {
		return "", err
	}
	return lotsMarkdown(book, asOf, strings.ToUpper(strings.TrimSpace(c.ticker)), f), nil
}

// taxCmd holds the flags for the 'tax' subcommand.
type taxCmd struct {
	inputFlags
	year       int
	ratesPath  string
	ira        bool
	reinvested bool
}

func (*taxCmd) Name() string     { return "tax" }
func (*taxCmd) Synopsis() string { return "summarize realized gains and estimated tax for a year" }
func (*taxCmd) Usage() string {
	return `ledgerctl tax [-ledger <file>] [-year <yyyy>] [-rates <file.toml>] [-ira]

  Splits the year's realized gains into short and long term, adds dividend
  income and applies the rate schedule.
`
}

func (c *taxCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.IntVar(&c.year, "year", time.Now().UTC().Year(), "calendar year")
	f.StringVar(&c.ratesPath, "rates", "", "TOML rate schedule; TAX_RATE_* variables override it")
	f.BoolVar(&c.ira, "ira", false, "treat the ledger as a tax-advantaged account")
	f.BoolVar(&c.reinvested, "reinvested", true, "count reinvested dividends as income")
}

func (c *taxCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(&c.inputFlags, c.report)
}

func (c *taxCmd) report(txs []model.Transaction, f formatter) (string, error) {
	rates, err := config.LoadTaxRates(c.ratesPath, config.DefaultTaxRates)
	if err != nil {
		return "", err
	}
	opts := ledger.DefaultTaxOptions(rates)
	opts.IncludeReinvestedDividends = c.reinvested
	if c.ira {
		opts.AccountType = model.AccountIRA
	}

	summary, err := ledger.EstimateTax(txs, c.year, opts)
	if err != nil {
		return "", err
	}
	return taxMarkdown(summary, f), nil
}

// valueCmd holds the flags for the 'value' subcommand.
type valueCmd struct {
	inputFlags
	date string
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "value the portfolio on a date" }
func (*valueCmd) Usage() string {
	return `ledgerctl value -prices <file> [-ledger <file>] [-d <date>]

  Prices every open position with the latest close on or before the date.
  Positions without any usable close are listed as warnings.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.date, "d", "today", "valuation date (YYYY-MM-DD)")
}

func (c *valueCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(&c.inputFlags, c.report)
}

func (c *valueCmd) report(txs []model.Transaction, f formatter) (string, error) {
	date, err := parseDay(c.date)
	if err != nil {
		return "", err
	}
	prices, err := c.loadPrices()
	if err != nil {
		return "", err
	}
	state, err := ledger.Replay(txs, date, ledger.Lenient())
	if err != nil {
		return "", err
	}

	includeCash := false
	for _, tx := range txs {
		if tx.Type == model.TransactionCash {
			includeCash = true
			break
		}
	}
	v := ledger.ValueAt(date, state.OpenPositions(), state.CashBalance, includeCash, prices)
	return valueMarkdown(v, includeCash, f), nil
}
