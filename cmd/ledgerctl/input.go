package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Rhymond/go-money"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api/request"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/ledger"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/validation"
)

// inputFlags are the flags shared by every command.
type inputFlags struct {
	ledgerPath string
	pricesPath string
	currency   string
	raw        bool
}

func (in *inputFlags) register(f *flag.FlagSet) {
	f.StringVar(&in.ledgerPath, "ledger", "ledger.jsonl", "ledger file, one transaction JSON object per line")
	f.StringVar(&in.pricesPath, "prices", "", "optional price file, a JSON object {\"prices\": [{ticker, date, price}]}")
	f.StringVar(&in.currency, "c", money.USD, "ISO 4217 code used to format amounts")
	f.BoolVar(&in.raw, "raw", false, "print plain markdown instead of rendering it")
}

func (in *inputFlags) formatter() (formatter, error) {
	code := strings.ToUpper(in.currency)
	if money.GetCurrency(code) == nil {
		return formatter{}, fmt.Errorf("unknown currency %q", in.currency)
	}
	return formatter{currency: code}, nil
}

func (in *inputFlags) loadLedger() ([]model.Transaction, error) {
	f, err := os.Open(in.ledgerPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLedger(f)
}

func (in *inputFlags) loadPrices() (*ledger.PriceTable, error) {
	if in.pricesPath == "" {
		return ledger.NewPriceTable(nil), nil
	}
	data, err := os.ReadFile(in.pricesPath)
	if err != nil {
		return nil, err
	}
	return readPrices(data)
}

// readLedger parses one transaction per non-blank line. Lines starting with
// # are comments. Entries get their line number as insertion sequence, so
// same-day entries replay in file order.
func readLedger(r io.Reader) ([]model.Transaction, error) {
	var txs []model.Transaction
	var errs []error

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}

		var req request.TransactionRequest
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		tx, err := model.NewTransaction("", req.Input())
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		tx.ID = fmt.Sprintf("L%d", line)
		tx.Seq = int64(line)
		txs = append(txs, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return txs, nil
}

// readPrices parses a price file in the shape of a manual price upload.
func readPrices(data []byte) (*ledger.PriceTable, error) {
	var req request.StorePricesRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid price file: %w", err)
	}
	points, err := validation.ValidateStorePrices(req)
	if err != nil {
		return nil, fmt.Errorf("invalid price file: %w", err)
	}

	series := make(map[string][]model.PricePoint)
	for _, p := range points {
		p.Ticker = strings.ToUpper(strings.TrimSpace(p.Ticker))
		series[p.Ticker] = append(series[p.Ticker], p)
	}
	return ledger.NewPriceTable(series), nil
}
