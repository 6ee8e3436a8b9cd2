package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/yahoo"
)

// MockYahooClient is a mock implementation of yahoo.Client for testing.
// It returns predefined test data instead of making actual API calls and is
// safe for the concurrent use PriceService.RefreshPrices makes of it.
type MockYahooClient struct {
	mu sync.Mutex
	// MockResponse is the response returned for symbols without an entry in Responses.
	MockResponse yahoo.Response
	// Responses holds per-symbol responses.
	Responses map[string]yahoo.Response
	// MockError is returned for every symbol when set.
	MockError error
	// Errors holds per-symbol errors.
	Errors map[string]error
	// Queries records each queried symbol in call order.
	Queries []string
}

// NewMockYahooClient creates a new mock Yahoo client with default test data.
// The default data includes 5 days of closes ending yesterday.
func NewMockYahooClient() *MockYahooClient {
	return &MockYahooClient{
		MockResponse: CreateMockYahooResponse(5),
		Responses:    make(map[string]yahoo.Response),
		Errors:       make(map[string]error),
	}
}

// QueryYahooSymbolByDateRange returns the configured response or error for symbol.
func (m *MockYahooClient) QueryYahooSymbolByDateRange(ctx context.Context, symbol string, _, _ time.Time) (yahoo.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Queries = append(m.Queries, symbol)
	if err := ctx.Err(); err != nil {
		return yahoo.Response{}, err
	}
	if err, ok := m.Errors[symbol]; ok {
		return yahoo.Response{}, err
	}
	if m.MockError != nil {
		return yahoo.Response{}, m.MockError
	}
	if resp, ok := m.Responses[symbol]; ok {
		return resp, nil
	}
	return m.MockResponse, nil
}

// ParseChart delegates to the real ParseChart method since it's pure logic with no side effects.
func (m *MockYahooClient) ParseChart(yahooResult yahoo.Response) (yahoo.PriceChart, error) {
	return yahoo.NewFinanceClient(yahoo.Options{}).ParseChart(yahooResult)
}

// QueryCount returns how many queries were made.
func (m *MockYahooClient) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// WithError configures the mock to return the specified error for every symbol.
func (m *MockYahooClient) WithError(err error) *MockYahooClient {
	m.MockError = err
	return m
}

// WithSymbolError configures the mock to fail for one symbol only.
func (m *MockYahooClient) WithSymbolError(symbol string, err error) *MockYahooClient {
	m.Errors[symbol] = err
	return m
}

// WithResponse configures the default response.
func (m *MockYahooClient) WithResponse(resp yahoo.Response) *MockYahooClient {
	m.MockResponse = resp
	return m
}

// WithSymbolResponse configures the response for one symbol.
func (m *MockYahooClient) WithSymbolResponse(symbol string, resp yahoo.Response) *MockYahooClient {
	m.Responses[symbol] = resp
	return m
}

// WithEmptyResponse configures the mock to return an empty response (no data).
func (m *MockYahooClient) WithEmptyResponse() *MockYahooClient {
	m.MockResponse = yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{},
		},
	}
	return m
}

// CreateMockYahooResponse creates a mock Yahoo Finance API response with
// `days` days of closes ending yesterday. Day i closes at 100.25 + 0.5*i.
func CreateMockYahooResponse(days int) yahoo.Response {
	yesterday := Today().AddDate(0, 0, -1)

	timestamps := make([]int64, days)
	opens := make([]*float64, days)
	highs := make([]*float64, days)
	lows := make([]*float64, days)
	closes := make([]*float64, days)
	volumes := make([]*int64, days)

	basePrice := 100.0
	for i := range days {
		date := yesterday.AddDate(0, 0, -days+i+1)
		timestamps[i] = date.Unix()

		dayPrice := basePrice + float64(i)*0.5
		open := dayPrice
		high := dayPrice + 1.0
		low := dayPrice - 0.5
		closePrice := dayPrice + 0.25
		volume := int64(1000000 + i*10000)

		opens[i] = &open
		highs[i] = &high
		lows[i] = &low
		closes[i] = &closePrice
		volumes[i] = &volume
	}

	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{
				{
					Meta: yahoo.Meta{
						Symbol:           "TEST",
						Currency:         "USD",
						ExchangeName:     "NMS",
						FullExchangeName: "NASDAQ",
						LongName:         "Test Holdings Inc.",
						Shortname:        "TEST",
					},
					Timestamp: timestamps,
					Indicators: yahoo.IndicatorsContainer{
						Quote: []yahoo.Quote{
							{
								Open:   opens,
								High:   highs,
								Low:    lows,
								Close:  closes,
								Volume: volumes,
							},
						},
					},
				},
			},
		},
	}
}

// CreateMockYahooResponseForDate creates a mock Yahoo response with a single day's data.
func CreateMockYahooResponseForDate(date time.Time, price float64) yahoo.Response {
	volume := int64(1000000)

	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{
				{
					Meta:      yahoo.Meta{Symbol: "TEST", Currency: "USD"},
					Timestamp: []int64{date.Unix()},
					Indicators: yahoo.IndicatorsContainer{
						Quote: []yahoo.Quote{
							{
								Open:   []*float64{&price},
								High:   []*float64{&price},
								Low:    []*float64{&price},
								Close:  []*float64{&price},
								Volume: []*int64{&volume},
							},
						},
					},
				},
			},
		},
	}
}

// CreateMockYahooErrorResponse creates a mock Yahoo response with an embedded API error.
func CreateMockYahooErrorResponse(code, description string) yahoo.Response {
	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{},
			Error:  &yahoo.Error{Code: code, Description: description},
		},
	}
}
