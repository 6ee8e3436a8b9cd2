package model

import "time"

// ReturnMode names the method used to build a growth index.
type ReturnMode string

// Return modes. Simple mode is used when flow-adjusted returns cannot be computed.
const (
	ReturnTimeWeighted ReturnMode = "time-weighted"
	ReturnSimple       ReturnMode = "simple"
)

// PerformancePoint is one day of a performance series.
type PerformancePoint struct {
	Date           time.Time `json:"date"`
	Value          float64   `json:"value"`
	CostBasis      float64   `json:"costBasis"`
	Flow           float64   `json:"flow,omitempty"`
	Index          float64   `json:"index"`
	Benchmark      float64   `json:"benchmark,omitempty"`
	BenchmarkIndex float64   `json:"benchmarkIndex,omitempty"`
}

// PerformanceSeries is a growth index for a portfolio and, optionally, a benchmark.
type PerformanceSeries struct {
	PortfolioID               string             `json:"portfolioId"`
	Period                    string             `json:"period"`
	Benchmark                 string             `json:"benchmark,omitempty"`
	Mode                      ReturnMode         `json:"mode"`
	StartDate                 time.Time          `json:"startDate"`
	EndDate                   time.Time          `json:"endDate"`
	Days                      int                `json:"days"`
	TotalReturn               float64            `json:"totalReturn"`
	AnnualizedReturn          float64            `json:"annualizedReturn"`
	BenchmarkTotalReturn      float64            `json:"benchmarkTotalReturn"`
	BenchmarkAnnualizedReturn float64            `json:"benchmarkAnnualizedReturn"`
	Points                    []PerformancePoint `json:"points"`
	Notes                     []string           `json:"notes,omitempty"`
}
