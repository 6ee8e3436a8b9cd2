// Package scheduler runs the periodic background jobs of the server: the
// price refresh for every traded ticker followed by a rebuild of each active
// portfolio's snapshots against the new prices.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/model"
)

// DefaultJobTimeout bounds one scheduled run.
const DefaultJobTimeout = 30 * time.Minute

// PriceRefresher fetches missing prices. An empty tickers list means every
// traded ticker.
type PriceRefresher interface {
	RefreshPrices(ctx context.Context, tickers []string) (model.PriceRefreshResult, error)
}

// SnapshotMaterializer rebuilds the stored snapshots of one portfolio.
type SnapshotMaterializer interface {
	Materialize(ctx context.Context, portfolioID string) (int, error)
}

// PortfolioLister lists portfolios.
type PortfolioLister interface {
	GetPortfolios(ctx context.Context, filter model.PortfolioFilter) ([]model.Portfolio, error)
}

// Scheduler wraps a UTC cron runner with the refresh job registered on it.
type Scheduler struct {
	cron       *cron.Cron
	entry      cron.EntryID
	prices     PriceRefresher
	snapshots  SnapshotMaterializer
	portfolios PortfolioLister
	logger     *log.Logger
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the refresh job on spec, a standard five-field cron
// expression evaluated in UTC. The scheduler does not run until Start.
func New(spec string, prices PriceRefresher, snapshots SnapshotMaterializer, portfolios PortfolioLister, logger *log.Logger) (*Scheduler, error) {
	adapter := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		prices:     prices,
		snapshots:  snapshots,
		portfolios: portfolios,
		logger:     logger,
		timeout:    DefaultJobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid price refresh schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Str("next_run", s.Next().Format(time.RFC3339)).Msg("scheduler started")
}

// Stop cancels a running job and waits for it to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled run finished with errors")
	}
}

// RunOnce refreshes prices and then rebuilds the snapshots of every active
// portfolio. A failed refresh does not skip the rebuild; stored prices are
// still newer than the snapshots. Errors of individual portfolios are joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error

	result, err := s.prices.RefreshPrices(ctx, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("scheduled price refresh failed")
		errs = append(errs, fmt.Errorf("price refresh: %w", err))
	} else {
		s.logger.Info().
			Int("updated", result.TotalUpdated).
			Int("errors", result.TotalErrors).
			Msg("scheduled price refresh done")
	}
	if ctx.Err() != nil {
		return errors.Join(append(errs, ctx.Err())...)
	}

	portfolios, err := s.portfolios.GetPortfolios(ctx, model.PortfolioFilter{})
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list portfolios: %w", err))...)
	}

	rebuilt := 0
	for _, p := range portfolios {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := s.snapshots.Materialize(ctx, p.ID); err != nil {
			s.logger.Warn().Str("portfolio_id", p.ID).Err(err).Msg("snapshot rebuild failed")
			errs = append(errs, fmt.Errorf("portfolio %s: %w", p.ID, err))
			continue
		}
		rebuilt++
	}

	s.logger.Info().
		Int("portfolios", len(portfolios)).
		Int("rebuilt", rebuilt).
		Dur("duration", time.Since(start)).
		Msg("scheduled run finished")
	return errors.Join(errs...)
}

// cronLogger routes the cron runner's own messages into the structured log.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().KeysAndValues(keysAndValues...).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).KeysAndValues(keysAndValues...).Msg("cron: " + msg)
}
