// Package eod implements the range-reconciliation and fetch
// orchestrator: every request for daily data goes through the
// day-series cache first, and only a range the cache cannot fully
// cover triggers a single upstream fetch for the whole window, whose
// result is merged back day by day.
package eod

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stockgraphv1/internal/apperr"
	"stockgraphv1/internal/cache"
	"stockgraphv1/internal/logger"
	"stockgraphv1/internal/metrics"
	"stockgraphv1/internal/model"
)

// Provider is the upstream end-of-day data capability.
type Provider interface {
	// FetchDailyStats returns the ordered daily dataset for a ticker.
	// Zero days leave the window bound open; ColumnAll fetches every
	// column.
	FetchDailyStats(ctx context.Context, ticker string, start, end model.Day, column model.Column) (model.Dataset, error)

	// FetchMetadata returns the first day the ticker has data for.
	FetchMetadata(ctx context.Context, ticker string) (model.Day, error)
}

// Service orchestrates cache lookups, upstream fetches and merges.
type Service struct {
	store    *cache.DayStore
	provider Provider
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	log      *slog.Logger
}

// New creates the orchestrator. metrics and health may be nil.
func New(store *cache.DayStore, provider Provider, m *metrics.Metrics, h *metrics.HealthStatus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, provider: provider, metrics: m, health: h, log: log}
}

// GetDailyStats returns daily values for a ticker over a date window.
// Either bound may be open (zero Day). A cache hit returns without any
// upstream traffic; a miss issues exactly one upstream request for the
// entire effective window, merges the response, and re-reads the
// reconciled slice from the cache. An upstream failure aborts the
// request with nothing merged.
func (s *Service) GetDailyStats(ctx context.Context, ticker string, start, end model.Day, column model.Column) (model.Dataset, error) {
	if ds, ok := s.store.Lookup(ticker, column, start, end); ok {
		s.metrics.CacheHit()
		return ds, nil
	}
	s.metrics.CacheMiss()

	fetchStart := time.Now()
	fetched, err := s.provider.FetchDailyStats(ctx, ticker, start, end, column)
	s.metrics.Upstream(time.Since(fetchStart), err)
	if s.health != nil {
		s.health.RecordUpstream(err)
	}
	if err != nil {
		s.log.Error("upstream fetch failed", append(logger.LogWithTrace(ctx),
			slog.String("ticker", ticker), slog.Any("error", err))...)
		return model.Dataset{}, asAppError(err)
	}

	s.store.Merge(ticker, column, start, end, fetched)
	s.metrics.Merge()

	if ds, ok := s.store.Lookup(ticker, column, start, end); ok {
		return ds, nil
	}
	// The merge makes the lookup total over the fetched window; a miss
	// here means the upstream answered outside the requested range.
	s.log.Warn("lookup missed after merge, serving upstream dataset",
		append(logger.LogWithTrace(ctx), slog.String("ticker", ticker))...)
	return fetched, nil
}

// ClosePrice is the close-only dataset for one ticker.
type ClosePrice struct {
	Ticker    string      `json:"ticker"`
	StartDate model.Day   `json:"startDate"`
	EndDate   model.Day   `json:"endDate"`
	Data      []model.Row `json:"data"`
}

// GetClosePrice returns the close prices for a ticker over a window.
func (s *Service) GetClosePrice(ctx context.Context, ticker string, start, end model.Day) (ClosePrice, error) {
	ds, err := s.GetDailyStats(ctx, ticker, start, end, model.ColumnClose)
	if err != nil {
		return ClosePrice{}, err
	}
	return ClosePrice{
		Ticker:    ticker,
		StartDate: ds.StartDate,
		EndDate:   ds.EndDate,
		Data:      ds.Data,
	}, nil
}

// ClosePriceResult is one ticker's outcome in a batched close-price
// request.
type ClosePriceResult struct {
	Ticker string        `json:"ticker"`
	Prices *ClosePrice   `json:"prices,omitempty"`
	Err    *apperr.Error `json:"error,omitempty"`
}

// GetClosePrices fetches close prices for several tickers
// concurrently. One ticker's failure never cancels the others; each
// entry carries either its dataset or its error.
func (s *Service) GetClosePrices(ctx context.Context, tickers []string, start, end model.Day) []ClosePriceResult {
	results := make([]ClosePriceResult, len(tickers))
	var wg sync.WaitGroup
	for i, ticker := range tickers {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			cp, err := s.GetClosePrice(ctx, ticker, start, end)
			if err != nil {
				results[i] = ClosePriceResult{Ticker: ticker, Err: asAppError(err)}
				return
			}
			results[i] = ClosePriceResult{Ticker: ticker, Prices: &cp}
		}(i, ticker)
	}
	wg.Wait()
	return results
}

// MDAverage is a computed moving-day average.
type MDAverage struct {
	Ticker  string  `json:"ticker"`
	Average float64 `json:"average"`
}

// MDAResult is the tagged outcome of a moving-day-average request:
// either the computed average or the structured error, never both.
type MDAResult struct {
	Succeeded bool          `json:"succeeded"`
	Data      *MDAverage    `json:"data,omitempty"`
	Err       *apperr.Error `json:"error,omitempty"`
}

// GetMovingDayAverage computes the average close over the windowDays
// calendar days following start. An empty range resolves the ticker's
// first available date and reports it as a hint; a missing start date
// fails before any upstream traffic.
func (s *Service) GetMovingDayAverage(ctx context.Context, ticker string, start model.Day, windowDays int) MDAResult {
	if start.IsZero() {
		return MDAResult{Err: apperr.New(apperr.ErrMissingParameter, apperr.MsgMissingStartDate)}
	}

	end := start.AddDays(windowDays)
	ds, err := s.GetDailyStats(ctx, ticker, start, end, model.ColumnClose)
	if err != nil {
		return MDAResult{Err: asAppError(err)}
	}

	if len(ds.Data) == 0 {
		first, err := s.provider.FetchMetadata(ctx, ticker)
		if s.health != nil {
			s.health.RecordUpstream(err)
		}
		if err != nil {
			return MDAResult{Err: asAppError(err)}
		}
		return MDAResult{Err: apperr.WithDetail(apperr.ErrNoDataInRange, apperr.MsgNoDataInRange,
			map[string]any{"first_possible_date": first.String()})}
	}

	sum := 0.0
	for _, row := range ds.Data {
		sum += row.Values[0]
	}
	return MDAResult{
		Succeeded: true,
		Data:      &MDAverage{Ticker: ticker, Average: sum / float64(len(ds.Data))},
	}
}

// GetMovingDayAverages computes moving-day averages for several
// tickers concurrently, with per-ticker failure isolation.
func (s *Service) GetMovingDayAverages(ctx context.Context, tickers []string, start model.Day, windowDays int) map[string]MDAResult {
	type indexed struct {
		ticker string
		result MDAResult
	}
	ch := make(chan indexed, len(tickers))
	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			ch <- indexed{ticker: ticker, result: s.GetMovingDayAverage(ctx, ticker, start, windowDays)}
		}(ticker)
	}
	wg.Wait()
	close(ch)

	results := make(map[string]MDAResult, len(tickers))
	for r := range ch {
		results[r.ticker] = r.result
	}
	return results
}

// asAppError translates any failure into the structured error shape,
// passing through errors already in the taxonomy.
func asAppError(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.New(apperr.ErrUpstream, err.Error())
}
