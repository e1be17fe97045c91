package cache

import (
	"time"

	"stockgraphv1/internal/clock"
	"stockgraphv1/internal/model"
)

// Snapshot is a fully computed derived series for one ticker, valid
// only on the day it was computed. Source keeps the raw daily rows the
// series was derived from so a stale snapshot can be extended by
// fetching just the missing tail.
type Snapshot[T any] struct {
	FetchedDay model.Day
	Source     []model.Row
	Series     []T
}

// RawFetcher fetches raw daily rows from the given start day through
// the present. A zero start means full history.
type RawFetcher func(start model.Day) ([]model.Row, error)

// Reports caches derived report series per ticker. The compute
// function always runs over the full source series: fixed-window
// accumulators have to be re-seeded over the whole concatenated array,
// so there is no incremental accumulator state to carry between days.
type Reports[T any] struct {
	cache *TTL[Snapshot[T]]
	clk   clock.Clock
}

// NewReports creates a report cache whose snapshots idle-expire after
// ttl.
func NewReports[T any](clk clock.Clock, ttl time.Duration) *Reports[T] {
	return &Reports[T]{
		cache: NewTTL[Snapshot[T]](clk, ttl),
		clk:   clk,
	}
}

// Cache exposes the underlying TTL cache for sweeper wiring.
func (r *Reports[T]) Cache() *TTL[Snapshot[T]] { return r.cache }

// GetOrBuild returns the ticker's derived series, reusing the cached
// snapshot when it was computed today. A snapshot from an earlier day
// is extended: only the rows from the day after its fetch day are
// fetched, appended to the stored source rows, and the whole series is
// recomputed. With no snapshot the full history is fetched.
func (r *Reports[T]) GetOrBuild(ticker string, fetch RawFetcher, compute func([]model.Row) []T) ([]T, error) {
	today := model.DayOf(r.clk.Now())

	snap, ok := r.cache.Get(ticker)
	if ok && snap.FetchedDay.Equal(today) {
		return snap.Series, nil
	}

	var source []model.Row
	if !ok {
		rows, err := fetch(model.Day{})
		if err != nil {
			return nil, err
		}
		source = rows
	} else {
		delta, err := fetch(snap.FetchedDay.Next())
		if err != nil {
			return nil, err
		}
		source = make([]model.Row, 0, len(snap.Source)+len(delta))
		source = append(source, snap.Source...)
		source = append(source, delta...)
	}

	series := compute(source)
	r.cache.Set(ticker, Snapshot[T]{FetchedDay: today, Source: source, Series: series})
	return series, nil
}
