package eod

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stockgraphv1/internal/apperr"
	"stockgraphv1/internal/cache"
	"stockgraphv1/internal/clock"
	"stockgraphv1/internal/model"
)

func day(s string) model.Day { return model.MustDay(s) }

// fakeProvider serves canned datasets and counts upstream traffic.
type fakeProvider struct {
	mu        sync.Mutex
	datasets  map[string]model.Dataset
	failures  map[string]error
	oldest    map[string]model.Day
	dataCalls int
	metaCalls int
}

func (f *fakeProvider) FetchDailyStats(ctx context.Context, ticker string, start, end model.Day, column model.Column) (model.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataCalls++
	if err, ok := f.failures[ticker]; ok {
		return model.Dataset{}, err
	}
	return f.datasets[ticker], nil
}

func (f *fakeProvider) FetchMetadata(ctx context.Context, ticker string) (model.Day, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	return f.oldest[ticker], nil
}

func closesDataset(start, end string, closes ...float64) model.Dataset {
	ds := model.Dataset{StartDate: day(start), EndDate: day(end)}
	d := day(start)
	for _, c := range closes {
		ds.Data = append(ds.Data, model.Row{Day: d, Values: []float64{c}})
		d = d.Next()
	}
	return ds
}

func newService(p Provider) *Service {
	clk := &clock.Fixed{T: time.Unix(1_700_000_000, 0)}
	return New(cache.NewDayStore(clk, time.Hour), p, nil, nil, nil)
}

// ────────────────────────────────────────────────────────────
// GetDailyStats
// ────────────────────────────────────────────────────────────

func TestGetDailyStats_SecondCallServedFromCache(t *testing.T) {
	p := &fakeProvider{datasets: map[string]model.Dataset{
		"AAPL": closesDataset("2018-01-01", "2018-01-03", 170.16, 172.26, 172.23),
	}}
	s := newService(p)

	first, err := s.GetDailyStats(context.Background(), "AAPL", day("2018-01-01"), day("2018-01-03"), model.ColumnClose)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.GetDailyStats(context.Background(), "AAPL", day("2018-01-01"), day("2018-01-03"), model.ColumnClose)
	if err != nil {
		t.Fatal(err)
	}

	if p.dataCalls != 1 {
		t.Fatalf("upstream called %d times, want 1", p.dataCalls)
	}
	if len(first.Data) != 3 || len(second.Data) != 3 {
		t.Fatalf("got %d and %d rows, want 3 and 3", len(first.Data), len(second.Data))
	}
}

func TestGetDailyStats_SubRangeOfCachedWindowIsAHit(t *testing.T) {
	p := &fakeProvider{datasets: map[string]model.Dataset{
		"AAPL": closesDataset("2018-01-01", "2018-01-05", 1, 2, 3, 4, 5),
	}}
	s := newService(p)

	if _, err := s.GetDailyStats(context.Background(), "AAPL", day("2018-01-01"), day("2018-01-05"), model.ColumnClose); err != nil {
		t.Fatal(err)
	}
	sub, err := s.GetDailyStats(context.Background(), "AAPL", day("2018-01-02"), day("2018-01-04"), model.ColumnClose)
	if err != nil {
		t.Fatal(err)
	}

	if p.dataCalls != 1 {
		t.Fatalf("sub-range lookup went upstream (%d calls)", p.dataCalls)
	}
	if len(sub.Data) != 3 || sub.Data[0].Values[0] != 2 {
		t.Fatalf("sub-range: got %+v", sub.Data)
	}
}

func TestGetDailyStats_OpenBoundsResolveAfterFirstFetch(t *testing.T) {
	p := &fakeProvider{datasets: map[string]model.Dataset{
		"AAPL": closesDataset("2018-01-01", "2018-01-03", 1, 2, 3),
	}}
	s := newService(p)

	// Fully open request: fetch once, remember the true bounds.
	if _, err := s.GetDailyStats(context.Background(), "AAPL", model.Day{}, model.Day{}, model.ColumnClose); err != nil {
		t.Fatal(err)
	}
	ds, err := s.GetDailyStats(context.Background(), "AAPL", model.Day{}, model.Day{}, model.ColumnClose)
	if err != nil {
		t.Fatal(err)
	}

	if p.dataCalls != 1 {
		t.Fatalf("open-ended re-request went upstream (%d calls)", p.dataCalls)
	}
	if !ds.StartDate.Equal(day("2018-01-01")) || !ds.EndDate.Equal(day("2018-01-03")) {
		t.Errorf("bounds: got [%s,%s]", ds.StartDate, ds.EndDate)
	}
}

func TestGetDailyStats_UpstreamFailureLeavesCacheUntouched(t *testing.T) {
	p := &fakeProvider{
		datasets: map[string]model.Dataset{},
		failures: map[string]error{"AAPL": errors.New("connection refused")},
	}
	s := newService(p)

	_, err := s.GetDailyStats(context.Background(), "AAPL", day("2018-01-01"), day("2018-01-03"), model.ColumnClose)
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("got %v, want an upstream error", err)
	}

	// Upstream recovers: the next call must fetch (nothing was merged).
	p.mu.Lock()
	delete(p.failures, "AAPL")
	p.datasets["AAPL"] = closesDataset("2018-01-01", "2018-01-03", 1, 2, 3)
	p.mu.Unlock()

	ds, err := s.GetDailyStats(context.Background(), "AAPL", day("2018-01-01"), day("2018-01-03"), model.ColumnClose)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Data) != 3 {
		t.Fatalf("got %d rows after recovery, want 3", len(ds.Data))
	}
	if p.dataCalls != 2 {
		t.Fatalf("upstream called %d times, want 2", p.dataCalls)
	}
}

// ────────────────────────────────────────────────────────────
// Moving-day average
// ────────────────────────────────────────────────────────────

func TestGetMovingDayAverage_MeanOfCloses(t *testing.T) {
	p := &fakeProvider{datasets: map[string]model.Dataset{
		"AAPL": closesDataset("2018-01-01", "2018-01-04", 10, 20, 30, 40),
	}}
	s := newService(p)

	res := s.GetMovingDayAverage(context.Background(), "AAPL", day("2018-01-01"), 3)
	if !res.Succeeded {
		t.Fatalf("failed: %v", res.Err)
	}
	if res.Data.Average != 25 {
		t.Errorf("average: got %v, want 25", res.Data.Average)
	}
}

func TestGetMovingDayAverage_MissingStartDate(t *testing.T) {
	s := newService(&fakeProvider{})

	res := s.GetMovingDayAverage(context.Background(), "AAPL", model.Day{}, 200)
	if res.Succeeded {
		t.Fatal("succeeded without a start date")
	}
	if !errors.Is(res.Err, apperr.ErrMissingParameter) {
		t.Errorf("got %v, want missing-parameter", res.Err)
	}
}

func TestGetMovingDayAverage_EmptyRangeCarriesFirstDateHint(t *testing.T) {
	p := &fakeProvider{
		datasets: map[string]model.Dataset{
			// Requested window predates the listing: no rows.
			"AAPL": {StartDate: day("1979-01-01"), EndDate: day("1979-01-10")},
		},
		oldest: map[string]model.Day{"AAPL": day("1980-12-12")},
	}
	s := newService(p)

	res := s.GetMovingDayAverage(context.Background(), "AAPL", day("1979-01-01"), 9)
	if res.Succeeded {
		t.Fatal("succeeded on an empty range")
	}
	if !errors.Is(res.Err, apperr.ErrNoDataInRange) {
		t.Fatalf("got %v, want no-data-in-range", res.Err)
	}
	if hint := res.Err.Detail["first_possible_date"]; hint != "1980-12-12" {
		t.Errorf("first_possible_date: got %v, want 1980-12-12", hint)
	}
}

// ────────────────────────────────────────────────────────────
// Multi-ticker batches
// ────────────────────────────────────────────────────────────

func TestGetMovingDayAverages_PartialFailure(t *testing.T) {
	p := &fakeProvider{
		datasets: map[string]model.Dataset{
			"A": closesDataset("2018-01-01", "2018-01-03", 10, 20, 30),
		},
		failures: map[string]error{"B": errors.New("rate limited")},
	}
	s := newService(p)

	results := s.GetMovingDayAverages(context.Background(), []string{"A", "B"}, day("2018-01-01"), 2)

	a, ok := results["A"]
	if !ok || !a.Succeeded {
		t.Fatalf("A: got %+v, want success", a)
	}
	if a.Data.Average != 20 {
		t.Errorf("A average: got %v, want 20", a.Data.Average)
	}
	b, ok := results["B"]
	if !ok || b.Succeeded {
		t.Fatalf("B: got %+v, want failure", b)
	}
	if !errors.Is(b.Err, apperr.ErrUpstream) {
		t.Errorf("B error: got %v, want upstream", b.Err)
	}
}

func TestGetClosePrices_PartialFailure(t *testing.T) {
	p := &fakeProvider{
		datasets: map[string]model.Dataset{
			"A": closesDataset("2018-01-01", "2018-01-02", 1, 2),
		},
		failures: map[string]error{"B": errors.New("boom")},
	}
	s := newService(p)

	results := s.GetClosePrices(context.Background(), []string{"A", "B"}, day("2018-01-01"), day("2018-01-02"))
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Err != nil || results[0].Prices == nil || len(results[0].Prices.Data) != 2 {
		t.Errorf("A: got %+v", results[0])
	}
	if results[1].Err == nil {
		t.Errorf("B: expected an error payload, got %+v", results[1])
	}
}
