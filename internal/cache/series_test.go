package cache

import (
	"reflect"
	"testing"
	"time"

	"stockgraphv1/internal/clock"
	"stockgraphv1/internal/model"
)

func day(s string) model.Day { return model.MustDay(s) }

// week of 2018-01-01: Mon 01 .. Fri 05 trading, Sat 06 / Sun 07 closed.
func tradingWeek() model.Dataset {
	return model.Dataset{
		StartDate: day("2018-01-01"),
		EndDate:   day("2018-01-05"),
		Data: []model.Row{
			{Day: day("2018-01-01"), Values: []float64{170.16}},
			{Day: day("2018-01-02"), Values: []float64{172.26}},
			{Day: day("2018-01-03"), Values: []float64{172.23}},
			{Day: day("2018-01-04"), Values: []float64{173.03}},
			{Day: day("2018-01-05"), Values: []float64{175.00}},
		},
	}
}

func newStore() *DayStore {
	clk := &clock.Fixed{T: time.Unix(1_700_000_000, 0)}
	return NewDayStore(clk, time.Hour)
}

// ────────────────────────────────────────────────────────────
// Merge
// ────────────────────────────────────────────────────────────

func TestMerge_RecordsNoDataForGapDays(t *testing.T) {
	s := newStore()
	// Requested through Sunday: Sat/Sun have no fetched rows.
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"), tradingWeek())

	got, ok := s.Lookup("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"))
	if !ok {
		t.Fatal("lookup missed a fully merged range")
	}
	if len(got.Data) != 5 {
		t.Fatalf("lookup returned %d rows, want 5 (weekend filtered)", len(got.Data))
	}
	if !got.StartDate.Equal(day("2018-01-01")) || !got.EndDate.Equal(day("2018-01-05")) {
		t.Errorf("real bounds: got [%s,%s], want [2018-01-01,2018-01-05]", got.StartDate, got.EndDate)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	s := newStore()
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"), tradingWeek())
	first, ok := s.Lookup("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"))
	if !ok {
		t.Fatal("first lookup missed")
	}

	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"), tradingWeek())
	second, ok := s.Lookup("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"))
	if !ok {
		t.Fatal("second lookup missed")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("double merge changed the cached range:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestMerge_OpenBoundsWidenStoredBounds(t *testing.T) {
	s := newStore()
	// Fully open request: dataset bounds become the known bounds.
	s.Merge("AAPL", model.ColumnClose, model.Day{}, model.Day{}, tradingWeek())

	// Open-ended lookup resolves against the widened bounds.
	got, ok := s.Lookup("AAPL", model.ColumnClose, model.Day{}, model.Day{})
	if !ok {
		t.Fatal("open-ended lookup missed after open-ended merge")
	}
	if !got.StartDate.Equal(day("2018-01-01")) || !got.EndDate.Equal(day("2018-01-05")) {
		t.Errorf("bounds: got [%s,%s], want [2018-01-01,2018-01-05]", got.StartDate, got.EndDate)
	}
}

func TestMerge_ClosedBoundsDoNotTouchStoredBounds(t *testing.T) {
	s := newStore()
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-05"), tradingWeek())

	// Both request bounds were given, so no bounds were recorded and an
	// open-ended lookup cannot resolve.
	if _, ok := s.Lookup("AAPL", model.ColumnClose, model.Day{}, model.Day{}); ok {
		t.Fatal("open-ended lookup hit without stored bounds")
	}
}

// ────────────────────────────────────────────────────────────
// Lookup
// ────────────────────────────────────────────────────────────

func TestLookup_AllOrNothing(t *testing.T) {
	s := newStore()
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-05"), tradingWeek())

	// One day beyond the merged window: a single absent day anywhere in
	// the range forces a miss, however much of it is cached.
	if _, ok := s.Lookup("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-06")); ok {
		t.Fatal("lookup hit a range with an uncached day")
	}
	if _, ok := s.Lookup("AAPL", model.ColumnClose, day("2017-12-31"), day("2018-01-05")); ok {
		t.Fatal("lookup hit a range starting before the cached window")
	}
}

func TestLookup_SubRangeOfCachedWindow(t *testing.T) {
	s := newStore()
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"), tradingWeek())

	got, ok := s.Lookup("AAPL", model.ColumnClose, day("2018-01-02"), day("2018-01-04"))
	if !ok {
		t.Fatal("lookup missed a cached sub-range")
	}
	want := []float64{172.26, 172.23, 173.03}
	if len(got.Data) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got.Data), len(want))
	}
	for i, row := range got.Data {
		if row.Values[0] != want[i] {
			t.Errorf("row %d: got %v, want %v", i, row.Values[0], want[i])
		}
	}
}

func TestLookup_NoDataDaysCountTowardCompleteness(t *testing.T) {
	s := newStore()
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"), tradingWeek())

	// Weekend-only range: complete (both days recorded as no-data) but
	// contains zero rows, and the real bounds fall back to the request.
	got, ok := s.Lookup("AAPL", model.ColumnClose, day("2018-01-06"), day("2018-01-07"))
	if !ok {
		t.Fatal("lookup missed a fully no-data range")
	}
	if len(got.Data) != 0 {
		t.Fatalf("no-data range returned %d rows, want 0", len(got.Data))
	}
	if !got.StartDate.Equal(day("2018-01-06")) || !got.EndDate.Equal(day("2018-01-07")) {
		t.Errorf("bounds: got [%s,%s], want the requested range", got.StartDate, got.EndDate)
	}
}

func TestLookup_KeysAreColumnScoped(t *testing.T) {
	s := newStore()
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-05"), tradingWeek())

	if _, ok := s.Lookup("AAPL", model.ColumnAll, day("2018-01-01"), day("2018-01-05")); ok {
		t.Fatal("close-column merge satisfied an all-columns lookup")
	}
	if _, ok := s.Lookup("MSFT", model.ColumnClose, day("2018-01-01"), day("2018-01-05")); ok {
		t.Fatal("AAPL merge satisfied an MSFT lookup")
	}
}

func TestLookup_ExpiredSeriesMisses(t *testing.T) {
	clk := &clock.Fixed{T: time.Unix(1_700_000_000, 0)}
	s := NewDayStore(clk, time.Minute)
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-05"), tradingWeek())

	clk.Advance(time.Minute)
	if _, ok := s.Lookup("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-05")); ok {
		t.Fatal("lookup hit an expired series")
	}
}

func TestMerge_SecondFetchExtendsSeries(t *testing.T) {
	s := newStore()
	s.Merge("AAPL", model.ColumnClose, day("2018-01-01"), day("2018-01-07"), tradingWeek())

	next := model.Dataset{
		StartDate: day("2018-01-08"),
		EndDate:   day("2018-01-09"),
		Data: []model.Row{
			{Day: day("2018-01-08"), Values: []float64{174.35}},
			{Day: day("2018-01-09"), Values: []float64{174.33}},
		},
	}
	s.Merge("AAPL", model.ColumnClose, day("2018-01-08"), day("2018-01-09"), next)

	got, ok := s.Lookup("AAPL", model.ColumnClose, day("2018-01-03"), day("2018-01-09"))
	if !ok {
		t.Fatal("lookup missed a range spanning two merges")
	}
	if len(got.Data) != 5 {
		t.Fatalf("got %d rows, want 5", len(got.Data))
	}
	if !got.EndDate.Equal(day("2018-01-09")) {
		t.Errorf("end: got %s, want 2018-01-09", got.EndDate)
	}
}
