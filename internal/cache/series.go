package cache

import (
	"fmt"
	"sync"
	"time"

	"stockgraphv1/internal/clock"
	"stockgraphv1/internal/model"
)

// dayEntry is one recorded calendar day inside a fetched window. noData
// marks a day the upstream confirmed has no observation (weekend,
// holiday, halted listing); it counts toward range completeness but is
// filtered out of lookup results.
type dayEntry struct {
	values []float64
	noData bool
}

// daySeries is the cached state for one (ticker, column) pair: the
// sparse day map plus the widest open-ended bounds ever confirmed.
// boundStart/boundEnd are set only by fetches whose corresponding
// request bound was open, so they mean "there is no data earlier/later
// than this".
type daySeries struct {
	boundStart model.Day
	boundEnd   model.Day
	days       map[string]dayEntry
}

// DayStore is the sparse date-ranged cache of daily values, keyed by
// (ticker, column). Lookup and Merge are each atomic per key; no
// caller can observe a half-merged range.
type DayStore struct {
	cache *TTL[*daySeries]

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewDayStore creates a day-series store whose entries idle-expire
// after ttl.
func NewDayStore(clk clock.Clock, ttl time.Duration) *DayStore {
	return &DayStore{
		cache: NewTTL[*daySeries](clk, ttl),
		locks: make(map[string]*sync.Mutex),
	}
}

// Cache exposes the underlying TTL cache for sweeper wiring.
func (s *DayStore) Cache() *TTL[*daySeries] { return s.cache }

func seriesKey(ticker string, column model.Column) string {
	return fmt.Sprintf("%s|%d", ticker, column)
}

// keyLock returns the mutex serializing compound operations for a key.
func (s *DayStore) keyLock(key string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

// Lookup answers a range query from the cache. Open request bounds
// resolve against the stored bounds; an open bound with no stored
// counterpart is a miss. The policy is strict all-or-nothing: the hit
// requires a recorded entry (value or no-data) for every calendar day
// of the effective range, and a single absent day anywhere forces the
// caller to refetch the entire window. The returned dataset excludes
// no-data days; its start/end are the first and last real-data days,
// falling back to the effective bounds when the whole range is no-data.
func (s *DayStore) Lookup(ticker string, column model.Column, start, end model.Day) (model.Dataset, bool) {
	key := seriesKey(ticker, column)
	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	series, ok := s.cache.Get(key)
	if !ok {
		return model.Dataset{}, false
	}

	effStart, effEnd := start, end
	if effStart.IsZero() {
		if series.boundStart.IsZero() {
			return model.Dataset{}, false
		}
		effStart = series.boundStart
	}
	if effEnd.IsZero() {
		if series.boundEnd.IsZero() {
			return model.Dataset{}, false
		}
		effEnd = series.boundEnd
	}
	if effEnd.Before(effStart) {
		return model.Dataset{}, false
	}

	wantDays := effStart.DaysUntil(effEnd) + 1
	located := 0
	rows := make([]model.Row, 0, wantDays)
	for d := effStart; !d.After(effEnd); d = d.Next() {
		e, ok := series.days[d.String()]
		if !ok {
			return model.Dataset{}, false
		}
		located++
		if !e.noData {
			rows = append(rows, model.Row{Day: d, Values: e.values})
		}
	}
	if located != wantDays {
		return model.Dataset{}, false
	}

	realStart, realEnd := effStart, effEnd
	if len(rows) > 0 {
		realStart = rows[0].Day
		realEnd = rows[len(rows)-1].Day
	}
	return model.Dataset{StartDate: realStart, EndDate: realEnd, Data: rows}, true
}

// Merge records a freshly fetched dataset. It walks every calendar day
// from the effective start to the effective end: a day matching the
// next pending fetched row stores that row's values, any other day
// stores the no-data marker. Whichever request bound was open widens
// the stored bounds to the dataset's actual bounds. Merging the same
// dataset twice is a no-op the second time.
func (s *DayStore) Merge(ticker string, column model.Column, reqStart, reqEnd model.Day, ds model.Dataset) {
	key := seriesKey(ticker, column)
	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	series, ok := s.cache.Get(key)
	if !ok {
		series = &daySeries{days: make(map[string]dayEntry)}
	}

	if reqStart.IsZero() {
		series.boundStart = ds.StartDate
	}
	if reqEnd.IsZero() {
		series.boundEnd = ds.EndDate
	}

	walkStart, walkEnd := reqStart, reqEnd
	if walkStart.IsZero() {
		walkStart = ds.StartDate
	}
	if walkEnd.IsZero() {
		walkEnd = ds.EndDate
	}
	if walkStart.IsZero() || walkEnd.IsZero() {
		// Empty dataset on a fully open request: nothing to record.
		s.cache.Set(key, series)
		return
	}

	i := 0
	for d := walkStart; !d.After(walkEnd); d = d.Next() {
		if i < len(ds.Data) && ds.Data[i].Day.Equal(d) {
			series.days[d.String()] = dayEntry{values: ds.Data[i].Values}
			i++
		} else {
			series.days[d.String()] = dayEntry{noData: true}
		}
	}
	s.cache.Set(key, series)
}
