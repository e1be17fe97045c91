// Package mavg provides fixed-window moving-average accumulators for
// daily series computations. Values stream in one at a time; each
// accumulator keeps the most recent n values in a preallocated circular
// buffer and reports 0 until the window has filled.
package mavg

import (
	"fmt"
	"math"
)

// round2 rounds to two decimal places, matching the precision of every
// derived figure this service emits.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SMA is a simple moving average over a fixed trailing window.
// Push is O(1): a running sum replaces re-summing the window.
type SMA struct {
	period int
	buf    []float64 // circular buffer of the last period values
	idx    int       // next write position (oldest slot once full)
	count  int
	sum    float64
}

// NewSMA creates a simple moving-average accumulator. period must be
// positive.
func NewSMA(period int) *SMA {
	if period <= 0 {
		panic(fmt.Sprintf("mavg: non-positive SMA period %d", period))
	}
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

// Push appends a value, evicting the oldest once the window is full.
func (s *SMA) Push(v float64) {
	if s.count >= s.period {
		s.sum -= s.buf[s.idx]
	}
	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++
}

// Average returns the current simple moving average rounded to two
// decimals, or 0 while fewer than period values have been pushed.
func (s *SMA) Average() float64 {
	if s.count < s.period {
		return 0
	}
	return round2(s.sum / float64(s.period))
}

// Ready reports whether the window has filled.
func (s *SMA) Ready() bool { return s.count >= s.period }

// LWMA is a linearly-weighted moving average over a fixed trailing
// window. The most recent value carries weight period, the oldest
// weight 1, so the total weight is period*(period+1)/2.
type LWMA struct {
	period      int
	buf         []float64
	idx         int // next write position (oldest slot once full)
	count       int
	totalWeight float64
}

// NewLWMA creates a linearly-weighted moving-average accumulator.
// period must be positive.
func NewLWMA(period int) *LWMA {
	if period <= 0 {
		panic(fmt.Sprintf("mavg: non-positive LWMA period %d", period))
	}
	return &LWMA{
		period:      period,
		buf:         make([]float64, period),
		totalWeight: float64(period*(period+1)) / 2,
	}
}

// Push appends a value, evicting the oldest once the window is full.
func (l *LWMA) Push(v float64) {
	l.buf[l.idx] = v
	l.idx = (l.idx + 1) % l.period
	l.count++
}

// Average returns the current weighted average rounded to two decimals,
// or 0 while fewer than period values have been pushed.
func (l *LWMA) Average() float64 {
	if l.count < l.period {
		return 0
	}
	// Walk the buffer oldest to newest; weights rise 1..period.
	sum := 0.0
	for k := 0; k < l.period; k++ {
		sum += l.buf[(l.idx+k)%l.period] * float64(k+1)
	}
	return round2(sum / l.totalWeight)
}

// Ready reports whether the window has filled.
func (l *LWMA) Ready() bool { return l.count >= l.period }
