package mavg

import (
	"math"
	"testing"
)

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Errorf("%s: got %.4f, want %.4f", label, got, want)
	}
}

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestSMA_WarmUpReturnsZero(t *testing.T) {
	s := NewSMA(3)
	for i, v := range []float64{10, 20} {
		s.Push(v)
		if s.Ready() {
			t.Errorf("push %d: Ready() before window filled", i+1)
		}
		if got := s.Average(); got != 0 {
			t.Errorf("push %d: Average()=%v, want 0", i+1, got)
		}
	}
	s.Push(30)
	if !s.Ready() {
		t.Error("Ready()=false after 3 pushes into SMA(3)")
	}
	assertClose(t, "SMA(3) full window", s.Average(), 20.0)
}

func TestSMA_EvictsOldest(t *testing.T) {
	// Series: 100, 102, 104, 103, 105
	// SMA(3) after 3rd: (100+102+104)/3 = 102
	// SMA(3) after 4th: (102+104+103)/3 = 103
	// SMA(3) after 5th: (104+103+105)/3 = 104
	s := NewSMA(3)
	series := []float64{100, 102, 104, 103, 105}
	want := []float64{0, 0, 102, 103, 104}
	for i, v := range series {
		s.Push(v)
		assertClose(t, "SMA(3)", s.Average(), want[i])
	}
}

func TestSMA_RoundsToTwoDecimals(t *testing.T) {
	s := NewSMA(3)
	for _, v := range []float64{1, 2, 4} {
		s.Push(v)
	}
	// 7/3 = 2.3333... → 2.33
	assertClose(t, "SMA rounding", s.Average(), 2.33)
}

func TestSMA_RejectsNonPositivePeriod(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewSMA(0) did not panic")
		}
	}()
	NewSMA(0)
}

// ────────────────────────────────────────────────────────────
// LWMA
// ────────────────────────────────────────────────────────────

func TestLWMA_WarmUpReturnsZero(t *testing.T) {
	l := NewLWMA(3)
	l.Push(1)
	l.Push(2)
	if got := l.Average(); got != 0 {
		t.Errorf("Average()=%v before window filled, want 0", got)
	}
	l.Push(3)
	if !l.Ready() {
		t.Error("Ready()=false after 3 pushes into LWMA(3)")
	}
}

func TestLWMA_WeightsFavorRecent(t *testing.T) {
	// [1,2,3] with n=3: (1*1 + 2*2 + 3*3) / 6 = 14/6 = 2.33
	l := NewLWMA(3)
	for _, v := range []float64{1, 2, 3} {
		l.Push(v)
	}
	assertClose(t, "LWMA(3) of [1,2,3]", l.Average(), 2.33)
}

func TestLWMA_EvictsOldest(t *testing.T) {
	// Push 1,2,3,4: window is [2,3,4]
	// (2*1 + 3*2 + 4*3) / 6 = 20/6 = 3.33
	l := NewLWMA(3)
	for _, v := range []float64{1, 2, 3, 4} {
		l.Push(v)
	}
	assertClose(t, "LWMA(3) of [2,3,4]", l.Average(), 3.33)
}

func TestLWMA_RejectsNonPositivePeriod(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewLWMA(-1) did not panic")
		}
	}()
	NewLWMA(-1)
}
