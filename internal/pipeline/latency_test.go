package pipeline

import (
	"math"
	"testing"
)

func TestLatencyTracker_Empty(t *testing.T) {
	lt := NewLatencyTracker(100)
	last, avg, n := lt.Stats()
	if last != 0 || avg != 0 || n != 0 {
		t.Errorf("empty tracker: expected (0,0,0), got (%f,%f,%d)", last, avg, n)
	}
	if p := lt.Percentile(0.95); p != 0 {
		t.Errorf("empty p95: got %f", p)
	}
}

func TestLatencyTracker_Stats(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 4; i++ {
		lt.Record(float64(i))
	}
	last, avg, n := lt.Stats()
	if last != 4 || avg != 2.5 || n != 4 {
		t.Errorf("got last=%f avg=%f n=%d, want 4 2.5 4", last, avg, n)
	}
}

func TestLatencyTracker_Percentiles(t *testing.T) {
	lt := NewLatencyTracker(1000)
	for i := 1; i <= 100; i++ {
		lt.Record(float64(i))
	}
	if p50 := lt.Percentile(0.5); math.Abs(p50-50.5) > 1.0 {
		t.Errorf("p50: got %f, expected ~50.5", p50)
	}
	if p95 := lt.Percentile(0.95); math.Abs(p95-95.05) > 1.0 {
		t.Errorf("p95: got %f, expected ~95.05", p95)
	}
}

func TestLatencyTracker_Wraparound(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 1; i <= 20; i++ {
		lt.Record(float64(i))
	}

	// window holds 11..20
	last, avg, n := lt.Stats()
	if last != 20 || avg != 15.5 || n != 20 {
		t.Errorf("got last=%f avg=%f n=%d, want 20 15.5 20", last, avg, n)
	}
	if p50 := lt.Percentile(0.5); math.Abs(p50-15.5) > 1.0 {
		t.Errorf("p50 after wraparound: got %f, expected ~15.5", p50)
	}
}
