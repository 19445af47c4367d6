package ringbuf

import (
	"testing"

	"trading-condengine/internal/model"
)

func closes(bars []model.Candle) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWindow_BasicPush(t *testing.T) {
	w := New(4)
	w.Push(model.Candle{TS: 1, Close: 100})
	w.Push(model.Candle{TS: 2, Close: 200})

	if w.Len() != 2 {
		t.Fatalf("expected len=2, got %d", w.Len())
	}
	last, ok := w.Last()
	if !ok || last.Close != 200 {
		t.Fatalf("expected last=200, got %v ok=%v", last.Close, ok)
	}
	if got := closes(w.Snapshot()); !equal(got, []float64{100, 200}) {
		t.Fatalf("unexpected snapshot %v", got)
	}
}

func TestWindow_Overwrite(t *testing.T) {
	w := New(3)
	for i := 1; i <= 5; i++ {
		w.Push(model.Candle{Close: float64(i)})
	}
	if got := closes(w.Snapshot()); !equal(got, []float64{3, 4, 5}) {
		t.Fatalf("expected [3 4 5], got %v", got)
	}
	if w.Evicted() != 2 {
		t.Fatalf("expected evicted=2, got %d", w.Evicted())
	}
}

func TestWindow_Wraparound(t *testing.T) {
	w := New(4)
	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			w.Push(model.Candle{Close: float64(round*10 + i)})
		}
		got := closes(w.Snapshot())
		want := []float64{float64(round * 10), float64(round*10 + 1), float64(round*10 + 2), float64(round*10 + 3)}
		if !equal(got, want) {
			t.Fatalf("round %d: expected %v, got %v", round, want, got)
		}
	}
}

func TestWindow_ReplaceLast(t *testing.T) {
	w := New(2)
	w.ReplaceLast(model.Candle{Close: 1})
	w.Push(model.Candle{Close: 2})
	w.Push(model.Candle{Close: 3})
	w.ReplaceLast(model.Candle{Close: 4})
	if got := closes(w.Snapshot()); !equal(got, []float64{2, 4}) {
		t.Fatalf("expected [2 4], got %v", got)
	}
}

func TestWindow_SnapshotDoesNotAlias(t *testing.T) {
	w := New(2)
	w.Push(model.Candle{Close: 1})
	snap := w.Snapshot()
	snap[0].Close = 99
	if last, _ := w.Last(); last.Close != 1 {
		t.Fatalf("snapshot mutation leaked into window: %v", last.Close)
	}
}

func TestWindow_Resize(t *testing.T) {
	w := New(5)
	for i := 1; i <= 5; i++ {
		w.Push(model.Candle{Close: float64(i)})
	}

	w.Resize(3)
	if got := closes(w.Snapshot()); !equal(got, []float64{3, 4, 5}) {
		t.Fatalf("shrink: expected [3 4 5], got %v", got)
	}

	w.Resize(6)
	w.Push(model.Candle{Close: 6})
	if got := closes(w.Snapshot()); !equal(got, []float64{3, 4, 5, 6}) {
		t.Fatalf("grow: expected [3 4 5 6], got %v", got)
	}
	if w.Cap() != 6 {
		t.Fatalf("expected cap=6, got %d", w.Cap())
	}

	w.Reset()
	if w.Len() != 0 {
		t.Fatalf("expected empty after reset, got %d", w.Len())
	}
	if _, ok := w.Last(); ok {
		t.Fatal("last on empty window should return false")
	}
}
