// Package ringbuf provides a fixed-capacity rolling window of candles.
// Pushing onto a full window overwrites the oldest bar. A Window is not safe
// for concurrent use; owners serialise access.
package ringbuf

import "trading-condengine/internal/model"

// Window keeps the most recent Cap() candles in arrival order.
type Window struct {
	buf   []model.Candle
	head  int // index of the oldest bar
	count int

	evicted uint64
}

// New creates a window holding up to capacity candles. Minimum capacity is 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]model.Candle, capacity)}
}

// Push appends c, evicting the oldest bar when full.
func (w *Window) Push(c model.Candle) {
	if w.count == len(w.buf) {
		w.buf[w.head] = c
		w.head = (w.head + 1) % len(w.buf)
		w.evicted++
		return
	}
	w.buf[(w.head+w.count)%len(w.buf)] = c
	w.count++
}

// ReplaceLast overwrites the newest bar, or pushes when empty.
func (w *Window) ReplaceLast(c model.Candle) {
	if w.count == 0 {
		w.Push(c)
		return
	}
	w.buf[(w.head+w.count-1)%len(w.buf)] = c
}

// Last returns the newest bar.
func (w *Window) Last() (model.Candle, bool) {
	if w.count == 0 {
		return model.Candle{}, false
	}
	return w.buf[(w.head+w.count-1)%len(w.buf)], true
}

// Snapshot copies the window, oldest first. The result does not alias the
// window's storage.
func (w *Window) Snapshot() []model.Candle {
	out := make([]model.Candle, w.count)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Resize changes the capacity, keeping the newest bars that still fit.
func (w *Window) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(w.buf) {
		return
	}
	bars := w.Snapshot()
	if len(bars) > capacity {
		w.evicted += uint64(len(bars) - capacity)
		bars = bars[len(bars)-capacity:]
	}
	w.buf = make([]model.Candle, capacity)
	copy(w.buf, bars)
	w.head = 0
	w.count = len(bars)
}

// Reset empties the window without changing its capacity.
func (w *Window) Reset() {
	w.head = 0
	w.count = 0
}

// Len returns the number of bars held.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Evicted returns how many bars have been dropped to make room.
func (w *Window) Evicted() uint64 { return w.evicted }
