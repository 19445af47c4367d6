package indicator

// WMA calculates a linearly weighted moving average: the newest sample
// weighs period, the oldest weighs 1.
type WMA struct {
	period  int
	buf     []float64
	idx     int
	count   int
	current float64
}

// NewWMA creates a new WMA indicator with the given period.
func NewWMA(period int) *WMA {
	if period < 1 {
		period = 1
	}
	return &WMA{period: period, buf: make([]float64, period)}
}

func (w *WMA) Name() string { return "WMA" }

func (w *WMA) Update(v float64) {
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % w.period
	w.count++
	if w.count >= w.period {
		w.current = w.weighted(-1, 0)
	}
}

// weighted sums the window oldest-first. When skip >= 0 the oldest sample
// is dropped and extra is appended as the newest.
func (w *WMA) weighted(skip int, extra float64) float64 {
	var num float64
	weight := 1.0
	start := 0
	if skip >= 0 {
		start = 1
	}
	for k := start; k < w.period; k++ {
		num += w.buf[(w.idx+k)%w.period] * weight
		weight++
	}
	if skip >= 0 {
		num += extra * weight
	}
	denom := float64(w.period*(w.period+1)) / 2
	return num / denom
}

func (w *WMA) Value() float64 { return w.current }
func (w *WMA) Ready() bool    { return w.count >= w.period }

// Peek computes what Value() would be with an additional sample without mutating state.
func (w *WMA) Peek(v float64) float64 {
	if w.count < w.period-1 {
		return v
	}
	return w.weighted(0, v)
}

// Reset clears the WMA state for reuse.
func (w *WMA) Reset() {
	w.idx = 0
	w.count = 0
	w.current = 0
	for i := range w.buf {
		w.buf[i] = 0
	}
}

// WMASeries returns the linearly weighted moving average of values.
func WMASeries(values []float64, period int) Series {
	if period < 1 {
		return undefined(len(values))
	}
	return apply(values, NewWMA(period))
}
