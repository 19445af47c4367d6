package indicator

// EMA calculates Exponential Moving Average.
// Seeded with the SMA of the first period samples. O(1) per update.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(v float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += v
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = (v-e.current)*e.multiplier + e.current
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Peek computes what Value() would be with an additional sample without mutating state.
func (e *EMA) Peek(v float64) float64 {
	if e.count < e.period {
		return (e.sum + v) / float64(e.count+1)
	}
	return (v-e.current)*e.multiplier + e.current
}

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

// EMASeries returns the exponential moving average of values. A NaN input
// produces NaN and restarts seeding, so leading NaNs (e.g. the head of a
// MACD line) are skipped.
func EMASeries(values []float64, period int) Series {
	if period < 1 {
		return undefined(len(values))
	}
	return apply(values, NewEMA(period))
}
