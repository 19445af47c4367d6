package indicator

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per sample with no history scans.
//
// When the average loss is zero the RSI is reported as exactly 100, including
// the flat case where the average gain is zero too.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(v float64) {
	r.count++

	if r.count == 1 {
		// First sample: just record price, no delta yet
		r.prevClose = v
		return
	}

	gain, loss := split(v - r.prevClose)
	r.prevClose = v

	if r.count <= r.period+1 {
		// Accumulation phase: build initial averages
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiValue(r.avgGain, r.avgLoss)
		}
		return
	}

	// Wilder's smoothing: avgGain = (prevAvgGain * (period-1) + gain) / period
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.current = rsiValue(r.avgGain, r.avgLoss)
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

// Peek computes what RSI would be with an additional sample without mutating state.
func (r *RSI) Peek(v float64) float64 {
	if r.count <= r.period {
		return r.current
	}
	gain, loss := split(v - r.prevClose)
	p := float64(r.period)
	return rsiValue((r.avgGain*(p-1)+gain)/p, (r.avgLoss*(p-1)+loss)/p)
}

// Reset clears the RSI state for reuse.
func (r *RSI) Reset() {
	r.count = 0
	r.prevClose = 0
	r.avgGain = 0
	r.avgLoss = 0
	r.current = 0
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSISeries returns the RSI of values. The first defined entry is at index
// period, since period deltas are needed for the seed.
func RSISeries(values []float64, period int) Series {
	if period < 1 {
		return undefined(len(values))
	}
	return apply(values, NewRSI(period))
}
