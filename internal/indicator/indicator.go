// Package indicator provides technical indicator calculations over candle data.
//
// Streaming indicators implement the Indicator interface and consume one
// sample at a time. The series functions (SMASeries, BollingerBands, MACD,
// DMISeries, ...) drive them over a whole window and return output aligned
// with the input, NaN where not enough history exists yet.
package indicator

import "math"

// Indicator is the interface for single-input streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "EMA").
	Name() string

	// Update feeds a new sample and recalculates.
	Update(v float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if v were added next,
	// WITHOUT mutating internal state. Used for forming candles.
	Peek(v float64) float64

	// Reset clears all accumulated state.
	Reset()
}

// NaN is the undefined marker used in every output series.
var NaN = math.NaN()

// Series is an indicator output aligned with its input.
type Series []float64

// At returns s[i], or NaN when i is out of range.
func (s Series) At(i int) float64 {
	if i < 0 || i >= len(s) {
		return NaN
	}
	return s[i]
}

// Last returns the final element, or NaN for an empty series.
func (s Series) Last() float64 { return s.At(len(s) - 1) }

// Defined reports whether s[i] holds a value.
func (s Series) Defined(i int) bool { return !math.IsNaN(s.At(i)) }

func undefined(n int) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = NaN
	}
	return out
}

// apply drives ind over values. An undefined input yields an undefined
// output and restarts the indicator, so seeding begins again at the next
// defined sample.
func apply(values []float64, ind Indicator) Series {
	out := make(Series, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			ind.Reset()
			out[i] = NaN
			continue
		}
		ind.Update(v)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = NaN
		}
	}
	return out
}
