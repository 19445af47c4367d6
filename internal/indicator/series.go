package indicator

import (
	"math"
	"strings"

	"trading-condengine/internal/model"
)

// MAMethod selects a moving-average smoothing.
type MAMethod string

const (
	MethodSMA  MAMethod = "sma"
	MethodEMA  MAMethod = "ema"
	MethodSMMA MAMethod = "smma"
	MethodWMA  MAMethod = "wma"
)

// ParseMAMethod normalizes a method name, accepting the common aliases.
func ParseMAMethod(s string) (MAMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sma", "simple":
		return MethodSMA, true
	case "ema", "exponential":
		return MethodEMA, true
	case "smma", "rma", "wilder", "smoothed":
		return MethodSMMA, true
	case "wma", "weighted":
		return MethodWMA, true
	}
	return "", false
}

// MovingAverage dispatches to the series function for method. Unknown
// methods fall back to SMA.
func MovingAverage(values []float64, period int, method MAMethod) Series {
	switch method {
	case MethodEMA:
		return EMASeries(values, period)
	case MethodSMMA:
		return SMMASeries(values, period)
	case MethodWMA:
		return WMASeries(values, period)
	default:
		return SMASeries(values, period)
	}
}

// Source extracts one price field from candles.
func Source(candles []model.Candle, field model.PriceField) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Price(field)
	}
	return out
}

// Closes extracts close prices from candles.
func Closes(candles []model.Candle) []float64 {
	return Source(candles, model.FieldClose)
}

// Bands holds Bollinger Band output series.
type Bands struct {
	Upper  Series
	Middle Series
	Lower  Series
}

// BollingerBands computes SMA(close, period) ± |multiplier| × the population
// standard deviation over the same trailing window.
func BollingerBands(candles []model.Candle, period int, multiplier float64) Bands {
	n := len(candles)
	b := Bands{Upper: undefined(n), Middle: undefined(n), Lower: undefined(n)}
	if period < 1 {
		return b
	}
	closes := Closes(candles)
	mid := SMASeries(closes, period)
	k := math.Abs(multiplier)
	for i := period - 1; i < n; i++ {
		m := mid[i]
		var sq float64
		for _, v := range closes[i-period+1 : i+1] {
			d := v - m
			sq += d * d
		}
		dev := math.Sqrt(sq / float64(period))
		b.Middle[i] = m
		b.Upper[i] = m + k*dev
		b.Lower[i] = m - k*dev
	}
	return b
}

// MACDResult holds MACD output series.
type MACDResult struct {
	MACD      Series
	Signal    Series
	Histogram Series
}

// MACD computes EMA(close, fast) - EMA(close, slow), its signal EMA and the
// histogram between them.
func MACD(candles []model.Candle, fast, slow, signal int) MACDResult {
	n := len(candles)
	res := MACDResult{MACD: undefined(n), Signal: undefined(n), Histogram: undefined(n)}
	if fast < 1 || slow < 1 || signal < 1 {
		return res
	}
	closes := Closes(candles)
	f := EMASeries(closes, fast)
	s := EMASeries(closes, slow)
	for i := 0; i < n; i++ {
		res.MACD[i] = f[i] - s[i] // NaN stays NaN
	}
	res.Signal = EMASeries(res.MACD, signal)
	for i := 0; i < n; i++ {
		res.Histogram[i] = res.MACD[i] - res.Signal[i]
	}
	return res
}
