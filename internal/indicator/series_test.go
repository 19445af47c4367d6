package indicator

import (
	"math"
	"math/rand"
	"testing"

	"trading-condengine/internal/model"
)

func assertUndefined(t *testing.T, label string, s Series, upTo int) {
	t.Helper()
	for i := 0; i < upTo && i < len(s); i++ {
		if !math.IsNaN(s[i]) {
			t.Errorf("%s[%d]: got %.6f, want NaN", label, i, s[i])
		}
	}
}

func TestSMASeries_Lookback(t *testing.T) {
	got := SMASeries([]float64{10, 11, 11, 12, 12}, 3)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	assertUndefined(t, "SMA", got, 2)
	assertClose(t, "SMA[2]", got[2], 32.0/3, 1e-12)
	assertClose(t, "SMA[3]", got[3], 34.0/3, 1e-12)
	assertClose(t, "SMA[4]", got[4], 35.0/3, 1e-12)
}

func TestSeries_ShortInputIsUndefined(t *testing.T) {
	closes := []float64{1, 2, 3}
	assertUndefined(t, "SMA", SMASeries(closes, 10), 3)
	assertUndefined(t, "EMA", EMASeries(closes, 10), 3)
	assertUndefined(t, "RSI", RSISeries(closes, 3), 3)
	assertUndefined(t, "SMA(0)", SMASeries(closes, 0), 3)
	if got := SMASeries(nil, 3); len(got) != 0 {
		t.Errorf("SMA(nil) len = %d", len(got))
	}
	if !math.IsNaN(Series(nil).Last()) {
		t.Error("empty Last should be NaN")
	}
}

func TestEMASeries_NaNPropagates(t *testing.T) {
	// Leading NaNs are skipped: the seed is the mean of the first 2 defined values.
	got := EMASeries([]float64{NaN, NaN, 2, 4, 6, NaN, 1, 3}, 2)
	assertUndefined(t, "EMA", got, 3)
	assertClose(t, "EMA[3]", got[3], 3, 1e-12)
	// (6-3)*2/3 + 3 = 5
	assertClose(t, "EMA[4]", got[4], 5, 1e-12)
	if !math.IsNaN(got[5]) || !math.IsNaN(got[6]) {
		t.Errorf("NaN input should reset seeding: got %v", got)
	}
	assertClose(t, "EMA[7]", got[7], 2, 1e-12)
}

func TestMovingAverage_Dispatch(t *testing.T) {
	vals := []float64{100, 102, 104, 103, 105}
	assertClose(t, "sma", MovingAverage(vals, 3, MethodSMA).Last(), 104, 1e-9)
	assertClose(t, "ema", MovingAverage(vals, 3, MethodEMA).Last(), 103.75, 1e-9)
	assertClose(t, "smma", MovingAverage(vals, 3, MethodSMMA).Last(), 103.2222, 1e-3)
	// (104*1 + 103*2 + 105*3)/6
	assertClose(t, "wma", MovingAverage(vals, 3, MethodWMA).Last(), 625.0/6, 1e-9)
}

// fixture is a small trending series with pullbacks.
func fixture() []model.Candle {
	highs := []float64{10, 11, 12, 11.5, 13, 14, 13.5, 15, 16, 15.5, 17, 18}
	lows := []float64{9, 10, 10.5, 10, 11.5, 12.5, 12, 13.5, 14.5, 14, 15.5, 16.5}
	closes := []float64{9.5, 10.5, 11.5, 10.5, 12.5, 13.5, 12.5, 14.5, 15.5, 14.5, 16.5, 17.5}
	out := make([]model.Candle, len(closes))
	for i := range closes {
		out[i] = model.Candle{TS: int64(i) * 60_000, Open: closes[i], High: highs[i], Low: lows[i], Close: closes[i]}
	}
	return out
}

func TestBollingerBands_Correctness(t *testing.T) {
	// Window closes[0..3] = 9.5,10.5,11.5,10.5: mean 10.5,
	// population variance (1+0+1+0)/4 = 0.5, σ = 0.7071 → ±1.4142
	b := BollingerBands(fixture(), 4, 2)
	assertUndefined(t, "mid", b.Middle, 3)
	assertUndefined(t, "upper", b.Upper, 3)
	assertClose(t, "mid[3]", b.Middle[3], 10.5, 1e-9)
	assertClose(t, "upper[3]", b.Upper[3], 11.914213562373096, 1e-9)
	assertClose(t, "lower[3]", b.Lower[3], 9.085786437626904, 1e-9)
	assertClose(t, "upper[11]", b.Upper[11], 18.23606797749979, 1e-9)

	// Negative multiplier uses its magnitude.
	neg := BollingerBands(fixture(), 4, -2)
	assertClose(t, "neg upper[3]", neg.Upper[3], b.Upper[3], 1e-12)
}

func TestBollingerBands_Ordering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	candles := make([]model.Candle, 300)
	price := 100.0
	for i := range candles {
		price += rng.Float64()*4 - 2
		candles[i] = model.Candle{TS: int64(i), Open: price, High: price + 1, Low: price - 1, Close: price}
	}
	b := BollingerBands(candles, 20, 2)
	for i := range candles {
		if !b.Middle.Defined(i) {
			continue
		}
		if !(b.Lower[i] <= b.Middle[i] && b.Middle[i] <= b.Upper[i]) {
			t.Fatalf("bar %d: lower=%.4f mid=%.4f upper=%.4f", i, b.Lower[i], b.Middle[i], b.Upper[i])
		}
	}
}

func TestRSISeries_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	closes := make([]float64, 500)
	price := 50.0
	for i := range closes {
		if i%7 != 0 {
			price += rng.NormFloat64() * 3
		}
		closes[i] = price
	}
	for _, period := range []int{2, 5, 14, 50} {
		rsi := RSISeries(closes, period)
		assertUndefined(t, "RSI", rsi, period)
		for i, v := range rsi {
			if math.IsNaN(v) {
				continue
			}
			if v < 0 || v > 100 {
				t.Fatalf("RSI(%d)[%d] = %.4f out of [0,100]", period, i, v)
			}
		}
		if !rsi.Defined(period) {
			t.Errorf("RSI(%d) should be defined at index %d", period, period)
		}
	}
}

func TestMACD_Correctness(t *testing.T) {
	// fast EMA(3), slow EMA(5): line defined from index 4,
	// signal EMA(3) of the line from index 6.
	m := MACD(fixture(), 3, 5, 3)
	assertUndefined(t, "macd", m.MACD, 4)
	assertUndefined(t, "signal", m.Signal, 6)
	assertClose(t, "macd[4]", m.MACD[4], 0.6, 1e-9)
	assertClose(t, "macd[11]", m.MACD[11], 0.7845450388660264, 1e-9)
	assertClose(t, "signal[6]", m.Signal[6], 0.6074074074074071, 1e-9)
	assertClose(t, "signal[11]", m.Signal[11], 0.7137660036579792, 1e-9)
	assertClose(t, "hist[11]", m.Histogram[11], 0.7845450388660264-0.7137660036579792, 1e-9)
}

func TestDMISeries_Correctness(t *testing.T) {
	// diPeriod=3, adxPeriod=3
	// Bar 3: TR sum 1.5+1.5+1.5 = 4.5, +DM sum 2, -DM sum 0.5
	//   +DI = 44.44, -DI = 11.11, DX = 60
	d := DMISeries(fixture(), 3, 3)
	assertUndefined(t, "+DI", d.PlusDI, 3)
	assertUndefined(t, "ADX", d.ADX, 5)
	assertUndefined(t, "ADXR", d.ADXR, 8)

	assertClose(t, "+DI[3]", d.PlusDI[3], 44.44444444444444, 1e-9)
	assertClose(t, "-DI[3]", d.MinusDI[3], 11.11111111111111, 1e-9)
	assertClose(t, "DX[3]", d.DX[3], 60, 1e-9)
	assertClose(t, "+DI[4]", d.PlusDI[4], 51.51515151515152, 1e-9)
	assertClose(t, "ADX[5]", d.ADX[5], 74.88721804511277, 1e-9)
	assertClose(t, "ADX[7]", d.ADX[7], 68.69058269612499, 1e-9)
	assertClose(t, "ADXR[8]", d.ADXR[8], 73.95303536629089, 1e-9)
	assertClose(t, "ADXR[11]", d.ADXR[11], 72.13857305525546, 1e-9)
}

func TestDMISeries_FlatIsZero(t *testing.T) {
	candles := make([]model.Candle, 10)
	for i := range candles {
		candles[i] = model.Candle{TS: int64(i), Open: 5, High: 5, Low: 5, Close: 5}
	}
	d := DMISeries(candles, 2, 2)
	assertClose(t, "+DI", d.PlusDI.Last(), 0, 0)
	assertClose(t, "DX", d.DX.Last(), 0, 0)
	assertClose(t, "ADX", d.ADX.Last(), 0, 0)
}
