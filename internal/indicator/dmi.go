package indicator

import (
	"math"

	"trading-condengine/internal/model"
)

// DMI calculates Wilder's Directional Movement Index with ADX and ADXR.
//
// True range and ±DM are seeded with the sum of the first diPeriod samples,
// then decayed with acc = acc - acc/diPeriod + sample. ADX is an SMMA of DX
// over adxPeriod and ADXR averages ADX with its value adxPeriod bars back.
type DMI struct {
	diPeriod  int
	adxPeriod int

	count int // candles seen
	prev  model.Candle

	tr, plusDM, minusDM float64
	plusDI, minusDI, dx float64

	adx      *SMMA
	adxHist  []float64 // ring of the last adxPeriod+1 ADX values
	adxCount int
	adxr     float64
}

// NewDMI creates a DMI indicator.
func NewDMI(diPeriod, adxPeriod int) *DMI {
	if diPeriod < 1 {
		diPeriod = 1
	}
	if adxPeriod < 1 {
		adxPeriod = 1
	}
	return &DMI{
		diPeriod:  diPeriod,
		adxPeriod: adxPeriod,
		adx:       NewSMMA(adxPeriod),
		adxHist:   make([]float64, adxPeriod+1),
	}
}

func (d *DMI) Name() string { return "DMI" }

// Update feeds the next candle.
func (d *DMI) Update(c model.Candle) {
	d.count++
	if d.count == 1 {
		d.prev = c
		return
	}

	tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-d.prev.Close), math.Abs(c.Low-d.prev.Close)))
	up := c.High - d.prev.High
	down := d.prev.Low - c.Low
	pdm, mdm := 0.0, 0.0
	if up > down && up > 0 {
		pdm = up
	}
	if down > up && down > 0 {
		mdm = down
	}
	d.prev = c

	n := d.count - 1
	p := float64(d.diPeriod)
	if n <= d.diPeriod {
		// Seed phase: plain sums
		d.tr += tr
		d.plusDM += pdm
		d.minusDM += mdm
		if n < d.diPeriod {
			return
		}
	} else {
		d.tr = d.tr - d.tr/p + tr
		d.plusDM = d.plusDM - d.plusDM/p + pdm
		d.minusDM = d.minusDM - d.minusDM/p + mdm
	}

	if d.tr == 0 {
		d.plusDI, d.minusDI = 0, 0
	} else {
		d.plusDI = 100 * d.plusDM / d.tr
		d.minusDI = 100 * d.minusDM / d.tr
	}
	if sum := d.plusDI + d.minusDI; sum == 0 {
		d.dx = 0
	} else {
		d.dx = 100 * math.Abs(d.plusDI-d.minusDI) / sum
	}

	d.adx.Update(d.dx)
	if !d.adx.Ready() {
		return
	}
	size := d.adxPeriod + 1
	d.adxHist[d.adxCount%size] = d.adx.Value()
	d.adxCount++
	if d.adxCount > d.adxPeriod {
		prior := d.adxHist[(d.adxCount-1-d.adxPeriod)%size]
		d.adxr = (d.adx.Value() + prior) / 2
	}
}

// DIReady reports whether +DI, -DI and DX are defined.
func (d *DMI) DIReady() bool { return d.count > d.diPeriod }

// ADXReady reports whether ADX is defined.
func (d *DMI) ADXReady() bool { return d.adx.Ready() }

// ADXRReady reports whether ADXR is defined.
func (d *DMI) ADXRReady() bool { return d.adxCount > d.adxPeriod }

func (d *DMI) PlusDI() float64  { return d.plusDI }
func (d *DMI) MinusDI() float64 { return d.minusDI }
func (d *DMI) DX() float64      { return d.dx }
func (d *DMI) ADX() float64     { return d.adx.Value() }
func (d *DMI) ADXR() float64    { return d.adxr }

// Reset clears the DMI state for reuse.
func (d *DMI) Reset() {
	d.count = 0
	d.prev = model.Candle{}
	d.tr, d.plusDM, d.minusDM = 0, 0, 0
	d.plusDI, d.minusDI, d.dx = 0, 0, 0
	d.adx.Reset()
	d.adxCount = 0
	d.adxr = 0
}

// DMIResult holds DMI output series.
type DMIResult struct {
	PlusDI  Series
	MinusDI Series
	DX      Series
	ADX     Series
	ADXR    Series
}

// DMISeries computes the DMI family over candles.
func DMISeries(candles []model.Candle, diPeriod, adxPeriod int) DMIResult {
	n := len(candles)
	res := DMIResult{
		PlusDI: undefined(n), MinusDI: undefined(n), DX: undefined(n),
		ADX: undefined(n), ADXR: undefined(n),
	}
	if diPeriod < 1 || adxPeriod < 1 {
		return res
	}
	d := NewDMI(diPeriod, adxPeriod)
	for i, c := range candles {
		d.Update(c)
		if d.DIReady() {
			res.PlusDI[i] = d.PlusDI()
			res.MinusDI[i] = d.MinusDI()
			res.DX[i] = d.DX()
		}
		if d.ADXReady() {
			res.ADX[i] = d.ADX()
		}
		if d.ADXRReady() {
			res.ADXR[i] = d.ADXR()
		}
	}
	return res
}
