package condition

import (
	"strings"

	"trading-condengine/internal/indicator"
	"trading-condengine/internal/model"
)

// IndicatorType names an indicator family.
type IndicatorType string

const (
	TypeMA        IndicatorType = "ma"
	TypeBollinger IndicatorType = "bollinger"
	TypeRSI       IndicatorType = "rsi"
	TypeMACD      IndicatorType = "macd"
	TypeDMI       IndicatorType = "dmi"
)

// MaxPeriod bounds every period-like config field.
const MaxPeriod = 500

// IndicatorConfig is the per-type parameter record of an indicator entry.
type IndicatorConfig interface {
	Type() IndicatorType
	// Lookback is the number of trailing candles needed for the selected
	// output to be defined at the last bar.
	Lookback() int
	// Compute returns the selected output series aligned with candles.
	Compute(candles []model.Candle) indicator.Series
}

// IndicatorEntry is an indicator instance referenced by a leaf.
type IndicatorEntry struct {
	ID     string
	Config IndicatorConfig
}

// Type returns the entry's indicator type, or "" without a config.
func (e IndicatorEntry) Type() IndicatorType {
	if e.Config == nil {
		return ""
	}
	return e.Config.Type()
}

// MAConfig configures a moving average.
type MAConfig struct {
	Period int                `json:"period" validate:"min=1,max=500"`
	Method indicator.MAMethod `json:"method" validate:"oneof=sma ema smma wma"`
	Source model.PriceField   `json:"source" validate:"oneof=open high low close"`
}

func DefaultMA() MAConfig {
	return MAConfig{Period: 20, Method: indicator.MethodSMA, Source: model.FieldClose}
}

func (c MAConfig) Type() IndicatorType { return TypeMA }
func (c MAConfig) Lookback() int       { return c.Period }
func (c MAConfig) Compute(candles []model.Candle) indicator.Series {
	return indicator.MovingAverage(indicator.Source(candles, c.Source), c.Period, c.Method)
}

// Band selects a Bollinger output.
type Band string

const (
	BandUpper  Band = "upper"
	BandMiddle Band = "middle"
	BandLower  Band = "lower"
)

// BollingerConfig configures Bollinger Bands.
type BollingerConfig struct {
	Period     int     `json:"period" validate:"min=1,max=500"`
	Multiplier float64 `json:"multiplier" validate:"gt=0,lte=10"`
	Band       Band    `json:"band" validate:"oneof=upper middle lower"`
}

func DefaultBollinger() BollingerConfig {
	return BollingerConfig{Period: 20, Multiplier: 2, Band: BandMiddle}
}

func (c BollingerConfig) Type() IndicatorType { return TypeBollinger }
func (c BollingerConfig) Lookback() int       { return c.Period }
func (c BollingerConfig) Compute(candles []model.Candle) indicator.Series {
	b := indicator.BollingerBands(candles, c.Period, c.Multiplier)
	switch c.Band {
	case BandUpper:
		return b.Upper
	case BandLower:
		return b.Lower
	default:
		return b.Middle
	}
}

// RSIConfig configures the relative strength index.
type RSIConfig struct {
	Period int `json:"period" validate:"min=1,max=500"`
}

func DefaultRSI() RSIConfig { return RSIConfig{Period: 14} }

func (c RSIConfig) Type() IndicatorType { return TypeRSI }
func (c RSIConfig) Lookback() int       { return c.Period + 1 }
func (c RSIConfig) Compute(candles []model.Candle) indicator.Series {
	return indicator.RSISeries(indicator.Closes(candles), c.Period)
}

// MACDLine selects a MACD output.
type MACDLine string

const (
	LineMACD      MACDLine = "macd"
	LineSignal    MACDLine = "signal"
	LineHistogram MACDLine = "histogram"
)

// MACDConfig configures MACD. Fast must be shorter than Slow.
type MACDConfig struct {
	Fast   int      `json:"fast" validate:"min=1,max=500,ltfield=Slow"`
	Slow   int      `json:"slow" validate:"min=2,max=500"`
	Signal int      `json:"signal" validate:"min=1,max=500"`
	Line   MACDLine `json:"line" validate:"oneof=macd signal histogram"`
}

func DefaultMACD() MACDConfig {
	return MACDConfig{Fast: 12, Slow: 26, Signal: 9, Line: LineMACD}
}

func (c MACDConfig) Type() IndicatorType { return TypeMACD }
func (c MACDConfig) Lookback() int {
	if c.Line == LineMACD {
		return c.Slow
	}
	return c.Slow + c.Signal - 1
}
func (c MACDConfig) Compute(candles []model.Candle) indicator.Series {
	m := indicator.MACD(candles, c.Fast, c.Slow, c.Signal)
	switch c.Line {
	case LineSignal:
		return m.Signal
	case LineHistogram:
		return m.Histogram
	default:
		return m.MACD
	}
}

// DMILine selects a DMI output.
type DMILine string

const (
	LinePlusDI  DMILine = "plusDI"
	LineMinusDI DMILine = "minusDI"
	LineDX      DMILine = "dx"
	LineADX     DMILine = "adx"
	LineADXR    DMILine = "adxr"
)

// ParseDMILine normalizes a DMI line name.
func ParseDMILine(s string) (DMILine, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "+di":
		return LinePlusDI, true
	case "-di":
		return LineMinusDI, true
	}
	switch strings.NewReplacer("_", "", "-", "", " ", "").Replace(s) {
	case "plusdi", "pdi", "diplus":
		return LinePlusDI, true
	case "minusdi", "mdi", "diminus":
		return LineMinusDI, true
	case "dx":
		return LineDX, true
	case "adx":
		return LineADX, true
	case "adxr":
		return LineADXR, true
	}
	return "", false
}

// DMIConfig configures the directional movement family.
type DMIConfig struct {
	DIPeriod  int     `json:"diPeriod" validate:"min=1,max=500"`
	ADXPeriod int     `json:"adxPeriod" validate:"min=1,max=500"`
	Line      DMILine `json:"line" validate:"oneof=plusDI minusDI dx adx adxr"`
}

func DefaultDMI() DMIConfig {
	return DMIConfig{DIPeriod: 14, ADXPeriod: 14, Line: LineADX}
}

func (c DMIConfig) Type() IndicatorType { return TypeDMI }
func (c DMIConfig) Lookback() int {
	switch c.Line {
	case LinePlusDI, LineMinusDI, LineDX:
		return c.DIPeriod + 1
	case LineADXR:
		return c.DIPeriod + 2*c.ADXPeriod
	default:
		return c.DIPeriod + c.ADXPeriod
	}
}
func (c DMIConfig) Compute(candles []model.Candle) indicator.Series {
	d := indicator.DMISeries(candles, c.DIPeriod, c.ADXPeriod)
	switch c.Line {
	case LinePlusDI:
		return d.PlusDI
	case LineMinusDI:
		return d.MinusDI
	case LineDX:
		return d.DX
	case LineADXR:
		return d.ADXR
	default:
		return d.ADX
	}
}

// DefaultConfig returns the default config for t, or nil for unknown types.
func DefaultConfig(t IndicatorType) IndicatorConfig {
	switch t {
	case TypeMA:
		return DefaultMA()
	case TypeBollinger:
		return DefaultBollinger()
	case TypeRSI:
		return DefaultRSI()
	case TypeMACD:
		return DefaultMACD()
	case TypeDMI:
		return DefaultDMI()
	}
	return nil
}
