package migrate

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/indicator"
	"trading-condengine/internal/model"
)

var validate = validator.New()

// typeHint is what an indicator type alias implies beyond the family.
type typeHint struct {
	typ     condition.IndicatorType
	method  indicator.MAMethod
	dmiLine condition.DMILine
}

func parseIndicatorType(s string) (typeHint, bool) {
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)) {
	case "ma", "movingaverage":
		return typeHint{typ: condition.TypeMA}, true
	case "sma":
		return typeHint{typ: condition.TypeMA, method: indicator.MethodSMA}, true
	case "ema":
		return typeHint{typ: condition.TypeMA, method: indicator.MethodEMA}, true
	case "smma", "rma":
		return typeHint{typ: condition.TypeMA, method: indicator.MethodSMMA}, true
	case "wma":
		return typeHint{typ: condition.TypeMA, method: indicator.MethodWMA}, true
	case "bollinger", "bollingerbands", "bb", "bbands", "boll":
		return typeHint{typ: condition.TypeBollinger}, true
	case "rsi":
		return typeHint{typ: condition.TypeRSI}, true
	case "macd":
		return typeHint{typ: condition.TypeMACD}, true
	case "dmi", "di":
		return typeHint{typ: condition.TypeDMI}, true
	case "adx":
		return typeHint{typ: condition.TypeDMI, dmiLine: condition.LineADX}, true
	case "adxr":
		return typeHint{typ: condition.TypeDMI, dmiLine: condition.LineADXR}, true
	case "dx":
		return typeHint{typ: condition.TypeDMI, dmiLine: condition.LineDX}, true
	}
	return typeHint{}, false
}

// indicatorLeaf accepts the canonical {indicator:{id,type,config}} shape,
// a flat leaf carrying the type and parameters itself, or a mix. Unknown
// indicator types drop the leaf.
func (p *pass) indicatorLeaf(m doc) condition.Node {
	entry := m
	entryID := ""
	typeName := ""
	switch ind := m["indicator"].(type) {
	case map[string]any:
		entry = ind
		entryID = stringField(ind, "id")
		typeName = stringField(ind, "type", "name", "kind")
	case string:
		typeName = ind
	}
	if typeName == "" {
		typeName = stringField(m, "indicatorType", "indicatorName")
	}
	if typeName == "" && !strings.EqualFold(stringField(m, "type"), "indicator") {
		typeName = stringField(m, "type", "name")
	}
	hint, ok := parseIndicatorType(typeName)
	if !ok {
		return nil
	}

	params := entry
	if cfg, ok := asMap(pick1(entry, "config", "params", "settings", "parameters")); ok {
		params = cfg
	}

	leaf := &condition.IndicatorLeaf{
		ID: p.nodeID(m),
		Indicator: condition.IndicatorEntry{
			ID:     p.claim(entryID),
			Config: parseConfig(hint, params),
		},
	}
	p.entryToLeaf[leaf.Indicator.ID] = leaf.ID
	leaf.Comparison = parseComparison(m)
	return leaf
}

func pick1(m doc, keys ...string) any {
	v, _ := pick(m, keys...)
	return v
}

func parseConfig(h typeHint, m doc) condition.IndicatorConfig {
	switch h.typ {
	case condition.TypeMA:
		c := condition.MAConfig{Method: h.method}
		c.Period, _ = intField(m, "period", "length", "len", "window")
		if method, ok := indicator.ParseMAMethod(stringField(m, "method", "maType", "smoothing")); ok {
			c.Method = method
		}
		if src, ok := model.ParsePriceField(stringField(m, "source", "field", "price")); ok {
			c.Source = src
		}
		return withDefaults(c, condition.DefaultMA())
	case condition.TypeBollinger:
		c := condition.BollingerConfig{}
		c.Period, _ = intField(m, "period", "length", "len", "window")
		c.Multiplier, _ = floatField(m, "multiplier", "mult", "stdDev", "stddev", "deviation", "k")
		switch strings.ToLower(stringField(m, "band", "line", "output")) {
		case "upper", "top", "up":
			c.Band = condition.BandUpper
		case "middle", "mid", "basis", "center":
			c.Band = condition.BandMiddle
		case "lower", "bottom", "low":
			c.Band = condition.BandLower
		}
		return withDefaults(c, condition.DefaultBollinger())
	case condition.TypeRSI:
		c := condition.RSIConfig{}
		c.Period, _ = intField(m, "period", "length", "len", "window")
		return withDefaults(c, condition.DefaultRSI())
	case condition.TypeMACD:
		c := condition.MACDConfig{}
		c.Fast, _ = intField(m, "fast", "fastPeriod", "shortPeriod", "fastLength")
		c.Slow, _ = intField(m, "slow", "slowPeriod", "longPeriod", "slowLength")
		c.Signal, _ = intField(m, "signal", "signalPeriod", "signalLength")
		switch strings.ToLower(stringField(m, "line", "output", "series")) {
		case "macd", "value", "main":
			c.Line = condition.LineMACD
		case "signal":
			c.Line = condition.LineSignal
		case "histogram", "hist":
			c.Line = condition.LineHistogram
		}
		return withDefaults(c, condition.DefaultMACD())
	case condition.TypeDMI:
		c := condition.DMIConfig{Line: h.dmiLine}
		c.DIPeriod, _ = intField(m, "diPeriod", "period", "length", "len")
		c.ADXPeriod, _ = intField(m, "adxPeriod", "adxSmoothing", "smoothing")
		if line, ok := condition.ParseDMILine(stringField(m, "line", "output", "series")); ok {
			c.Line = line
		}
		return withDefaults(c, condition.DefaultDMI())
	}
	return nil
}

// withDefaults replaces every field failing its validate tag with the
// default's value. Values are reset, not clamped to the nearest bound. If
// the record is still invalid (e.g. MACD fast >= slow) the whole default
// is returned.
func withDefaults[T any](cfg, def T) T {
	err := validate.Struct(cfg)
	if err == nil {
		return cfg
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return def
	}
	rv := reflect.ValueOf(&cfg).Elem()
	dv := reflect.ValueOf(def)
	for _, fe := range verrs {
		name := fe.StructField()
		rv.FieldByName(name).Set(dv.FieldByName(name))
	}
	if validate.Struct(cfg) != nil {
		return def
	}
	return cfg
}

// parseComparison reads the canonical comparison object or a comparison
// flattened onto the leaf. A missing or unknown comparator yields None.
func parseComparison(m doc) condition.Comparison {
	c, nested := m, false
	if inner, ok := asMap(m["comparison"]); ok {
		c, nested = inner, true
	} else if inner, ok := asMap(m["compare"]); ok {
		c, nested = inner, true
	}
	cmp, ok := condition.ParseComparator(stringField(c, "comparator", "operator", "op", "condition"))
	if !ok || cmp == condition.None {
		return condition.NoComparison()
	}

	kind := strings.ToLower(stringField(c, "kind", "compareTo", "against"))
	if kind == "" && nested {
		// On the leaf itself "type" is the node type.
		kind = strings.ToLower(stringField(c, "type"))
	}
	target := stringField(c, "targetIndicatorId", "targetId", "indicatorId", "targetIndicator")

	if kind == "" {
		switch {
		case target != "":
			kind = string(condition.CompareIndicator)
		case has(c, "field") && !has(c, "value"):
			kind = string(condition.CompareCandle)
		case has(c, "value", "literal", "targetValue", "threshold"):
			kind = string(condition.CompareValue)
		}
	}

	switch kind {
	case "value", "literal", "constant", "number":
		v, ok := floatField(c, "value", "literal", "targetValue", "threshold")
		if !ok {
			return condition.NoComparison()
		}
		return condition.ValueComparison(cmp, v)
	case "candle", "price", "field":
		f, ok := model.ParsePriceField(stringField(c, "field", "source", "price"))
		if !ok {
			f = model.FieldClose
		}
		return condition.CandleComparison(cmp, f, condition.ParseReference(stringField(c, "reference", "ref", "bar")))
	case "indicator":
		if target == "" {
			target = stringField(c, "target")
		}
		return condition.IndicatorComparison(cmp, target)
	}
	return condition.NoComparison()
}
