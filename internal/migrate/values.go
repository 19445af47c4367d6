package migrate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type doc = map[string]any

// pick returns the first present key of m.
func pick(m doc, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asMap(v any) (doc, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		p, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(n), "%")
		p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt accepts integral numbers only; 14.5 is rejected.
func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		return p, err == nil
	case float64:
		return b != 0, true
	}
	return false, false
}

func floatField(m doc, keys ...string) (float64, bool) {
	v, ok := pick(m, keys...)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func intField(m doc, keys ...string) (int, bool) {
	v, ok := pick(m, keys...)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func stringField(m doc, keys ...string) string {
	v, ok := pick(m, keys...)
	if !ok {
		return ""
	}
	s, _ := toString(v)
	return s
}

func boolField(m doc, keys ...string) (bool, bool) {
	v, ok := pick(m, keys...)
	if !ok {
		return false, false
	}
	return toBool(v)
}

// percent clamps a present value to [MinPercent, MaxPercent] rounded to two
// decimals; absent or non-numeric input yields def.
func percent(m doc, def float64, keys ...string) float64 {
	f, ok := floatField(m, keys...)
	if !ok {
		return def
	}
	return clampPercent(f)
}

func clampPercent(f float64) float64 {
	d := decimal.NewFromFloat(f)
	lo, hi := decimal.NewFromFloat(MinPercent), decimal.NewFromInt(MaxPercent)
	if d.LessThan(lo) {
		d = lo
	}
	if d.GreaterThan(hi) {
		d = hi
	}
	return d.Round(2).InexactFloat64()
}
