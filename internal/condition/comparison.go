package condition

import (
	"strings"

	"trading-condengine/internal/model"
)

// Comparator is a numeric comparison. None marks a value-only reference.
type Comparator string

const (
	Over  Comparator = "over"
	Under Comparator = "under"
	Eq    Comparator = "eq"
	Gte   Comparator = "gte"
	Lte   Comparator = "lte"
	None  Comparator = "none"
)

// ParseComparator normalizes symbolic and word spellings. Unknown input
// returns false.
func ParseComparator(s string) (Comparator, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "over", ">", "gt", "above", "greater", "greaterthan", "cross_above", "crossover":
		return Over, true
	case "under", "<", "lt", "below", "less", "lessthan", "cross_below", "crossunder":
		return Under, true
	case "eq", "=", "==", "equal", "equals":
		return Eq, true
	case "gte", ">=", "ge", "atleast":
		return Gte, true
	case "lte", "<=", "le", "atmost":
		return Lte, true
	case "none", "", "-":
		return None, true
	}
	return "", false
}

// Symbol renders the comparator as an operator.
func (c Comparator) Symbol() string {
	switch c {
	case Over:
		return ">"
	case Under:
		return "<"
	case Eq:
		return "="
	case Gte:
		return ">="
	case Lte:
		return "<="
	}
	return "none"
}

// ComparisonKind discriminates Comparison variants.
type ComparisonKind string

const (
	CompareNone      ComparisonKind = "none"
	CompareValue     ComparisonKind = "value"
	CompareCandle    ComparisonKind = "candle"
	CompareIndicator ComparisonKind = "indicator"
)

// Comparison says what an indicator leaf's value is compared against.
// Only the fields of the active Kind are meaningful; constructors zero the rest.
type Comparison struct {
	Kind       ComparisonKind
	Comparator Comparator

	Value float64 // CompareValue

	Field     model.PriceField // CompareCandle
	Reference Reference        // CompareCandle

	TargetID string // CompareIndicator: id of another IndicatorLeaf
}

// NoComparison exposes the indicator without gating on it.
func NoComparison() Comparison {
	return Comparison{Kind: CompareNone, Comparator: None}
}

// ValueComparison compares against a literal.
func ValueComparison(c Comparator, v float64) Comparison {
	return Comparison{Kind: CompareValue, Comparator: c, Value: v}
}

// CandleComparison compares against a price of the current or previous bar.
func CandleComparison(c Comparator, f model.PriceField, ref Reference) Comparison {
	return Comparison{Kind: CompareCandle, Comparator: c, Field: f, Reference: ref}
}

// IndicatorComparison compares against the value of another indicator leaf.
func IndicatorComparison(c Comparator, targetID string) Comparison {
	return Comparison{Kind: CompareIndicator, Comparator: c, TargetID: targetID}
}
