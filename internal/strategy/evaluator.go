// Package strategy evaluates condition trees against candle data.
//
// Numeric work happens once per window in BuildSignalMap, which reduces every
// structural indicator comparison to a boolean. Evaluate then walks the tree
// over that map and the evaluation context; it performs no I/O and never
// mutates the tree.
package strategy

import (
	"math"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/model"
)

// EvaluationContext is the per-evaluation input besides the signal map.
// CandlePrevious is nil when the window holds a single bar; Status is nil
// when no position snapshot is available.
type EvaluationContext struct {
	Symbol         string                `json:"symbol"`
	Direction      model.Direction       `json:"direction"`
	CandleCurrent  *model.Candle         `json:"candleCurrent,omitempty"`
	CandlePrevious *model.Candle         `json:"candlePrevious,omitempty"`
	Status         *model.StatusSnapshot `json:"status,omitempty"`
}

// SignalMap maps IndicatorLeaf ids to their precomputed comparison result.
type SignalMap map[string]bool

// Evaluate reports whether tree matches. A non-group root is treated as an
// AND group holding it.
//
//   - AND is true iff every child is true; an empty AND is true.
//   - OR is true iff some child is true; an empty OR is false.
//   - Action leaves are skipped by both.
//   - An indicator leaf with no comparison is true; otherwise its value is
//     signals[id], false when absent.
//   - A candle leaf with comparator none is true.
//   - A status leaf is false without a snapshot or when its metric was not
//     reported.
//
// signals must be supplied; EvaluateSeries derives them from candles.
func Evaluate(tree condition.Node, ctx EvaluationContext, signals SignalMap) bool {
	return evalGroup(condition.Canonicalize(tree), &ctx, signals)
}

func evalGroup(g *condition.Group, ctx *EvaluationContext, signals SignalMap) bool {
	if g.Operator == condition.Or {
		for _, ch := range g.Children {
			if ch.Kind() == condition.KindAction {
				continue
			}
			if evalNode(ch, ctx, signals) {
				return true
			}
		}
		return false
	}
	for _, ch := range g.Children {
		if ch.Kind() == condition.KindAction {
			continue
		}
		if !evalNode(ch, ctx, signals) {
			return false
		}
	}
	return true
}

func evalNode(n condition.Node, ctx *EvaluationContext, signals SignalMap) bool {
	switch v := n.(type) {
	case *condition.Group:
		return evalGroup(v, ctx, signals)
	case *condition.IndicatorLeaf:
		if v.Comparison.Kind == condition.CompareNone || v.Comparison.Comparator == condition.None {
			return true
		}
		return signals[v.ID]
	case *condition.CandleLeaf:
		c := v.Candle
		if c.Comparator == condition.None {
			return true
		}
		bar := ctx.CandleCurrent
		if c.Reference == condition.RefPrevious {
			bar = ctx.CandlePrevious
		}
		if bar == nil {
			return false
		}
		return Compare(c.Comparator, bar.Price(c.Field), c.TargetValue)
	case *condition.StatusLeaf:
		if ctx.Status == nil {
			return false
		}
		val, ok := ctx.Status.Value(v.Metric)
		if !ok || v.Comparator == condition.None {
			return false
		}
		return Compare(v.Comparator, val, v.Threshold())
	}
	return false
}

// Compare applies c to a and b. Equality is exact. Any NaN operand
// compares false; None compares true.
func Compare(c condition.Comparator, a, b float64) bool {
	if c == condition.None {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	switch c {
	case condition.Over:
		return a > b
	case condition.Under:
		return a < b
	case condition.Eq:
		return a == b
	case condition.Gte:
		return a >= b
	case condition.Lte:
		return a <= b
	}
	return false
}
