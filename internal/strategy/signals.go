package strategy

import (
	"math"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/indicator"
	"trading-condengine/internal/model"
)

// MinLookback is the smallest useful window: current and previous bar.
const MinLookback = 2

// RequiredLookback returns the window length the tree needs: the largest
// indicator lookback plus margin, never below MinLookback.
func RequiredLookback(tree condition.Node, margin int) int {
	need := 0
	for _, l := range condition.CollectIndicatorLeaves(tree) {
		if l.Indicator.Config == nil {
			continue
		}
		if lb := l.Indicator.Config.Lookback(); lb > need {
			need = lb
		}
	}
	if margin > 0 {
		need += margin
	}
	if need < MinLookback {
		need = MinLookback
	}
	return need
}

// seriesCache computes each distinct indicator config once per window.
type seriesCache struct {
	candles []model.Candle
	byCfg   map[condition.IndicatorConfig]indicator.Series
}

func (c *seriesCache) value(cfg condition.IndicatorConfig) float64 {
	if cfg == nil {
		return indicator.NaN
	}
	s, ok := c.byCfg[cfg]
	if !ok {
		s = cfg.Compute(c.candles)
		c.byCfg[cfg] = s
	}
	return s.Last()
}

// LeafValues returns each indicator leaf's value at the last bar (NaN while
// undefined).
func LeafValues(tree condition.Node, candles []model.Candle) map[string]float64 {
	cache := &seriesCache{candles: candles, byCfg: map[condition.IndicatorConfig]indicator.Series{}}
	leaves := condition.CollectIndicatorLeaves(tree)
	out := make(map[string]float64, len(leaves))
	for _, l := range leaves {
		out[l.ID] = cache.value(l.Indicator.Config)
	}
	return out
}

// BuildSignalMap reduces every indicator leaf to a boolean at the last bar
// of candles. Value comparisons use the literal, candle comparisons the
// selected price of the current or previous bar, and indicator comparisons
// the target leaf's value. Undefined values compare false. Leaves without a
// comparison map to whether their value is defined.
func BuildSignalMap(tree condition.Node, candles []model.Candle) SignalMap {
	leaves := condition.CollectIndicatorLeaves(tree)
	signals := make(SignalMap, len(leaves))
	if len(candles) == 0 {
		for _, l := range leaves {
			signals[l.ID] = false
		}
		return signals
	}

	values := LeafValues(tree, candles)
	last := len(candles) - 1
	for _, l := range leaves {
		v := values[l.ID]
		c := l.Comparison
		switch c.Kind {
		case condition.CompareValue:
			signals[l.ID] = Compare(c.Comparator, v, c.Value)
		case condition.CompareCandle:
			idx := last
			if c.Reference == condition.RefPrevious {
				idx--
			}
			if idx < 0 {
				signals[l.ID] = false
				continue
			}
			signals[l.ID] = Compare(c.Comparator, v, candles[idx].Price(c.Field))
		case condition.CompareIndicator:
			tv, ok := values[c.TargetID]
			signals[l.ID] = ok && c.TargetID != l.ID && Compare(c.Comparator, v, tv)
		default:
			signals[l.ID] = !math.IsNaN(v)
		}
	}
	return signals
}

// ContextFor builds an evaluation context from the tail of candles.
func ContextFor(symbol string, dir model.Direction, candles []model.Candle, status *model.StatusSnapshot) EvaluationContext {
	ctx := EvaluationContext{Symbol: symbol, Direction: dir, Status: status}
	if n := len(candles); n > 0 {
		cur := candles[n-1]
		ctx.CandleCurrent = &cur
		if n > 1 {
			prev := candles[n-2]
			ctx.CandlePrevious = &prev
		}
	}
	return ctx
}

// EvaluateSeries derives the signal map and context from candles and
// evaluates tree at the last bar.
func EvaluateSeries(tree condition.Node, symbol string, dir model.Direction, candles []model.Candle, status *model.StatusSnapshot) (bool, EvaluationContext, SignalMap) {
	signals := BuildSignalMap(tree, candles)
	ctx := ContextFor(symbol, dir, candles, status)
	return Evaluate(tree, ctx, signals), ctx, signals
}
