package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/model"
)

func bar(ts int64, close float64) model.Candle {
	return model.Candle{TS: ts, Open: close, High: close + 0.5, Low: close - 0.5, Close: close, Volume: 1}
}

// scenario: RSI(14) stays at or below 70 through index 23 and crosses above
// it at index 24, while close sits above SMA(20) from index 19 on.
func scenario() []model.Candle {
	out := []model.Candle{bar(0, 100)}
	price := 100.0
	for i := 1; i < 30; i++ {
		switch {
		case i >= 24 || i%2 == 1:
			price += 0.5
		default:
			price -= 0.25
		}
		out = append(out, bar(int64(i)*60_000, price))
	}
	return out
}

func scenarioTree() *condition.Group {
	return &condition.Group{ID: "root", Operator: condition.And, Children: []condition.Node{
		&condition.IndicatorLeaf{ID: "rsi", Indicator: condition.IndicatorEntry{ID: "e1", Config: condition.DefaultRSI()},
			Comparison: condition.ValueComparison(condition.Over, 70)},
		&condition.IndicatorLeaf{ID: "ma", Indicator: condition.IndicatorEntry{ID: "e2", Config: condition.DefaultMA()},
			Comparison: condition.CandleComparison(condition.Under, model.FieldClose, condition.RefCurrent)},
	}}
}

func TestEvaluate_EmptyGroups(t *testing.T) {
	ctx := EvaluationContext{}
	assert.True(t, Evaluate(&condition.Group{Operator: condition.And}, ctx, nil))
	assert.False(t, Evaluate(&condition.Group{Operator: condition.Or}, ctx, nil))
	assert.True(t, Evaluate(nil, ctx, nil))
}

func TestEvaluate_ActionLeavesIgnored(t *testing.T) {
	act := &condition.ActionLeaf{ID: "a", Action: condition.Action{Kind: condition.ActionBuy, OrderType: condition.OrderMarket, Percent: 10}}
	assert.True(t, Evaluate(condition.NewGroup(condition.And, act), EvaluationContext{}, nil))
	assert.False(t, Evaluate(condition.NewGroup(condition.Or, act), EvaluationContext{}, nil))
}

func TestEvaluate_IndicatorLeaves(t *testing.T) {
	gated := &condition.IndicatorLeaf{ID: "x", Indicator: condition.IndicatorEntry{Config: condition.DefaultRSI()},
		Comparison: condition.ValueComparison(condition.Over, 70)}
	free := &condition.IndicatorLeaf{ID: "y", Indicator: condition.IndicatorEntry{Config: condition.DefaultRSI()},
		Comparison: condition.NoComparison()}

	assert.False(t, Evaluate(gated, EvaluationContext{}, SignalMap{}), "missing signal is false")
	assert.True(t, Evaluate(gated, EvaluationContext{}, SignalMap{"x": true}))
	assert.True(t, Evaluate(free, EvaluationContext{}, SignalMap{}), "no comparison is vacuously true")

	or := condition.NewGroup(condition.Or, gated, &condition.Group{ID: "g", Operator: condition.And})
	assert.True(t, Evaluate(or, EvaluationContext{}, SignalMap{"x": false}))
}

func TestEvaluate_CandleLeaf(t *testing.T) {
	cur := bar(2, 105)
	prev := bar(1, 95)
	ctx := EvaluationContext{CandleCurrent: &cur, CandlePrevious: &prev}
	leaf := func(cmp condition.Comparator, target float64, ref condition.Reference) condition.Node {
		return &condition.CandleLeaf{ID: "c", Candle: condition.CandleCondition{
			Field: model.FieldClose, Comparator: cmp, TargetValue: target, Reference: ref}}
	}

	assert.True(t, Evaluate(leaf(condition.Over, 100, condition.RefCurrent), ctx, nil))
	assert.False(t, Evaluate(leaf(condition.Over, 100, condition.RefPrevious), ctx, nil))
	assert.True(t, Evaluate(leaf(condition.Under, 100, condition.RefPrevious), ctx, nil))
	assert.True(t, Evaluate(leaf(condition.Eq, 105, condition.RefCurrent), ctx, nil))
	assert.True(t, Evaluate(leaf(condition.None, 0, condition.RefCurrent), EvaluationContext{}, nil))
	assert.False(t, Evaluate(leaf(condition.Over, 100, condition.RefPrevious), EvaluationContext{CandleCurrent: &cur}, nil),
		"missing previous bar")

	high := &condition.CandleLeaf{ID: "h", Candle: condition.CandleCondition{
		Field: model.FieldHigh, Comparator: condition.Gte, TargetValue: 105.5, Reference: condition.RefCurrent}}
	assert.True(t, Evaluate(high, ctx, nil))
}

func TestEvaluate_StatusLeaf(t *testing.T) {
	leaf := &condition.StatusLeaf{ID: "s", Metric: model.MetricProfitRate, Comparator: condition.Gte, Value: 1.5, Unit: condition.UnitPercent}
	root := condition.NewGroup(condition.And, leaf)

	assert.False(t, Evaluate(root, EvaluationContext{}, nil), "no snapshot")
	assert.True(t, Evaluate(root, EvaluationContext{Status: model.StatusOf(map[model.StatusMetric]float64{model.MetricProfitRate: 2})}, nil))
	assert.False(t, Evaluate(root, EvaluationContext{Status: model.StatusOf(map[model.StatusMetric]float64{model.MetricProfitRate: 1})}, nil))

	age := &condition.StatusLeaf{ID: "age", Metric: model.MetricEntryAge, Comparator: condition.Over, Value: 5, Unit: condition.UnitMinutes}
	assert.True(t, Evaluate(age, EvaluationContext{Status: model.StatusOf(map[model.StatusMetric]float64{model.MetricEntryAge: 301})}, nil))
	assert.False(t, Evaluate(age, EvaluationContext{Status: model.StatusOf(map[model.StatusMetric]float64{model.MetricEntryAge: 299})}, nil))
}

func TestEvaluate_StatusLeafUnreportedMetric(t *testing.T) {
	// Only profitRate was reported; buyCount < 3 must not pass on a zero
	// that nobody sent.
	snap := model.StatusOf(map[model.StatusMetric]float64{model.MetricProfitRate: 1.5})
	leaf := &condition.StatusLeaf{ID: "bc", Metric: model.MetricBuyCount, Comparator: condition.Under, Value: 3, Unit: condition.UnitCount}
	assert.False(t, Evaluate(leaf, EvaluationContext{Status: snap}, nil))

	snap.Set(model.MetricBuyCount, 0)
	assert.True(t, Evaluate(leaf, EvaluationContext{Status: snap}, nil))
}

func TestCompare(t *testing.T) {
	assert.True(t, Compare(condition.Over, 2, 1))
	assert.False(t, Compare(condition.Over, 1, 1))
	assert.True(t, Compare(condition.Gte, 1, 1))
	assert.True(t, Compare(condition.Lte, 1, 1))
	assert.True(t, Compare(condition.Under, 0, 1))
	a, b := 0.1, 0.2
	assert.False(t, Compare(condition.Eq, a+b, 0.3), "equality is exact")
	assert.True(t, Compare(condition.Eq, 70.0, 70))
	assert.False(t, Compare(condition.Over, math.NaN(), 1))
	assert.False(t, Compare(condition.Lte, 1, math.NaN()))
	assert.True(t, Compare(condition.None, math.NaN(), 1))
}

func TestEvaluate_Deterministic(t *testing.T) {
	tree := scenarioTree()
	before, err := condition.MarshalNode(tree)
	require.NoError(t, err)

	candles := scenario()
	first, _, _ := EvaluateSeries(tree, "BTCUSDT", model.Long, candles, nil)
	for i := 0; i < 5; i++ {
		again, _, _ := EvaluateSeries(tree, "BTCUSDT", model.Long, candles, nil)
		assert.Equal(t, first, again)
	}

	after, err := condition.MarshalNode(tree)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "evaluation must not mutate the tree")
}

func TestScenario_TransitionAtBar25(t *testing.T) {
	candles := scenario()
	tree := scenarioTree()
	for i := range candles {
		match, ctx, signals := EvaluateSeries(tree, "BTCUSDT", model.Long, candles[:i+1], nil)
		require.NotNil(t, ctx.CandleCurrent)
		assert.Equal(t, candles[i].TS, ctx.CandleCurrent.TS)
		if i >= 19 {
			assert.True(t, signals["ma"], "close above SMA at %d", i)
		}
		assert.Equal(t, i >= 24, match, "index %d", i)
	}
}

func TestEvaluateSeries_DerivesSignals(t *testing.T) {
	candles := scenario()
	tree := scenarioTree()
	match, ctx, signals := EvaluateSeries(tree, "BTCUSDT", model.Long, candles, nil)
	require.True(t, match)
	assert.True(t, Evaluate(tree, ctx, signals))
	assert.False(t, Evaluate(tree, ctx, nil), "compared leaves need a signal map")
}

func TestBuildSignalMap(t *testing.T) {
	candles := scenario()
	tree := condition.NewGroup(condition.And,
		&condition.IndicatorLeaf{ID: "fast", Indicator: condition.IndicatorEntry{Config: condition.MAConfig{Period: 5, Method: "sma", Source: model.FieldClose}},
			Comparison: condition.IndicatorComparison(condition.Over, "slow")},
		&condition.IndicatorLeaf{ID: "slow", Indicator: condition.IndicatorEntry{Config: condition.MAConfig{Period: 20, Method: "sma", Source: model.FieldClose}},
			Comparison: condition.NoComparison()},
		&condition.IndicatorLeaf{ID: "prev", Indicator: condition.IndicatorEntry{Config: condition.MAConfig{Period: 5, Method: "sma", Source: model.FieldClose}},
			Comparison: condition.CandleComparison(condition.Under, model.FieldClose, condition.RefPrevious)},
		&condition.IndicatorLeaf{ID: "dangling", Indicator: condition.IndicatorEntry{Config: condition.DefaultRSI()},
			Comparison: condition.IndicatorComparison(condition.Over, "nope")},
	)

	signals := BuildSignalMap(tree, candles)
	assert.True(t, signals["fast"], "rising series: short MA above long MA")
	assert.True(t, signals["slow"], "defined value without comparison")
	assert.True(t, signals["prev"])
	assert.False(t, signals["dangling"])

	short := BuildSignalMap(tree, candles[:3])
	assert.False(t, short["fast"], "undefined values compare false")
	assert.False(t, short["slow"])

	empty := BuildSignalMap(tree, nil)
	assert.Len(t, empty, 4)
}

func TestRequiredLookback(t *testing.T) {
	assert.Equal(t, 22, RequiredLookback(scenarioTree(), 2))
	assert.Equal(t, MinLookback, RequiredLookback(&condition.Group{Operator: condition.And}, 0))

	macd := condition.NewGroup(condition.Or,
		&condition.IndicatorLeaf{ID: "m", Indicator: condition.IndicatorEntry{Config: condition.DefaultMACD()}, Comparison: condition.NoComparison()})
	assert.Equal(t, 26, RequiredLookback(macd, 0))
}

func TestContextFor(t *testing.T) {
	candles := scenario()
	ctx := ContextFor("ETHUSDT", model.Short, candles[:1], nil)
	require.NotNil(t, ctx.CandleCurrent)
	assert.Nil(t, ctx.CandlePrevious)
	assert.Equal(t, model.Short, ctx.Direction)

	ctx = ContextFor("ETHUSDT", model.Short, candles, nil)
	assert.Equal(t, candles[28].Close, ctx.CandlePrevious.Close)
}
