package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-condengine/internal/model"
)

// sample builds:
//
//	root AND
//	├── rsi   (RSI 14 > 70)
//	├── inner OR
//	│   ├── ma    (MA 20 under close)
//	│   └── cross (MA 50 over → ma)
//	├── price (close > 100)
//	└── buy   (action)
func sample() *Group {
	return &Group{ID: "root", Operator: And, Children: []Node{
		&IndicatorLeaf{ID: "rsi", Indicator: IndicatorEntry{ID: "e-rsi", Config: DefaultRSI()},
			Comparison: ValueComparison(Over, 70)},
		&Group{ID: "inner", Operator: Or, Children: []Node{
			&IndicatorLeaf{ID: "ma", Indicator: IndicatorEntry{ID: "e-ma", Config: DefaultMA()},
				Comparison: CandleComparison(Under, model.FieldClose, RefCurrent)},
			&IndicatorLeaf{ID: "cross", Indicator: IndicatorEntry{ID: "e-ma50", Config: MAConfig{Period: 50, Method: "ema", Source: model.FieldClose}},
				Comparison: IndicatorComparison(Over, "ma")},
		}},
		&CandleLeaf{ID: "price", Candle: CandleCondition{Field: model.FieldClose, Comparator: Over, TargetValue: 100, Reference: RefCurrent}},
		&ActionLeaf{ID: "buy", Action: Action{Kind: ActionBuy, OrderType: OrderMarket, Percent: 10}},
	}}
}

func ids[T Node](nodes []T) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.NodeID()
	}
	return out
}

func TestCollectIndicatorLeaves_PreOrder(t *testing.T) {
	assert.Equal(t, []string{"rsi", "ma", "cross"}, ids(CollectIndicatorLeaves(sample())))
	assert.Equal(t, []string{"root", "inner"}, ids(CollectGroups(sample())))
}

func TestFindAndFindParent(t *testing.T) {
	tree := sample()

	require.NotNil(t, Find(tree, "cross"))
	assert.Nil(t, Find(tree, "missing"))

	parent, idx := FindParent(tree, "cross")
	require.NotNil(t, parent)
	assert.Equal(t, "inner", parent.ID)
	assert.Equal(t, 1, idx)

	parent, idx = FindParent(tree, "root")
	assert.Nil(t, parent)
	assert.Equal(t, -1, idx)

	assert.Equal(t, 3, Depth(tree))
	assert.True(t, IsDescendant(tree, "inner", "ma"))
	assert.False(t, IsDescendant(tree, "ma", "inner"))
}

func TestCanonicalize(t *testing.T) {
	leaf := &CandleLeaf{ID: "c"}
	g := Canonicalize(leaf)
	assert.Equal(t, And, g.Operator)
	require.Len(t, g.Children, 1)
	assert.Same(t, leaf, g.Children[0].(*CandleLeaf))

	root := sample()
	assert.Same(t, root, Canonicalize(root))

	empty := Canonicalize(nil)
	assert.Equal(t, And, empty.Operator)
	assert.Empty(t, empty.Children)
	assert.NotEmpty(t, empty.ID)

	var typedNil *Group
	assert.NotNil(t, Canonicalize(typedNil))
}

func TestStatusUnits(t *testing.T) {
	assert.True(t, UnitValid(model.MetricProfitRate, UnitPercent))
	assert.False(t, UnitValid(model.MetricProfitRate, UnitUSDT))
	assert.True(t, UnitValid(model.MetricBuyCount, UnitCount))
	assert.True(t, UnitValid(model.MetricEntryAge, UnitHours))

	l := &StatusLeaf{Metric: model.MetricEntryAge, Value: 2, Unit: UnitHours}
	assert.Equal(t, 7200.0, l.Threshold())
}

func TestParseComparator(t *testing.T) {
	for in, want := range map[string]Comparator{
		">": Over, "above": Over, "<": Under, "lt": Under, "=": Eq, "==": Eq,
		">=": Gte, "<=": Lte, "": None, "NONE": None,
	} {
		got, ok := ParseComparator(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseComparator("sideways")
	assert.False(t, ok)
}

func TestLookback(t *testing.T) {
	assert.Equal(t, 20, DefaultMA().Lookback())
	assert.Equal(t, 15, DefaultRSI().Lookback())
	assert.Equal(t, 26, DefaultMACD().Lookback())
	assert.Equal(t, 34, MACDConfig{Fast: 12, Slow: 26, Signal: 9, Line: LineSignal}.Lookback())
	assert.Equal(t, 28, DefaultDMI().Lookback())
	assert.Equal(t, 15, DMIConfig{DIPeriod: 14, ADXPeriod: 14, Line: LinePlusDI}.Lookback())
	assert.Equal(t, 42, DMIConfig{DIPeriod: 14, ADXPeriod: 14, Line: LineADXR}.Lookback())
}

func TestParseDMILine(t *testing.T) {
	for in, want := range map[string]DMILine{
		"+DI": LinePlusDI, "-di": LineMinusDI, "plus_di": LinePlusDI, "minusDI": LineMinusDI, "ADXR": LineADXR,
	} {
		got, ok := ParseDMILine(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}
