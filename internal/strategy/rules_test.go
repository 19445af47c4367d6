package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/migrate"
	"trading-condengine/internal/model"
)

func TestRulesFromSettings(t *testing.T) {
	s := migrate.Default()
	s.Long.Enabled = true
	s.Long.Entry = migrate.Block{Enabled: true, Conditions: scenarioTree()}
	s.Long.Exit.Enabled = true // enabled but empty: no rule
	s.Long.StopLoss.Enabled = true
	s.Long.StopLoss.Conditions = scenarioTree()
	s.Short.Entry = migrate.Block{Enabled: true, Conditions: scenarioTree()} // direction disabled

	rules := RulesFromSettings(s, []string{"BTCUSDT", "ETHUSDT"})
	require.Len(t, rules, 4)
	assert.Equal(t, "BTCUSDT:long:ENTRY", rules[0].Name)
	assert.Equal(t, ActionStopLoss, rules[1].Action)
	assert.Equal(t, "ETHUSDT", rules[2].Symbol)
	assert.Equal(t, model.Long, rules[3].Direction)

	rules[0].Tree.Children = nil
	assert.Len(t, s.Long.Entry.Conditions.Children, 2, "rules own a copy of the tree")
}

func TestRulesFromSettings_FromDocument(t *testing.T) {
	s := migrate.MigrateJSON([]byte(`{"short":{"entry":[{"type":"rsi","period":14,"comparator":"<","value":30}]}}`))
	rules := RulesFromSettings(s, []string{"SOLUSDT"})
	require.Len(t, rules, 1)
	assert.Equal(t, RuleName("SOLUSDT", model.Short, ActionEntry), rules[0].Name)
}

func TestRulesFromSettings_SkipsActionOnlyBlocks(t *testing.T) {
	buy := &condition.ActionLeaf{ID: "buy", Action: condition.Action{Kind: condition.ActionBuy, OrderType: condition.OrderMarket, Percent: 10}}
	s := migrate.Default()
	s.Long.Enabled = true
	s.Long.Entry = migrate.Block{Enabled: true, Conditions: condition.NewGroup(condition.And,
		condition.NewGroup(condition.Or), buy)}
	s.Long.Exit.Enabled = true
	s.Long.Exit.Conditions = condition.NewGroup(condition.And,
		condition.NewGroup(condition.And, scenarioTree()), buy)

	rules := RulesFromSettings(s, []string{"BTCUSDT"})
	require.Len(t, rules, 1)
	assert.Equal(t, ActionExit, rules[0].Action)
}
