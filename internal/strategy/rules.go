package strategy

import (
	"trading-condengine/internal/condition"
	"trading-condengine/internal/migrate"
	"trading-condengine/internal/model"
)

// RuleName identifies the rule for symbol, direction and action.
func RuleName(symbol string, dir model.Direction, action Action) string {
	return symbol + ":" + string(dir) + ":" + string(action)
}

// RulesFromSettings expands migrated settings into one rule per symbol and
// enabled block of an enabled direction that holds at least one predicate
// leaf. A block of only groups and actions would match vacuously and is
// skipped. Order is stable:
// symbols, then long before short, then entry, scale-in, exit, stop-loss,
// hedge.
func RulesFromSettings(s migrate.Settings, symbols []string) []Rule {
	var out []Rule
	for _, sym := range symbols {
		for _, dir := range []model.Direction{model.Long, model.Short} {
			ds := s.Direction(dir)
			if !ds.Enabled {
				continue
			}
			blocks := []struct {
				action Action
				block  migrate.Block
			}{
				{ActionEntry, ds.Entry},
				{ActionScaleIn, ds.ScaleIn.Block},
				{ActionExit, ds.Exit.Block},
				{ActionStopLoss, ds.StopLoss.Block},
				{ActionHedge, ds.HedgeActivation.Block},
			}
			for _, b := range blocks {
				if !b.block.Enabled || !hasPredicate(b.block.Conditions) {
					continue
				}
				out = append(out, Rule{
					Name:      RuleName(sym, dir, b.action),
					Symbol:    sym,
					Direction: dir,
					Action:    b.action,
					Tree:      condition.CloneGroup(b.block.Conditions),
				})
			}
		}
	}
	return out
}

func hasPredicate(g *condition.Group) bool {
	if g == nil {
		return false
	}
	found := false
	condition.Walk(g, func(n condition.Node, _ int) bool {
		switch n.Kind() {
		case condition.KindGroup, condition.KindAction:
		default:
			found = true
		}
		return !found
	})
	return found
}
