package migrate

import "trading-condengine/internal/condition"

type dedupKey struct {
	config condition.IndicatorConfig
	cmp    condition.Comparison
}

// repair resolves comparison targets, downgrades dangling or self targets
// to None and removes duplicate indicator leaves (same config and
// comparison) among the children of one group, keeping the first. Leaves
// in different groups are never merged. References to a removed duplicate are re-pointed at the kept leaf. It
// loops until stable so that a second migration finds nothing to change.
func (p *pass) repair(root *condition.Group) {
	removed := map[string]string{}
	for {
		p.resolveTargets(root, removed)
		if !p.dedupOnce(root, removed) {
			return
		}
	}
}

func (p *pass) resolveTargets(root *condition.Group, removed map[string]string) {
	leaves := condition.CollectIndicatorLeaves(root)
	live := make(map[string]bool, len(leaves))
	for _, l := range leaves {
		live[l.ID] = true
	}
	for _, l := range leaves {
		if l.Comparison.Kind != condition.CompareIndicator {
			continue
		}
		t := l.Comparison.TargetID
		if leafID, ok := p.entryToLeaf[t]; ok && !live[t] {
			t = leafID
		}
		for i := 0; i < len(removed) && !live[t]; i++ {
			next, ok := removed[t]
			if !ok {
				break
			}
			t = next
		}
		if t == "" || t == l.ID || !live[t] {
			l.Comparison = condition.NoComparison()
			continue
		}
		l.Comparison.TargetID = t
	}
}

func (p *pass) dedupOnce(root *condition.Group, removed map[string]string) bool {
	changed := false
	for _, g := range condition.CollectGroups(root) {
		kept := map[dedupKey]string{}
		out := g.Children[:0]
		for _, ch := range g.Children {
			l, ok := ch.(*condition.IndicatorLeaf)
			if !ok {
				out = append(out, ch)
				continue
			}
			k := dedupKey{config: l.Indicator.Config, cmp: l.Comparison}
			if first, ok := kept[k]; ok {
				removed[l.ID] = first
				changed = true
				continue
			}
			kept[k] = l.ID
			out = append(out, ch)
		}
		g.Children = out
	}
	return changed
}
