package migrate

import (
	"strings"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/model"
)

// pass holds per-tree migration state.
type pass struct {
	seen map[string]struct{} // node and indicator-entry ids already issued
	// entryToLeaf maps indicator-entry ids to their leaf id so comparisons
	// written against either resolve.
	entryToLeaf map[string]string
}

func newPass() *pass {
	return &pass{seen: map[string]struct{}{}, entryToLeaf: map[string]string{}}
}

// claim returns raw if it is a fresh non-empty id, otherwise a new one.
func (p *pass) claim(raw string) string {
	if raw != "" {
		if _, dup := p.seen[raw]; !dup {
			p.seen[raw] = struct{}{}
			return raw
		}
	}
	id := condition.NewID()
	p.seen[id] = struct{}{}
	return id
}

func (p *pass) nodeID(m doc) string {
	return p.claim(stringField(m, "id", "nodeId", "key"))
}

// node converts one document value into a condition node. Unusable input
// returns nil and is dropped by the caller.
func (p *pass) node(v any) condition.Node {
	switch t := v.(type) {
	case []any:
		g := &condition.Group{ID: p.claim(""), Operator: condition.And}
		g.Children = p.children(t)
		return g
	case map[string]any:
		return p.nodeFromMap(t)
	}
	return nil
}

func (p *pass) children(list []any) []condition.Node {
	out := make([]condition.Node, 0, len(list))
	for _, item := range list {
		if n := p.node(item); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (p *pass) nodeFromMap(m doc) condition.Node {
	typ := strings.ToLower(stringField(m, "type", "kind", "nodeType"))
	switch typ {
	case "group":
		return p.group(m, "")
	case "and", "or":
		return p.group(m, typ)
	case "indicator":
		return p.indicatorLeaf(m)
	case "candle", "price":
		return p.candleLeaf(m)
	case "status", "position":
		return p.statusLeaf(m)
	case "action":
		return p.actionLeaf(m)
	case "":
	default:
		// A bare indicator type on the node, e.g. {"type":"rsi","period":14}.
		if _, ok := parseIndicatorType(typ); ok {
			return p.indicatorLeaf(m)
		}
		return nil
	}

	// No discriminator: infer from shape.
	switch {
	case has(m, "children", "nodes") || has(m, "operator", "logic"):
		return p.group(m, "")
	case has(m, "indicator", "indicatorType"):
		return p.indicatorLeaf(m)
	case has(m, "candle"):
		return p.candleLeaf(m)
	case has(m, "metric"):
		return p.statusLeaf(m)
	case has(m, "action"):
		return p.actionLeaf(m)
	case has(m, "conditions"):
		return p.group(m, "")
	case has(m, "field") && has(m, "targetValue", "value", "price"):
		return p.candleLeaf(m)
	}
	return nil
}

func has(m doc, keys ...string) bool {
	_, ok := pick(m, keys...)
	return ok
}

func (p *pass) group(m doc, opHint string) *condition.Group {
	op := condition.And
	raw := opHint
	if raw == "" {
		raw = stringField(m, "operator", "logic", "op")
	}
	if parsed, ok := condition.ParseOperator(raw); ok {
		op = parsed
	}
	g := &condition.Group{ID: p.nodeID(m), Operator: op, Children: []condition.Node{}}
	if list, ok := pick(m, "children", "conditions", "nodes"); ok {
		switch l := list.(type) {
		case []any:
			g.Children = p.children(l)
		default:
			if n := p.node(l); n != nil {
				g.Children = append(g.Children, n)
			}
		}
	}
	return g
}

func (p *pass) candleLeaf(m doc) condition.Node {
	c := m
	if inner, ok := asMap(m["candle"]); ok {
		c = inner
	}
	field, ok := model.ParsePriceField(stringField(c, "field", "source", "price"))
	if !ok {
		field = model.FieldClose
	}
	cmp, ok := condition.ParseComparator(stringField(c, "comparator", "operator", "op", "condition"))
	if !ok {
		cmp = condition.None
	}
	target, _ := floatField(c, "targetValue", "value", "target")
	return &condition.CandleLeaf{
		ID: p.nodeID(m),
		Candle: condition.CandleCondition{
			Field:       field,
			Comparator:  cmp,
			TargetValue: target,
			Reference:   condition.ParseReference(stringField(c, "reference", "ref", "bar")),
		},
	}
}

// statusLeaf drops leaves whose metric or comparator cannot be understood;
// a status gate with no comparison would otherwise silently pass or fail.
func (p *pass) statusLeaf(m doc) condition.Node {
	s := m
	if inner, ok := asMap(m["status"]); ok {
		s = inner
	}
	metric, ok := model.ParseStatusMetric(stringField(s, "metric", "field"))
	if !ok {
		return nil
	}
	cmp, ok := condition.ParseComparator(stringField(s, "comparator", "operator", "op"))
	if !ok || cmp == condition.None {
		return nil
	}
	value, _ := floatField(s, "value", "target", "targetValue")
	unit, ok := condition.ParseUnit(stringField(s, "unit"))
	if !ok || !condition.UnitValid(metric, unit) {
		unit = condition.UnitsFor(metric)[0]
	}
	return &condition.StatusLeaf{ID: p.nodeID(m), Metric: metric, Comparator: cmp, Value: value, Unit: unit}
}

func (p *pass) actionLeaf(m doc) condition.Node {
	a := m
	if inner, ok := asMap(m["action"]); ok {
		a = inner
	}
	var kind condition.ActionKind
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(stringField(a, "kind", "action", "side"))) {
	case "buy", "long", "entry", "open":
		kind = condition.ActionBuy
	case "sell", "short", "exit", "close":
		kind = condition.ActionSell
	case "stoploss", "sl", "stop":
		kind = condition.ActionStopLoss
	default:
		return nil
	}
	ot := condition.OrderMarket
	if strings.EqualFold(stringField(a, "orderType", "order"), string(condition.OrderLimit)) {
		ot = condition.OrderLimit
	}
	return &condition.ActionLeaf{
		ID:     p.nodeID(m),
		Action: condition.Action{Kind: kind, OrderType: ot, Percent: percent(a, MaxPercent, "percent", "amountPercent", "size")},
	}
}
