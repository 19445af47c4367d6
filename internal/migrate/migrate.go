package migrate

import (
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"trading-condengine/internal/condition"
)

// MigrateJSON decodes data and migrates it. Undecodable input yields Default().
func MigrateJSON(data []byte) Settings {
	var v any
	if err := sonic.Unmarshal(data, &v); err != nil {
		log.Warn().Str("component", "migrate").Err(err).Msg("settings document is not valid JSON; using defaults")
		return Default()
	}
	return Migrate(v)
}

// Migrate normalizes a settings document. doc may be a decoded JSON value
// (map[string]any), raw JSON ([]byte or string) or an already canonical
// Settings. Migrate(Migrate(x)) == Migrate(x).
func Migrate(v any) (out Settings) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "migrate").Interface("panic", r).Msg("settings migration failed; using defaults")
			out = Default()
		}
	}()

	root, ok := normalizeInput(v)
	if !ok {
		return Default()
	}
	if inner, ok := asMap(pick1(root, "settings", "strategy", "strategySettings")); ok && !hasDirections(root) {
		root = inner
	}

	out = Settings{Version: CurrentVersion}
	longDoc, longOK := pick(root, "long", "buy", "Long", "LONG")
	shortDoc, shortOK := pick(root, "short", "sell", "Short", "SHORT")
	if !longOK && !shortOK && looksLikeDirection(root) {
		// Single-direction legacy documents apply to the long side.
		longDoc, longOK = root, true
	}
	out.Long = direction(longDoc, longOK)
	out.Short = direction(shortDoc, shortOK)
	return out
}

func normalizeInput(v any) (doc, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return t, true
	case []byte, string, Settings, *Settings:
		var data []byte
		switch raw := t.(type) {
		case []byte:
			data = raw
		case string:
			data = []byte(raw)
		default:
			b, err := sonic.Marshal(raw)
			if err != nil {
				return nil, false
			}
			data = b
		}
		var decoded any
		if err := sonic.Unmarshal(data, &decoded); err != nil {
			return nil, false
		}
		m, ok := decoded.(map[string]any)
		return m, ok
	}
	return nil, false
}

func hasDirections(m doc) bool {
	return has(m, "long", "buy", "Long", "LONG", "short", "sell", "Short", "SHORT")
}

var entryKeys = []string{"entry", "entryConditions", "open", "enter"}

var legacyEntryKeys = []string{"conditions", "conditionTree", "root", "tree", "indicators", "candleConditions"}

func looksLikeDirection(m doc) bool {
	return has(m, entryKeys...) || has(m, legacyEntryKeys...)
}

func direction(v any, present bool) DirectionSettings {
	if !present {
		return DefaultDirection()
	}
	if list, ok := v.([]any); ok {
		d := DefaultDirection()
		d.Entry, _, _ = block(list)
		d.Enabled = d.Entry.Enabled
		return d
	}
	m, ok := asMap(v)
	if !ok {
		return DefaultDirection()
	}

	d := DirectionSettings{}
	if entry, ok := pick(m, entryKeys...); ok {
		d.Entry, _, _ = block(entry)
	} else if has(m, legacyEntryKeys...) {
		d.Entry, _, _ = block(legacyEntry(m))
	} else {
		d.Entry = defaultBlock()
	}

	b, bm, num := block(pick1(m, "scaleIn", "scale_in", "additionalEntry", "dca"))
	d.ScaleIn = ScaleInBlock{Block: b, Percent: extraPercent(bm, num, DefaultScaleInPercent, "percent", "amountPercent", "size")}
	d.ScaleIn.MaxCount = DefaultScaleInMaxCount
	if n, ok := intField(bm, "maxCount", "count", "max"); ok && n >= 0 && n <= MaxScaleInCount {
		d.ScaleIn.MaxCount = n
	}

	b, bm, num = block(pick1(m, "exit", "takeProfit", "take_profit", "close"))
	d.Exit = ExitBlock{Block: b, TakeProfitPercent: extraPercent(bm, num, DefaultTakeProfitPercent, "takeProfitPercent", "takeProfit", "tp", "percent")}

	b, bm, num = block(pick1(m, "stopLoss", "stop_loss", "sl"))
	d.StopLoss = StopLoss{Block: b, Percent: extraPercent(bm, num, DefaultStopLossPercent, "percent", "stopLossPercent", "sl")}

	b, bm, num = block(pick1(m, "hedgeActivation", "hedge", "hedging"))
	d.HedgeActivation = HedgeBlock{Block: b, Percent: extraPercent(bm, num, DefaultHedgePercent, "percent", "triggerPercent", "lossPercent")}

	if on, ok := boolField(m, "enabled", "active", "on"); ok {
		d.Enabled = on
	} else {
		d.Enabled = d.Entry.Enabled
	}
	return d
}

// legacyEntry lifts direction-level condition keys into an entry block.
func legacyEntry(m doc) doc {
	out := doc{}
	for _, k := range legacyEntryKeys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	if v, ok := m["entryEnabled"]; ok {
		out["enabled"] = v
	}
	return out
}

func extraPercent(m doc, num *float64, def float64, keys ...string) float64 {
	if num != nil {
		return clampPercent(*num)
	}
	if m == nil {
		return def
	}
	return percent(m, def, keys...)
}

// block migrates one condition block. It returns the block, its object
// form (for block-specific fields) and, for blocks persisted as a bare
// number, that number.
func block(v any) (Block, doc, *float64) {
	p := newPass()
	switch t := v.(type) {
	case nil:
		return defaultBlock(), nil, nil
	case []any:
		g := p.rootGroup(p.node(t))
		p.repair(g)
		return Block{Enabled: len(g.Children) > 0, Conditions: g}, nil, nil
	case map[string]any:
		if isNode(t) {
			g := p.rootGroup(p.node(t))
			p.repair(g)
			return Block{Enabled: len(g.Children) > 0, Conditions: g}, nil, nil
		}
		var tree condition.Node
		if c, ok := pick(t, "conditions", "conditionTree", "root", "tree", "condition"); ok {
			tree = p.node(c)
		}
		g := p.rootGroup(tree)
		p.mergeLegacyLists(g, t)
		p.repair(g)
		b := Block{Conditions: g}
		if on, ok := boolField(t, "enabled", "active", "on"); ok {
			b.Enabled = on
		} else {
			b.Enabled = len(g.Children) > 0
		}
		return b, t, nil
	}
	if f, ok := toFloat(v); ok {
		b := defaultBlock()
		b.Enabled = true
		return b, nil, &f
	}
	if on, ok := v.(bool); ok {
		b := defaultBlock()
		b.Enabled = on
		return b, nil, nil
	}
	return defaultBlock(), nil, nil
}

func isNode(m doc) bool {
	if has(m, "operator", "children", "logic", "indicator", "metric", "candle", "action") {
		return true
	}
	_, ok := m["type"]
	return ok
}

// rootGroup canonicalizes a parsed tree, keeping ids unique within the pass.
func (p *pass) rootGroup(n condition.Node) *condition.Group {
	switch v := n.(type) {
	case *condition.Group:
		return v
	case nil:
		return &condition.Group{ID: p.claim(""), Operator: condition.And, Children: []condition.Node{}}
	default:
		return &condition.Group{ID: p.claim(""), Operator: condition.And, Children: []condition.Node{v}}
	}
}

// mergeLegacyLists folds flat indicator/candle/status lists into the tree,
// AND-ed with whatever the tree already holds.
func (p *pass) mergeLegacyLists(g *condition.Group, m doc) {
	var flat []condition.Node
	collect := func(keys []string, parse func(doc) condition.Node) {
		list, ok := pick1(m, keys...).([]any)
		if !ok {
			return
		}
		for _, item := range list {
			if im, ok := asMap(item); ok {
				if n := parse(im); n != nil {
					flat = append(flat, n)
				}
			}
		}
	}
	collect([]string{"indicators", "indicatorConditions"}, p.indicatorLeaf)
	collect([]string{"candleConditions", "candles", "priceConditions"}, p.candleLeaf)
	collect([]string{"statusConditions", "positionConditions"}, p.statusLeaf)
	if len(flat) == 0 {
		return
	}
	if g.Operator != condition.And && len(g.Children) > 0 {
		inner := *g
		g.ID = p.claim("")
		g.Children = []condition.Node{&inner}
	}
	g.Operator = condition.And
	g.Children = append(g.Children, flat...)
}
