package condition

import (
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trading-condengine/internal/indicator"
	"trading-condengine/internal/model"
)

// Wire form. Every node carries a "type" discriminator; indicator configs
// are flattened into one object whose populated keys depend on the type.

type wireNode struct {
	Type       NodeKind         `json:"type"`
	ID         string           `json:"id"`
	Operator   Operator         `json:"operator,omitempty"`
	Children   []*wireNode      `json:"children,omitempty"`
	Indicator  *wireIndicator   `json:"indicator,omitempty"`
	Comparison *wireComparison  `json:"comparison,omitempty"`
	Candle     *CandleCondition `json:"candle,omitempty"`
	Metric     string           `json:"metric,omitempty"`
	Comparator Comparator       `json:"comparator,omitempty"`
	Value      *float64         `json:"value,omitempty"`
	Unit       Unit             `json:"unit,omitempty"`
	Action     *Action          `json:"action,omitempty"`
}

type wireIndicator struct {
	ID     string        `json:"id"`
	Type   IndicatorType `json:"type"`
	Config wireConfig    `json:"config"`
}

type wireConfig struct {
	Period     int     `json:"period,omitempty"`
	Method     string  `json:"method,omitempty"`
	Source     string  `json:"source,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Band       string  `json:"band,omitempty"`
	Fast       int     `json:"fast,omitempty"`
	Slow       int     `json:"slow,omitempty"`
	Signal     int     `json:"signal,omitempty"`
	Line       string  `json:"line,omitempty"`
	DIPeriod   int     `json:"diPeriod,omitempty"`
	ADXPeriod  int     `json:"adxPeriod,omitempty"`
}

type wireComparison struct {
	Kind              ComparisonKind   `json:"kind"`
	Comparator        Comparator       `json:"comparator,omitempty"`
	Value             *float64         `json:"value,omitempty"`
	Field             model.PriceField `json:"field,omitempty"`
	Reference         Reference        `json:"reference,omitempty"`
	TargetIndicatorID string           `json:"targetIndicatorId,omitempty"`
}

// MarshalNode encodes a tree in wire form.
func MarshalNode(n Node) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(w)
}

// UnmarshalNode decodes a tree in wire form. It is strict: unknown types
// are errors. Tolerant decoding of legacy documents lives in the migrator.
func UnmarshalNode(data []byte) (Node, error) {
	var w wireNode
	if err := sonic.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "decode condition tree")
	}
	return fromWire(&w)
}

// MarshalJSON implements json.Marshaler.
func (g *Group) MarshalJSON() ([]byte, error) { return MarshalNode(g) }

// UnmarshalJSON implements json.Unmarshaler; a leaf document is wrapped in
// an AND group.
func (g *Group) UnmarshalJSON(data []byte) error {
	n, err := UnmarshalNode(data)
	if err != nil {
		return err
	}
	*g = *Canonicalize(n)
	return nil
}

func toWire(n Node) (*wireNode, error) {
	switch v := n.(type) {
	case *Group:
		w := &wireNode{Type: KindGroup, ID: v.ID, Operator: v.Operator, Children: []*wireNode{}}
		for _, ch := range v.Children {
			cw, err := toWire(ch)
			if err != nil {
				return nil, err
			}
			w.Children = append(w.Children, cw)
		}
		return w, nil
	case *IndicatorLeaf:
		if v.Indicator.Config == nil {
			return nil, errors.Errorf("indicator leaf %q has no config", v.ID)
		}
		c := v.Comparison
		wc := &wireComparison{Kind: c.Kind, Comparator: c.Comparator}
		switch c.Kind {
		case CompareValue:
			val := c.Value
			wc.Value = &val
		case CompareCandle:
			wc.Field, wc.Reference = c.Field, c.Reference
		case CompareIndicator:
			wc.TargetIndicatorID = c.TargetID
		}
		return &wireNode{
			Type: KindIndicator, ID: v.ID,
			Indicator: &wireIndicator{
				ID: v.Indicator.ID, Type: v.Indicator.Type(), Config: configToWire(v.Indicator.Config),
			},
			Comparison: wc,
		}, nil
	case *CandleLeaf:
		cc := v.Candle
		return &wireNode{Type: KindCandle, ID: v.ID, Candle: &cc}, nil
	case *StatusLeaf:
		val := v.Value
		return &wireNode{
			Type: KindStatus, ID: v.ID, Metric: string(v.Metric),
			Comparator: v.Comparator, Value: &val, Unit: v.Unit,
		}, nil
	case *ActionLeaf:
		a := v.Action
		return &wireNode{Type: KindAction, ID: v.ID, Action: &a}, nil
	}
	return nil, errors.Errorf("unsupported node %T", n)
}

func fromWire(w *wireNode) (Node, error) {
	if w == nil {
		return nil, errors.New("null condition node")
	}
	switch w.Type {
	case KindGroup:
		op := w.Operator
		if op != Or {
			op = And
		}
		g := &Group{ID: w.ID, Operator: op, Children: make([]Node, 0, len(w.Children))}
		for _, cw := range w.Children {
			ch, err := fromWire(cw)
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, ch)
		}
		return g, nil
	case KindIndicator:
		if w.Indicator == nil {
			return nil, errors.Errorf("indicator node %q has no indicator", w.ID)
		}
		cfg, err := configFromWire(w.Indicator.Type, w.Indicator.Config)
		if err != nil {
			return nil, err
		}
		l := &IndicatorLeaf{
			ID:         w.ID,
			Indicator:  IndicatorEntry{ID: w.Indicator.ID, Config: cfg},
			Comparison: NoComparison(),
		}
		if wc := w.Comparison; wc != nil {
			switch wc.Kind {
			case CompareValue:
				var v float64
				if wc.Value != nil {
					v = *wc.Value
				}
				l.Comparison = ValueComparison(wc.Comparator, v)
			case CompareCandle:
				l.Comparison = CandleComparison(wc.Comparator, wc.Field, wc.Reference)
			case CompareIndicator:
				l.Comparison = IndicatorComparison(wc.Comparator, wc.TargetIndicatorID)
			}
		}
		return l, nil
	case KindCandle:
		l := &CandleLeaf{ID: w.ID}
		if w.Candle != nil {
			l.Candle = *w.Candle
		}
		return l, nil
	case KindStatus:
		l := &StatusLeaf{ID: w.ID, Metric: model.StatusMetric(w.Metric), Comparator: w.Comparator, Unit: w.Unit}
		if w.Value != nil {
			l.Value = *w.Value
		}
		return l, nil
	case KindAction:
		l := &ActionLeaf{ID: w.ID}
		if w.Action != nil {
			l.Action = *w.Action
		}
		return l, nil
	}
	return nil, errors.Errorf("unknown node type %q", w.Type)
}

func configToWire(c IndicatorConfig) wireConfig {
	switch v := c.(type) {
	case MAConfig:
		return wireConfig{Period: v.Period, Method: string(v.Method), Source: string(v.Source)}
	case BollingerConfig:
		return wireConfig{Period: v.Period, Multiplier: v.Multiplier, Band: string(v.Band)}
	case RSIConfig:
		return wireConfig{Period: v.Period}
	case MACDConfig:
		return wireConfig{Fast: v.Fast, Slow: v.Slow, Signal: v.Signal, Line: string(v.Line)}
	case DMIConfig:
		return wireConfig{DIPeriod: v.DIPeriod, ADXPeriod: v.ADXPeriod, Line: string(v.Line)}
	}
	return wireConfig{}
}

func configFromWire(t IndicatorType, w wireConfig) (IndicatorConfig, error) {
	switch t {
	case TypeMA:
		return MAConfig{Period: w.Period, Method: indicator.MAMethod(w.Method), Source: model.PriceField(w.Source)}, nil
	case TypeBollinger:
		return BollingerConfig{Period: w.Period, Multiplier: w.Multiplier, Band: Band(w.Band)}, nil
	case TypeRSI:
		return RSIConfig{Period: w.Period}, nil
	case TypeMACD:
		return MACDConfig{Fast: w.Fast, Slow: w.Slow, Signal: w.Signal, Line: MACDLine(w.Line)}, nil
	case TypeDMI:
		return DMIConfig{DIPeriod: w.DIPeriod, ADXPeriod: w.ADXPeriod, Line: DMILine(w.Line)}, nil
	}
	return nil, errors.Errorf("unknown indicator type %q", t)
}
