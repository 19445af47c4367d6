// Package condition models a strategy rule as a tree of AND/OR groups and
// typed leaves (indicator, candle, position status and action).
//
// Trees hold no parent pointers. Parents are found by re-traversal and every
// structural edit returns a new root, leaving the input untouched.
package condition

import (
	"strings"

	"github.com/google/uuid"

	"trading-condengine/internal/model"
)

// NodeKind discriminates the node variants.
type NodeKind string

const (
	KindGroup     NodeKind = "group"
	KindIndicator NodeKind = "indicator"
	KindCandle    NodeKind = "candle"
	KindStatus    NodeKind = "status"
	KindAction    NodeKind = "action"
)

// Node is one element of a condition tree: *Group, *IndicatorLeaf,
// *CandleLeaf, *StatusLeaf or *ActionLeaf.
type Node interface {
	NodeID() string
	Kind() NodeKind
	clone() Node
	setID(id string)
}

// Operator joins the children of a group.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

// ParseOperator normalizes an operator name. Unknown names return false.
func ParseOperator(s string) (Operator, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "and", "all", "&&", "&":
		return And, true
	case "or", "any", "||", "|":
		return Or, true
	}
	return "", false
}

// Group is an interior node. An empty AND group is vacuously true, an empty
// OR group is false.
type Group struct {
	ID       string
	Operator Operator
	Children []Node
}

// NewGroup returns a group with a fresh id.
func NewGroup(op Operator, children ...Node) *Group {
	return &Group{ID: NewID(), Operator: op, Children: children}
}

func (g *Group) NodeID() string  { return g.ID }
func (g *Group) Kind() NodeKind  { return KindGroup }
func (g *Group) setID(id string) { g.ID = id }

func (g *Group) clone() Node {
	c := &Group{ID: g.ID, Operator: g.Operator}
	if g.Children != nil {
		c.Children = make([]Node, len(g.Children))
		for i, ch := range g.Children {
			c.Children[i] = ch.clone()
		}
	}
	return c
}

// IndicatorLeaf compares an indicator output against a constant, a candle
// price or another indicator leaf.
type IndicatorLeaf struct {
	ID         string
	Indicator  IndicatorEntry
	Comparison Comparison
}

func (l *IndicatorLeaf) NodeID() string  { return l.ID }
func (l *IndicatorLeaf) Kind() NodeKind  { return KindIndicator }
func (l *IndicatorLeaf) setID(id string) { l.ID = id }
func (l *IndicatorLeaf) clone() Node     { c := *l; return &c }

// Reference selects which bar a candle price is read from.
type Reference string

const (
	RefCurrent  Reference = "current"
	RefPrevious Reference = "previous"
)

// ParseReference normalizes a reference name; anything unknown is current.
func ParseReference(s string) Reference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "previous", "prev", "last", "prior":
		return RefPrevious
	}
	return RefCurrent
}

// CandleCondition compares a raw candle price with a constant.
type CandleCondition struct {
	Field       model.PriceField `json:"field"`
	Comparator  Comparator       `json:"comparator"`
	TargetValue float64          `json:"targetValue"`
	Reference   Reference        `json:"reference"`
}

// CandleLeaf gates on a raw candle price.
type CandleLeaf struct {
	ID     string
	Candle CandleCondition
}

func (l *CandleLeaf) NodeID() string  { return l.ID }
func (l *CandleLeaf) Kind() NodeKind  { return KindCandle }
func (l *CandleLeaf) setID(id string) { l.ID = id }
func (l *CandleLeaf) clone() Node     { c := *l; return &c }

// StatusLeaf gates on a field of the position status snapshot.
type StatusLeaf struct {
	ID         string
	Metric     model.StatusMetric
	Comparator Comparator
	Value      float64
	Unit       Unit
}

func (l *StatusLeaf) NodeID() string  { return l.ID }
func (l *StatusLeaf) Kind() NodeKind  { return KindStatus }
func (l *StatusLeaf) setID(id string) { l.ID = id }
func (l *StatusLeaf) clone() Node     { c := *l; return &c }

// ActionKind is the execution intent carried by an ActionLeaf.
type ActionKind string

const (
	ActionBuy      ActionKind = "buy"
	ActionSell     ActionKind = "sell"
	ActionStopLoss ActionKind = "stopLoss"
)

// OrderType of an action.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// Action describes an order to place when the surrounding block matches.
// Percent is the share of available size, in [0.01, 100].
type Action struct {
	Kind      ActionKind `json:"kind"`
	OrderType OrderType  `json:"orderType"`
	Percent   float64    `json:"percent"`
}

// ActionLeaf carries execution intent. It is not a predicate and group
// evaluation skips it.
type ActionLeaf struct {
	ID     string
	Action Action
}

func (l *ActionLeaf) NodeID() string  { return l.ID }
func (l *ActionLeaf) Kind() NodeKind  { return KindAction }
func (l *ActionLeaf) setID(id string) { l.ID = id }
func (l *ActionLeaf) clone() Node     { c := *l; return &c }

// NewID returns a fresh node id.
func NewID() string { return uuid.NewString() }
