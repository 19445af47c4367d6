package strategy

import (
	"context"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/model"
)

// Signal is emitted when a rule's tree starts matching.
type Signal struct {
	Rule      string          `json:"rule"`
	Symbol    string          `json:"symbol"`
	Direction model.Direction `json:"direction"`
	Action    Action          `json:"action"`
	Price     float64         `json:"price"`
	TS        int64           `json:"ts"`
}

// Action is what a matching rule asks for.
type Action string

const (
	ActionEntry    Action = "ENTRY"
	ActionScaleIn  Action = "SCALE_IN"
	ActionExit     Action = "EXIT"
	ActionStopLoss Action = "STOP_LOSS"
	ActionHedge    Action = "HEDGE"
)

// Rule binds a condition tree to a symbol and the action it triggers.
type Rule struct {
	Name      string
	Symbol    string
	Direction model.Direction
	Action    Action
	Tree      *condition.Group
	// Lookback bounds the rolling window; zero derives it from Tree.
	Lookback int
}

type ruleState struct {
	Rule
	window  []model.Candle
	matched bool
}

// Engine routes closed candles to registered rules and emits a Signal on
// every false-to-true transition.
type Engine struct {
	rules    []*ruleState
	status   StatusFunc
	signalCh chan Signal
}

// StatusFunc returns the current position snapshot for a rule, or nil.
type StatusFunc func(symbol string, dir model.Direction) *model.StatusSnapshot

// NewEngine creates an engine with a buffered signal channel.
func NewEngine(signalBufferSize int, status StatusFunc) *Engine {
	return &Engine{
		status:   status,
		signalCh: make(chan Signal, signalBufferSize),
	}
}

// Register adds a rule.
func (e *Engine) Register(r Rule) {
	if r.Lookback <= 0 {
		r.Lookback = RequiredLookback(r.Tree, 2)
	}
	e.rules = append(e.rules, &ruleState{Rule: r})
}

// Signals returns the channel of emitted signals.
func (e *Engine) Signals() <-chan Signal {
	return e.signalCh
}

// OnCandle feeds one closed candle for symbol to every matching rule.
func (e *Engine) OnCandle(symbol string, c model.Candle) {
	for _, r := range e.rules {
		if r.Symbol != symbol {
			continue
		}
		r.window = append(r.window, c)
		if over := len(r.window) - r.Lookback; over > 0 {
			r.window = append(r.window[:0], r.window[over:]...)
		}
		var status *model.StatusSnapshot
		if e.status != nil {
			status = e.status(symbol, r.Direction)
		}
		match, _, _ := EvaluateSeries(r.Tree, symbol, r.Direction, r.window, status)
		if match && !r.matched {
			sig := Signal{Rule: r.Name, Symbol: symbol, Direction: r.Direction, Action: r.Action, Price: c.Close, TS: c.TS}
			select {
			case e.signalCh <- sig:
			default:
				// signal channel full, drop
			}
		}
		r.matched = match
	}
}

// Run consumes candle events for symbol until ctx is cancelled or the
// channel closes. Forming candles and error events are ignored.
func (e *Engine) Run(ctx context.Context, symbol string, candleCh <-chan model.CandleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-candleCh:
			if !ok {
				return
			}
			if ev.Err != nil || !ev.Closed {
				continue
			}
			e.OnCandle(symbol, ev.Candle)
		}
	}
}
