package pipeline

import (
	"maps"
	"time"

	"trading-condengine/internal/model"
	"trading-condengine/internal/strategy"
)

// EvaluationMetrics summarises evaluation latency for one subscription.
type EvaluationMetrics struct {
	LastLatencyMs float64 `json:"lastLatencyMs"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	P95LatencyMs  float64 `json:"p95LatencyMs"`
	SampleCount   uint64  `json:"sampleCount"`
}

// EvaluationState is what a subscription exposes after every surfaced
// evaluation or feed failure. Error is empty when the last evaluation and
// the feed are healthy.
type EvaluationState struct {
	SubscriptionID  string                      `json:"subscriptionId"`
	Symbol          string                      `json:"symbol"`
	Interval        string                      `json:"interval"`
	Direction       model.Direction             `json:"direction"`
	Ready           bool                        `json:"ready"`
	Match           bool                        `json:"match"`
	LastEvaluatedAt time.Time                   `json:"lastEvaluatedAt"`
	Context         *strategy.EvaluationContext `json:"context,omitempty"`
	Signals         strategy.SignalMap          `json:"signals,omitempty"`
	Error           string                      `json:"error,omitempty"`
	Ticket          uint64                      `json:"ticket"`
	Bars            int                         `json:"bars"`
	Metrics         EvaluationMetrics           `json:"metrics"`
}

func (s EvaluationState) clone() EvaluationState {
	s.Signals = maps.Clone(s.Signals)
	if s.Context != nil {
		c := *s.Context
		s.Context = &c
	}
	return s
}
