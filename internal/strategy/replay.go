package strategy

import (
	"trading-condengine/internal/condition"
	"trading-condengine/internal/model"
)

// Verdict is the evaluation result at one bar of a replay.
type Verdict struct {
	Index   int          `json:"index"`
	Candle  model.Candle `json:"candle"`
	Match   bool         `json:"match"`
	Signals SignalMap    `json:"signals"`
}

// Replay evaluates tree at every bar of candles, using the bars up to and
// including that one. When window > 0 each evaluation sees at most the last
// window bars, matching what a live pipeline holds.
func Replay(tree condition.Node, symbol string, dir model.Direction, candles []model.Candle, window int) []Verdict {
	out := make([]Verdict, 0, len(candles))
	for i := range candles {
		lo := 0
		if window > 0 && i+1 > window {
			lo = i + 1 - window
		}
		match, _, signals := EvaluateSeries(tree, symbol, dir, candles[lo:i+1], nil)
		out = append(out, Verdict{Index: i, Candle: candles[i], Match: match, Signals: signals})
	}
	return out
}
