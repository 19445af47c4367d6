package condition

import (
	"strings"

	"trading-condengine/internal/model"
)

// Unit qualifies a StatusLeaf threshold.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitUSDT    Unit = "usdt"
	UnitCount   Unit = "count"
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
)

// ParseUnit normalizes a unit name. Unknown names return false.
func ParseUnit(s string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percent", "%", "pct":
		return UnitPercent, true
	case "usdt", "usd", "amount":
		return UnitUSDT, true
	case "count", "times", "n":
		return UnitCount, true
	case "minutes", "minute", "min", "m":
		return UnitMinutes, true
	case "hours", "hour", "h":
		return UnitHours, true
	case "days", "day", "d":
		return UnitDays, true
	}
	return "", false
}

// UnitsFor lists the units valid for metric; the first is the default.
func UnitsFor(m model.StatusMetric) []Unit {
	switch m {
	case model.MetricProfitRate, model.MetricInitialMarginRate:
		return []Unit{UnitPercent}
	case model.MetricUnrealizedPnl, model.MetricMargin, model.MetricPositionSize, model.MetricWalletBalance:
		return []Unit{UnitUSDT}
	case model.MetricBuyCount:
		return []Unit{UnitCount}
	case model.MetricEntryAge:
		return []Unit{UnitMinutes, UnitHours, UnitDays}
	}
	return nil
}

// UnitValid reports whether u may qualify metric m.
func UnitValid(m model.StatusMetric, u Unit) bool {
	for _, v := range UnitsFor(m) {
		if v == u {
			return true
		}
	}
	return false
}

// Threshold returns the leaf value in the snapshot's base unit. Entry age
// thresholds are converted to seconds.
func (l *StatusLeaf) Threshold() float64 {
	switch l.Unit {
	case UnitMinutes:
		return l.Value * 60
	case UnitHours:
		return l.Value * 3600
	case UnitDays:
		return l.Value * 86400
	}
	return l.Value
}
