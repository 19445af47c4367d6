package model

import "strings"

// StatusMetric names one field of a position status snapshot.
type StatusMetric string

const (
	MetricProfitRate        StatusMetric = "profitRate"
	MetricUnrealizedPnl     StatusMetric = "unrealizedPnl"
	MetricMargin            StatusMetric = "margin"
	MetricInitialMarginRate StatusMetric = "initialMarginRate"
	MetricPositionSize      StatusMetric = "positionSize"
	MetricBuyCount          StatusMetric = "buyCount"
	MetricEntryAge          StatusMetric = "entryAge"
	MetricWalletBalance     StatusMetric = "walletBalance"
)

// StatusMetrics lists every metric in canonical order.
var StatusMetrics = []StatusMetric{
	MetricProfitRate, MetricUnrealizedPnl, MetricMargin, MetricInitialMarginRate,
	MetricPositionSize, MetricBuyCount, MetricEntryAge, MetricWalletBalance,
}

// ParseStatusMetric matches a metric name case-insensitively.
func ParseStatusMetric(s string) (StatusMetric, bool) {
	s = strings.TrimSpace(s)
	for _, m := range StatusMetrics {
		if strings.EqualFold(s, string(m)) {
			return m, true
		}
	}
	return "", false
}

// StatusSnapshot is a point-in-time read of the open position and wallet.
// ProfitRate and InitialMarginRate are percentages, EntryAgeSeconds is the
// time since the first fill. A nil field was not reported by the provider.
type StatusSnapshot struct {
	ProfitRate        *float64 `json:"profitRate,omitempty"`
	UnrealizedPnl     *float64 `json:"unrealizedPnl,omitempty"`
	Margin            *float64 `json:"margin,omitempty"`
	InitialMarginRate *float64 `json:"initialMarginRate,omitempty"`
	PositionSize      *float64 `json:"positionSize,omitempty"`
	BuyCount          *float64 `json:"buyCount,omitempty"`
	EntryAgeSeconds   *float64 `json:"entryAge,omitempty"`
	WalletBalance     *float64 `json:"walletBalance,omitempty"`
}

// StatusOf builds a snapshot holding only the given metrics. Unknown
// metrics are ignored.
func StatusOf(values map[StatusMetric]float64) *StatusSnapshot {
	s := &StatusSnapshot{}
	for m, v := range values {
		s.Set(m, v)
	}
	return s
}

func (s *StatusSnapshot) field(m StatusMetric) **float64 {
	switch m {
	case MetricProfitRate:
		return &s.ProfitRate
	case MetricUnrealizedPnl:
		return &s.UnrealizedPnl
	case MetricMargin:
		return &s.Margin
	case MetricInitialMarginRate:
		return &s.InitialMarginRate
	case MetricPositionSize:
		return &s.PositionSize
	case MetricBuyCount:
		return &s.BuyCount
	case MetricEntryAge:
		return &s.EntryAgeSeconds
	case MetricWalletBalance:
		return &s.WalletBalance
	}
	return nil
}

// Value returns the snapshot field for m. ok is false for unknown metrics
// and for metrics the provider did not report.
func (s StatusSnapshot) Value(m StatusMetric) (float64, bool) {
	f := s.field(m)
	if f == nil || *f == nil {
		return 0, false
	}
	return **f, true
}

// Set records v for m.
func (s *StatusSnapshot) Set(m StatusMetric, v float64) bool {
	f := s.field(m)
	if f == nil {
		return false
	}
	*f = &v
	return true
}
