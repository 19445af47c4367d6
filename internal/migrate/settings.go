// Package migrate normalizes persisted strategy settings documents of any
// vintage into the canonical Settings shape. Migration never fails: input
// that cannot be understood is replaced by documented defaults.
package migrate

import (
	"trading-condengine/internal/condition"
	"trading-condengine/internal/model"
)

// CurrentVersion is stamped on every migrated document.
const CurrentVersion = 2

// Defaults for direction-scoped blocks. Percentages are clamped to
// [MinPercent, MaxPercent] and rounded to two decimals.
const (
	MinPercent = 0.01
	MaxPercent = 100

	DefaultScaleInPercent    = 10
	DefaultScaleInMaxCount   = 3
	MaxScaleInCount          = 100
	DefaultTakeProfitPercent = 2
	DefaultStopLossPercent   = 2
	DefaultHedgePercent      = 5
)

// Settings is the canonical strategy document.
type Settings struct {
	Version int               `json:"version"`
	Long    DirectionSettings `json:"long"`
	Short   DirectionSettings `json:"short"`
}

// Direction returns the block set for d.
func (s Settings) Direction(d model.Direction) DirectionSettings {
	if d == model.Short {
		return s.Short
	}
	return s.Long
}

// DirectionSettings groups the condition blocks of one position side.
type DirectionSettings struct {
	Enabled         bool         `json:"enabled"`
	Entry           Block        `json:"entry"`
	ScaleIn         ScaleInBlock `json:"scaleIn"`
	Exit            ExitBlock    `json:"exit"`
	StopLoss        StopLoss     `json:"stopLoss"`
	HedgeActivation HedgeBlock   `json:"hedgeActivation"`
}

// Block is a gated condition tree. Conditions is never nil after migration.
type Block struct {
	Enabled    bool             `json:"enabled"`
	Conditions *condition.Group `json:"conditions"`
}

// ScaleInBlock adds to an open position when its conditions match.
type ScaleInBlock struct {
	Block
	Percent  float64 `json:"percent"`
	MaxCount int     `json:"maxCount"`
}

// ExitBlock closes the position on condition match or at the take-profit level.
type ExitBlock struct {
	Block
	TakeProfitPercent float64 `json:"takeProfitPercent"`
}

// StopLoss closes the position at a loss threshold.
type StopLoss struct {
	Block
	Percent float64 `json:"percent"`
}

// HedgeBlock opens the opposite side once the loss reaches Percent.
type HedgeBlock struct {
	Block
	Percent float64 `json:"percent"`
}

func emptyGroup() *condition.Group {
	return &condition.Group{ID: condition.NewID(), Operator: condition.And, Children: []condition.Node{}}
}

func defaultBlock() Block { return Block{Conditions: emptyGroup()} }

// DefaultDirection is the fully-disabled block set used for absent directions.
func DefaultDirection() DirectionSettings {
	return DirectionSettings{
		Entry:           defaultBlock(),
		ScaleIn:         ScaleInBlock{Block: defaultBlock(), Percent: DefaultScaleInPercent, MaxCount: DefaultScaleInMaxCount},
		Exit:            ExitBlock{Block: defaultBlock(), TakeProfitPercent: DefaultTakeProfitPercent},
		StopLoss:        StopLoss{Block: defaultBlock(), Percent: DefaultStopLossPercent},
		HedgeActivation: HedgeBlock{Block: defaultBlock(), Percent: DefaultHedgePercent},
	}
}

// Default returns settings with both directions disabled.
func Default() Settings {
	return Settings{Version: CurrentVersion, Long: DefaultDirection(), Short: DefaultDirection()}
}
