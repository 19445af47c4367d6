// Package replay emits stored candles as a paced live feed for backtests
// and local runs.
package replay

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trading-condengine/internal/logger"
	"trading-condengine/internal/model"
)

// MaxGap caps the sleep between two candles at any speed.
const MaxGap = 5 * time.Second

// Source returns candles with from <= ts <= to, oldest first. A zero to
// means no upper bound.
type Source interface {
	Candles(ctx context.Context, symbol, interval string, from, to int64) ([]model.Candle, error)
}

// Replayer reads historical candles and replays them at a speed multiplier.
type Replayer struct {
	src Source
	log zerolog.Logger
}

// New creates a Replayer backed by src.
func New(src Source) *Replayer {
	return &Replayer{src: src, log: logger.Component("replay")}
}

// Run emits every candle in [from, to] as a closed event on out and returns
// the number emitted. speed controls the playback rate: 1 = real time,
// 10 = 10x, 0 = as fast as possible. out is not closed.
func (r *Replayer) Run(ctx context.Context, symbol, interval string, from, to int64, speed float64, out chan<- model.CandleEvent) (int, error) {
	candles, err := r.src.Candles(ctx, symbol, interval, from, to)
	if err != nil {
		return 0, errors.Wrapf(err, "replay %s %s", symbol, interval)
	}
	if len(candles) == 0 {
		r.log.Info().Str("symbol", symbol).Str("interval", interval).Msg("no candles to replay")
		return 0, nil
	}
	r.log.Info().Str("symbol", symbol).Str("interval", interval).Int("candles", len(candles)).Float64("speed", speed).Msg("replay started")

	var prevTS int64
	emitted := 0
	for _, c := range candles {
		if speed > 0 && prevTS > 0 {
			if gap := scaledGap(c.TS-prevTS, speed); gap > 0 {
				select {
				case <-ctx.Done():
					return emitted, ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		prevTS = c.TS

		select {
		case out <- model.CandleEvent{Candle: c, Closed: true}:
			emitted++
		case <-ctx.Done():
			r.log.Info().Int("emitted", emitted).Msg("replay cancelled")
			return emitted, ctx.Err()
		}
	}

	r.log.Info().Int("emitted", emitted).Msg("replay completed")
	return emitted, nil
}

// scaledGap converts a millisecond timestamp gap to a wall-clock wait.
func scaledGap(gapMs int64, speed float64) time.Duration {
	if gapMs <= 0 || speed <= 0 {
		return 0
	}
	d := time.Duration(float64(time.Duration(gapMs)*time.Millisecond) / speed)
	if d > MaxGap {
		d = MaxGap
	}
	return d
}
