package replay

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-condengine/internal/model"
)

type memSource struct {
	candles []model.Candle
	err     error
}

func (m memSource) Candles(_ context.Context, _, _ string, from, to int64) ([]model.Candle, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Candle
	for _, c := range m.candles {
		if c.TS >= from && (to <= 0 || c.TS <= to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func minutes(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{TS: int64(i+1) * 60_000, Close: float64(100 + i)}
	}
	return out
}

func TestRun_MaxSpeed(t *testing.T) {
	r := New(memSource{candles: minutes(5)})
	out := make(chan model.CandleEvent, 10)

	n, err := r.Run(context.Background(), "X", "1m", 120_000, 240_000, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	close(out)

	var got []int64
	for ev := range out {
		assert.True(t, ev.Closed)
		got = append(got, ev.Candle.TS)
	}
	assert.Equal(t, []int64{120_000, 180_000, 240_000}, got)
}

func TestRun_Paced(t *testing.T) {
	r := New(memSource{candles: minutes(3)})
	out := make(chan model.CandleEvent, 10)

	start := time.Now()
	// 60s gaps at 1200x are 50ms each.
	n, err := r.Run(context.Background(), "X", "1m", 0, 0, 1200, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRun_Cancelled(t *testing.T) {
	r := New(memSource{candles: minutes(3)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := r.Run(ctx, "X", "1m", 0, 0, 0, make(chan model.CandleEvent))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, n)
}

func TestRun_SourceError(t *testing.T) {
	r := New(memSource{err: errors.New("locked")})
	_, err := r.Run(context.Background(), "X", "1m", 0, 0, 0, make(chan model.CandleEvent))
	assert.Error(t, err)
}

func TestScaledGap(t *testing.T) {
	assert.Equal(t, time.Duration(0), scaledGap(60_000, 0))
	assert.Equal(t, 6*time.Second/10, scaledGap(60_000, 100))
	assert.Equal(t, MaxGap, scaledGap(3_600_000, 1))
}
