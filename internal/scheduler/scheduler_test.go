package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_RejectsBadSpec(t *testing.T) {
	s := New()
	assert.Error(t, s.Add("resync", "every five minutes", func() {}))
	assert.Equal(t, 0, s.Len())
}

func TestJobRuns(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Add("resync", "@every 1s", func() { runs.Add(1) }))
	assert.Equal(t, 1, s.Len())

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

// A panicking job keeps running on later ticks.
func TestPanickingJobRecovered(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Add("boom", "@every 1s", func() {
		runs.Add(1)
		panic("boom")
	}))
	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 4*time.Second, 20*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}
