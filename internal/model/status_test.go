package model

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusSnapshot_Presence(t *testing.T) {
	s := StatusOf(map[StatusMetric]float64{MetricBuyCount: 0})

	v, ok := s.Value(MetricBuyCount)
	assert.True(t, ok, "a reported zero is present")
	assert.Zero(t, v)

	_, ok = s.Value(MetricProfitRate)
	assert.False(t, ok)
	_, ok = s.Value(StatusMetric("bogus"))
	assert.False(t, ok)
	assert.False(t, s.Set(StatusMetric("bogus"), 1))
}

func TestStatusSnapshot_JSONKeepsPresence(t *testing.T) {
	s := StatusOf(map[StatusMetric]float64{MetricProfitRate: 1.5})
	data, err := sonic.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"profitRate":1.5}`, string(data))

	var back StatusSnapshot
	require.NoError(t, sonic.Unmarshal(data, &back))
	_, ok := back.Value(MetricMargin)
	assert.False(t, ok)
	v, ok := back.Value(MetricProfitRate)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
}
