package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleEvent_WireForm(t *testing.T) {
	ev := CandleEvent{Candle: Candle{TS: 1700000000000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}, Closed: true}
	data, err := EncodeCandleEvent(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"candle":{"ts":1700000000000,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10},"closed":true}`, string(data))

	back, err := DecodeCandleEvent(data)
	require.NoError(t, err)
	assert.Equal(t, ev.Candle, back.Candle)
	assert.True(t, back.Closed)
}

func TestDecodeCandleEvent_Flat(t *testing.T) {
	ev, err := DecodeCandleEvent([]byte(`{"ts":5,"open":1,"high":1,"low":1,"close":1,"closed":false}`))
	require.NoError(t, err)
	assert.EqualValues(t, 5, ev.Candle.TS)
	assert.False(t, ev.Closed)

	_, err = DecodeCandleEvent([]byte(`{"close":1}`))
	assert.Error(t, err)
	_, err = DecodeCandleEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestParsers(t *testing.T) {
	f, ok := ParsePriceField(" H ")
	assert.True(t, ok)
	assert.Equal(t, FieldHigh, f)
	_, ok = ParsePriceField("vwap")
	assert.False(t, ok)

	d, ok := ParseDirection("SELL")
	assert.True(t, ok)
	assert.Equal(t, Short, d)

	m, ok := ParseStatusMetric("ENTRYAGE")
	assert.True(t, ok)
	assert.Equal(t, MetricEntryAge, m)

	c := Candle{Open: 1, High: 2, Low: 3, Close: 4}
	assert.Equal(t, 4.0, c.Price("bogus"))
	assert.Equal(t, 3.0, c.Price(FieldLow))
}
