package model

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Candle is one OHLCV bar. TS is the bar open time in unix milliseconds.
// The newest candle of a live stream may be revised in place (same TS)
// until a later TS arrives, after which it is final.
type Candle struct {
	TS     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// PriceField selects one price of a candle.
type PriceField string

const (
	FieldOpen  PriceField = "open"
	FieldHigh  PriceField = "high"
	FieldLow   PriceField = "low"
	FieldClose PriceField = "close"
)

// ParsePriceField normalizes a field name. Unknown names return false.
func ParsePriceField(s string) (PriceField, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "o":
		return FieldOpen, true
	case "high", "h":
		return FieldHigh, true
	case "low", "l":
		return FieldLow, true
	case "close", "c", "price":
		return FieldClose, true
	}
	return "", false
}

// Price returns the candle value for field f. Unknown fields read close.
func (c Candle) Price(f PriceField) float64 {
	switch f {
	case FieldOpen:
		return c.Open
	case FieldHigh:
		return c.High
	case FieldLow:
		return c.Low
	default:
		return c.Close
	}
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c Candle) JSON() []byte {
	b, _ := sonic.Marshal(c)
	return b
}

// CandleEvent is one push from a live feed. Closed marks the final revision
// of the bar; Err carries a transport failure instead of a candle.
type CandleEvent struct {
	Candle Candle `json:"candle"`
	Closed bool   `json:"closed"`
	Err    error  `json:"-"`
}

// Direction is the position side a condition tree is evaluated for.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// ParseDirection accepts long/short and the legacy buy/sell spellings.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, true
	case "short", "sell":
		return Short, true
	}
	return "", false
}

type candleMessage struct {
	Candle *Candle `json:"candle"`
	Closed bool    `json:"closed"`
}

// EncodeCandleEvent renders ev in the feed wire form
// {"candle":{...},"closed":bool}.
func EncodeCandleEvent(ev CandleEvent) ([]byte, error) {
	return sonic.Marshal(candleMessage{Candle: &ev.Candle, Closed: ev.Closed})
}

// DecodeCandleEvent parses a feed payload. Besides the wire form it accepts
// a bare candle object, optionally carrying "closed" at the top level.
func DecodeCandleEvent(data []byte) (CandleEvent, error) {
	var msg candleMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return CandleEvent{}, errors.Wrap(err, "decode candle event")
	}
	if msg.Candle == nil {
		var flat Candle
		if err := sonic.Unmarshal(data, &flat); err != nil {
			return CandleEvent{}, errors.Wrap(err, "decode candle")
		}
		msg.Candle = &flat
	}
	if msg.Candle.TS <= 0 {
		return CandleEvent{}, errors.Errorf("candle without timestamp: %s", data)
	}
	return CandleEvent{Candle: *msg.Candle, Closed: msg.Closed}, nil
}
