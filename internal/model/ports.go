package model

import "context"

// ── External Collaborator Ports ──
// These interfaces decouple the condition engine from the concrete feed,
// status and settings stores (Redis, SQLite, WebSocket).

// CandleBackfiller primes a rolling window before live ticks arrive.
type CandleBackfiller interface {
	// Backfill returns up to limit most recent candles, oldest first.
	Backfill(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// CandleStreamer delivers live candle events for one symbol/interval.
type CandleStreamer interface {
	// Stream returns a channel of events that is closed when ctx is
	// cancelled or the stream ends.
	Stream(ctx context.Context, symbol, interval string) (<-chan CandleEvent, error)
}

// CandleFeed is a backfill source plus a live stream.
type CandleFeed interface {
	CandleBackfiller
	CandleStreamer
}

// StatusProvider supplies position status snapshots. A nil snapshot with a
// nil error means no position data is available.
type StatusProvider interface {
	Snapshot(ctx context.Context, symbol string, dir Direction) (*StatusSnapshot, error)
}

// SettingsSource reads persisted strategy settings documents. The engine
// never writes them.
type SettingsSource interface {
	// ReadSettingsJSON returns the raw document. Returns nil, nil if absent.
	ReadSettingsJSON(ctx context.Context, strategyID string) ([]byte, error)
}

type combinedFeed struct {
	CandleBackfiller
	CandleStreamer
}

// CombineFeed pairs a history source with a live source, e.g. SQLite
// backfill with a WebSocket stream.
func CombineFeed(b CandleBackfiller, s CandleStreamer) CandleFeed {
	return combinedFeed{CandleBackfiller: b, CandleStreamer: s}
}
