package pipeline

import (
	"maps"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/strategy"
)

// cacheKey identifies the inputs of a signal map. revision changes whenever
// the forming bar is rewritten in place or the window is reloaded, so equal
// length and last timestamp alone never reuse stale signals.
type cacheKey struct {
	tree     uint64
	bars     int
	lastTS   int64
	revision uint64
}

type signalCache struct {
	key     cacheKey
	signals strategy.SignalMap
	valid   bool
}

func (c *signalCache) get(k cacheKey) (strategy.SignalMap, bool) {
	if !c.valid || c.key != k {
		return nil, false
	}
	return maps.Clone(c.signals), true
}

func (c *signalCache) put(k cacheKey, signals strategy.SignalMap) {
	if signals == nil {
		return
	}
	c.key, c.signals, c.valid = k, signals, true
}

func (c *signalCache) clear() { *c = signalCache{} }

// fingerprint hashes the wire form of tree.
func fingerprint(tree *condition.Group) uint64 {
	data, err := condition.MarshalNode(tree)
	if err != nil {
		log.Warn().Str("component", "pipeline").Err(err).Msg("tree fingerprint failed")
		return 0
	}
	return xxhash.Sum64(data)
}
