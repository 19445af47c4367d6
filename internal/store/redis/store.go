// Package redis connects the condition engine to Redis: live candles over
// pub/sub, backfill from candle streams, position status hashes and
// evaluation state publishing. Every command goes through a circuit breaker.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trading-condengine/internal/logger"
	"trading-condengine/internal/metrics"
	"trading-condengine/internal/model"
)

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 10 * time.Second
	streamBuffer        = 64
)

// Key layout.
func CandleChannel(interval, symbol string) string { return "candle:" + interval + ":" + symbol }
func CandleStream(interval, symbol string) string  { return "candles:" + interval + ":" + symbol }
func StatusKey(symbol string, dir model.Direction) string {
	return "status:" + symbol + ":" + string(dir)
}
func StateChannel(id string) string   { return "eval:" + id }
func LatestStateKey(id string) string { return "eval:latest:" + id }

// Cmdable is the subset of go-redis commands the store issues.
type Cmdable interface {
	HGetAll(ctx context.Context, key string) *goredis.StringStringMapCmd
	XRevRangeN(ctx context.Context, stream, start, stop string, count int64) *goredis.XMessageSliceCmd
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *goredis.PubSub
}

// Config configures the Redis store.
type Config struct {
	Addr     string
	Password string
	DB       int
	// StateTTL bounds how long eval:latest:{id} survives; zero keeps it.
	StateTTL time.Duration
}

// Store implements model.CandleFeed and model.StatusProvider and publishes
// evaluation states.
type Store struct {
	client  *goredis.Client
	cmd     Cmdable
	sub     subscriber
	breaker *CircuitBreaker
	ttl     time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New connects to Redis and pings the server. m may be nil.
func New(ctx context.Context, cfg Config, m *metrics.Metrics) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	s := newStore(client, client, cfg.StateTTL, m)
	s.client = client
	s.log.Info().Str("addr", cfg.Addr).Msg("connected")
	return s, nil
}

func newStore(cmd Cmdable, sub subscriber, ttl time.Duration, m *metrics.Metrics) *Store {
	s := &Store{
		cmd:     cmd,
		sub:     sub,
		breaker: NewCircuitBreaker(defaultMaxFailures, defaultResetTimeout),
		ttl:     ttl,
		metrics: m,
		log:     logger.Component("redis"),
	}
	s.breaker.OnStateChange = func(from, to State) {
		s.metrics.SetBreakerState(int(to), to == StateOpen)
		s.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker transition")
	}
	return s
}

// Client returns the underlying client for health checks; nil in tests.
func (s *Store) Client() *goredis.Client { return s.client }

// Close closes the connection.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Backfill reads up to limit most recent candles from the candle stream,
// oldest first. Entries without a decodable "data" field are skipped.
func (s *Store) Backfill(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}
	stream := CandleStream(interval, symbol)
	var msgs []goredis.XMessage
	err := s.breaker.Execute(func() error {
		var err error
		msgs, err = s.cmd.XRevRangeN(ctx, stream, "+", "-", int64(limit)).Result()
		if err == goredis.Nil {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "xrevrange %s", stream)
	}

	out := make([]model.Candle, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		c, err := decodeStreamCandle(msgs[i])
		if err != nil {
			s.log.Warn().Err(err).Str("stream", stream).Str("id", msgs[i].ID).Msg("skipping bad candle entry")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeStreamCandle(msg goredis.XMessage) (model.Candle, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return model.Candle{}, errors.New("missing data field")
	}
	var c model.Candle
	if err := sonic.UnmarshalString(data, &c); err != nil {
		return model.Candle{}, errors.Wrap(err, "decode candle")
	}
	return c, nil
}

// Stream subscribes to the candle channel. Undecodable payloads surface as
// events carrying Err. The channel closes when ctx is done.
func (s *Store) Stream(ctx context.Context, symbol, interval string) (<-chan model.CandleEvent, error) {
	channel := CandleChannel(interval, symbol)
	ps := s.sub.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, errors.Wrapf(err, "subscribe %s", channel)
	}

	out := make(chan model.CandleEvent, streamBuffer)
	go func() {
		defer ps.Close()
		pump(ctx, ps.Channel(), out)
	}()
	return out, nil
}

func pump(ctx context.Context, in <-chan *goredis.Message, out chan<- model.CandleEvent) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			ev, err := model.DecodeCandleEvent([]byte(msg.Payload))
			if err != nil {
				ev = model.CandleEvent{Err: errors.Wrapf(err, "channel %s", msg.Channel)}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Snapshot reads the status hash for symbol and dir. A missing hash means
// no position and returns nil, nil. Unknown or unparsable fields are ignored.
func (s *Store) Snapshot(ctx context.Context, symbol string, dir model.Direction) (*model.StatusSnapshot, error) {
	key := StatusKey(symbol, dir)
	var fields map[string]string
	err := s.breaker.Execute(func() error {
		var err error
		fields, err = s.cmd.HGetAll(ctx, key).Result()
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "hgetall %s", key)
	}
	return parseStatus(fields), nil
}

func parseStatus(fields map[string]string) *model.StatusSnapshot {
	if len(fields) == 0 {
		return nil
	}
	snap := &model.StatusSnapshot{}
	for k, raw := range fields {
		m, ok := model.ParseStatusMetric(k)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		snap.Set(m, v)
	}
	return snap
}

// PublishState publishes state on eval:{id} and stores it under
// eval:latest:{id}.
func (s *Store) PublishState(ctx context.Context, id string, state any) error {
	data, err := sonic.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}
	payload := string(data)
	err = s.breaker.Execute(func() error {
		if err := s.cmd.Publish(ctx, StateChannel(id), payload).Err(); err != nil {
			return err
		}
		return s.cmd.Set(ctx, LatestStateKey(id), payload, s.ttl).Err()
	})
	s.metrics.ObservePublish(err)
	return errors.Wrapf(err, "publish state %s", id)
}
