// Package wsfeed streams live candles from a plain-JSON WebSocket server.
//
// Each message is one candle event in the feed wire form:
//
//	{"candle":{"ts":1700000000000,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10},"closed":false}
//
// The symbol and interval are passed as query parameters on the URL. A
// dropped connection surfaces as an error event and closes the channel; the
// caller decides when to reconnect.
package wsfeed

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trading-condengine/internal/logger"
	"trading-condengine/internal/model"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	streamBuffer            = 64
)

// Config holds configuration for the WebSocket feed.
type Config struct {
	// URL of the candle server, e.g. "ws://localhost:9001/candles".
	URL string

	// HandshakeTimeout bounds the dial. Defaults to 10s.
	HandshakeTimeout time.Duration
}

// Client implements model.CandleStreamer over WebSocket.
type Client struct {
	base   *url.URL
	dialer *websocket.Dialer
	log    zerolog.Logger
}

// New validates the URL and builds a client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "wsfeed: parse url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.Errorf("wsfeed: unsupported scheme %q", u.Scheme)
	}
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	return &Client{
		base:   u,
		dialer: &websocket.Dialer{HandshakeTimeout: timeout, Proxy: websocket.DefaultDialer.Proxy},
		log:    logger.Component("wsfeed"),
	}, nil
}

// StreamURL returns the URL dialed for symbol and interval.
func (c *Client) StreamURL(symbol, interval string) string {
	u := *c.base
	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	u.RawQuery = q.Encode()
	return u.String()
}

// Stream dials the server and pumps candle events until ctx is cancelled or
// the connection drops.
func (c *Client) Stream(ctx context.Context, symbol, interval string) (<-chan model.CandleEvent, error) {
	target := c.StreamURL(symbol, interval)
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "wsfeed: dial %s", target)
	}
	c.log.Info().Str("url", target).Msg("connected")

	out := make(chan model.CandleEvent, streamBuffer)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()
	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		c.read(ctx, conn, out)
	}()
	return out, nil
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn, out chan<- model.CandleEvent) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Msg("disconnected")
			select {
			case out <- model.CandleEvent{Err: errors.Wrap(err, "wsfeed: read")}:
			case <-ctx.Done():
			}
			return
		}

		ev, err := model.DecodeCandleEvent(raw)
		if err != nil {
			c.log.Warn().Err(err).Msg("skipping undecodable message")
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
