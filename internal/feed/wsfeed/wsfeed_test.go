package wsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-condengine/internal/model"
)

// server sends msgs to each client and then closes the connection.
func server(t *testing.T, msgs []string, query chan<- string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if query != nil {
			query <- r.URL.RawQuery
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/candles"
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New(Config{URL: "http://localhost/candles"})
	assert.Error(t, err)
}

func TestStreamURL(t *testing.T) {
	c, err := New(Config{URL: "ws://localhost:9001/candles?token=x"})
	require.NoError(t, err)
	u := c.StreamURL("BTCUSDT", "1m")
	assert.Contains(t, u, "symbol=BTCUSDT")
	assert.Contains(t, u, "interval=1m")
	assert.Contains(t, u, "token=x")
}

func TestStream_EventsThenDisconnect(t *testing.T) {
	query := make(chan string, 1)
	srv := server(t, []string{
		`{"candle":{"ts":60000,"close":1.5},"closed":false}`,
		`not json`,
		`{"ts":60000,"close":1.7,"closed":true}`,
	}, query)

	c, err := New(Config{URL: wsURL(srv)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := c.Stream(ctx, "ETHUSDT", "5m")
	require.NoError(t, err)
	assert.Equal(t, "interval=5m&symbol=ETHUSDT", <-query)

	var got []model.CandleEvent
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	assert.Equal(t, 1.5, got[0].Candle.Close)
	assert.False(t, got[0].Closed)
	assert.Equal(t, 1.7, got[1].Candle.Close)
	assert.True(t, got[1].Closed)
	assert.Error(t, got[2].Err)
}

func TestStream_ContextCancelCloses(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := New(Config{URL: wsURL(srv)})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := c.Stream(ctx, "X", "1m")
	require.NoError(t, err)

	cancel()
	select {
	case ev, ok := <-events:
		assert.False(t, ok, "unexpected event %+v", ev)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after cancel")
	}
}

func TestStream_DialError(t *testing.T) {
	c, err := New(Config{URL: "ws://127.0.0.1:1/candles", HandshakeTimeout: time.Second})
	require.NoError(t, err)
	_, err = c.Stream(context.Background(), "X", "1m")
	assert.Error(t, err)
}
