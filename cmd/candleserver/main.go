// cmd/candleserver serves stored candles over WebSocket in the feed wire
// form, so the engine can run against history with FEED_SOURCE=ws.
//
// Each connection picks its series with query parameters:
//
//	ws://localhost:9001/candles?symbol=BTCUSDT&interval=1m
//
// Flags:
//
//	--addr   listen address        (default ":9001")
//	--db     SQLite database       (default "data/condengine.db")
//	--speed  playback multiplier   (default 60; 0 = as fast as possible)
//	--from   first bar, unix ms    (default 0 = all)
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trading-condengine/internal/feed/replay"
	"trading-condengine/internal/logger"
	"trading-condengine/internal/model"
	sqlitestore "trading-condengine/internal/store/sqlite"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type server struct {
	replayer *replay.Replayer
	speed    float64
	from     int64
	log      zerolog.Logger
}

func (s *server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	interval := r.URL.Query().Get("interval")
	if symbol == "" || interval == "" {
		http.Error(w, "symbol and interval are required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()
	l := s.log.With().Str("remote", r.RemoteAddr).Str("symbol", symbol).Str("interval", interval).Logger()
	l.Info().Msg("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := make(chan model.CandleEvent, 256)
	go func() {
		defer close(events)
		if _, err := s.replayer.Run(ctx, symbol, interval, s.from, 0, s.speed, events); err != nil && ctx.Err() == nil {
			l.Error().Err(err).Msg("replay failed")
		}
	}()

	// Write pump.
	for ev := range events {
		msg, err := model.EncodeCandleEvent(ev)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			cancel()
			break
		}
	}
	for range events {
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay finished"),
		time.Now().Add(time.Second))
	l.Info().Msg("client done")
}

func main() {
	addr := flag.String("addr", ":9001", "Listen address")
	dbPath := flag.String("db", "data/condengine.db", "Path to SQLite database")
	speed := flag.Float64("speed", 60, "Playback speed multiplier (0=max, 1=realtime)")
	from := flag.Int64("from", 0, "First bar timestamp in unix ms (0=all)")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger.Init("candleserver", *level)

	store, err := sqlitestore.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("sqlite open failed")
	}
	defer store.Close()

	s := &server{replayer: replay.New(store), speed: *speed, from: *from, log: logger.Component("candleserver")}
	mux := http.NewServeMux()
	mux.HandleFunc("/candles", s.handleCandles)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"candleserver"}`))
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Info().Str("addr", *addr).Msg("candle server listening (ws://<addr>/candles)")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}
