// cmd/evalreplay replays stored candles through a strategy's condition
// trees and reports the bars where each rule starts matching.
//
// Usage:
//
//	evalreplay --db=data/condengine.db --strategy=default --symbol=BTCUSDT --interval=1m
//	evalreplay --settings=strategy.json --seed --strategy=s1 ...   # store the document first
//	evalreplay ... --verbose                                       # per-bar verdicts
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"trading-condengine/internal/feed/replay"
	"trading-condengine/internal/logger"
	"trading-condengine/internal/migrate"
	"trading-condengine/internal/model"
	sqlitestore "trading-condengine/internal/store/sqlite"
	"trading-condengine/internal/strategy"
)

func main() {
	dbPath := flag.String("db", "data/condengine.db", "Path to SQLite database")
	strategyID := flag.String("strategy", "default", "Strategy id of the settings document")
	settingsFile := flag.String("settings", "", "Read the settings document from this JSON file instead of the database")
	seed := flag.Bool("seed", false, "Store --settings under --strategy before replaying")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to replay")
	interval := flag.String("interval", "1m", "Candle interval")
	fromTS := flag.Int64("from", 0, "First bar timestamp in unix ms (0=all)")
	toTS := flag.Int64("to", 0, "Last bar timestamp in unix ms (0=all)")
	verbose := flag.Bool("verbose", false, "Print every bar verdict per rule")
	level := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	logger.InitWriter(os.Stderr, "evalreplay", *level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := sqlitestore.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("sqlite open failed")
	}
	defer store.Close()

	doc, err := loadSettings(ctx, store, *settingsFile, *strategyID, *seed)
	if err != nil {
		log.Fatal().Err(err).Msg("load settings failed")
	}
	sym := strings.ToUpper(*symbol)
	rules := strategy.RulesFromSettings(migrate.MigrateJSON(doc), []string{sym})
	if len(rules) == 0 {
		fmt.Println("no enabled rules in settings")
		return
	}

	candles, err := store.Candles(ctx, sym, *interval, *fromTS, *toTS)
	if err != nil {
		log.Fatal().Err(err).Msg("read candles failed")
	}

	if *verbose {
		for _, r := range rules {
			printVerdicts(r, candles)
		}
	}

	engine := strategy.NewEngine(len(candles)*len(rules)+1, nil)
	for _, r := range rules {
		engine.Register(r)
	}

	events := make(chan model.CandleEvent, 1024)
	done := make(chan struct{})
	go func() {
		engine.Run(ctx, sym, events)
		close(done)
	}()
	n, err := replay.New(store).Run(ctx, sym, *interval, *fromTS, *toTS, 0, events)
	close(events)
	<-done
	if err != nil {
		log.Error().Err(err).Msg("replay stopped")
	}

	signals := 0
	for drained := false; !drained; {
		select {
		case sig := <-engine.Signals():
			signals++
			fmt.Printf("  %-28s ts=%d price=%.4f\n", sig.Rule, sig.TS, sig.Price)
		default:
			drained = true
		}
	}

	fmt.Println()
	fmt.Printf("candles replayed: %d\n", n)
	fmt.Printf("rules:            %d\n", len(rules))
	fmt.Printf("signals:          %d\n", signals)
}

func loadSettings(ctx context.Context, store *sqlitestore.Store, file, id string, seed bool) ([]byte, error) {
	if file == "" {
		return store.ReadSettingsJSON(ctx, id)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if seed {
		if err := store.PutSettingsJSON(ctx, id, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func printVerdicts(r strategy.Rule, candles []model.Candle) {
	fmt.Printf("%s (lookback %d)\n", r.Name, strategy.RequiredLookback(r.Tree, 0))
	for _, v := range strategy.Replay(r.Tree, r.Symbol, r.Direction, candles, 0) {
		mark := " "
		if v.Match {
			mark = "*"
		}
		fmt.Printf("  %s %4d ts=%d close=%.4f\n", mark, v.Index, v.Candle.TS, v.Candle.Close)
	}
}
