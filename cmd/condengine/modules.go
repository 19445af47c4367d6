package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"trading-condengine/internal/config"
	"trading-condengine/internal/enginesvc"
	"trading-condengine/internal/feed/wsfeed"
	"trading-condengine/internal/logger"
	"trading-condengine/internal/metrics"
	"trading-condengine/internal/model"
	"trading-condengine/internal/notification"
	redisstore "trading-condengine/internal/store/redis"
	sqlitestore "trading-condengine/internal/store/sqlite"
)

const livenessInterval = 10 * time.Second

func configModule() fx.Option {
	return fx.Module("config",
		fx.Provide(
			func() (config.Config, error) { return config.Load(os.Getenv("CONFIG_FILE")) },
			func(cfg config.Config) zerolog.Logger { return logger.Init(cfg.ServiceName, cfg.LogLevel) },
			newRegistry,
			metrics.NewHealthStatus,
		),
	)
}

func newRegistry() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewMetrics(reg)
}

func storageModule() fx.Option {
	return fx.Module("storage",
		fx.Provide(newRedis, newSQLite, newFeed),
	)
}

func newRedis(lc fx.Lifecycle, cfg config.Config, m *metrics.Metrics, _ zerolog.Logger) (*redisstore.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := redisstore.New(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		StateTTL: cfg.StateTTL,
	}, m)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(store.Close))
	return store, nil
}

func newSQLite(lc fx.Lifecycle, cfg config.Config, _ zerolog.Logger) (*sqlitestore.Store, error) {
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create sqlite dir")
		}
	}
	store, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(store.Close))
	return store, nil
}

// newFeed pairs the configured history and live sources.
func newFeed(cfg config.Config, rs *redisstore.Store, ss *sqlitestore.Store) (model.CandleFeed, error) {
	var backfill model.CandleBackfiller = rs
	if cfg.BackfillSource == "sqlite" {
		backfill = ss
	}

	var stream model.CandleStreamer = rs
	if cfg.FeedSource == "ws" {
		ws, err := wsfeed.New(wsfeed.Config{URL: cfg.FeedURL})
		if err != nil {
			return nil, err
		}
		stream = ws
	}
	return model.CombineFeed(backfill, stream), nil
}

func engineModule() fx.Option {
	return fx.Module("engine",
		fx.Provide(newDispatcher, newService),
		fx.Invoke(runService, runLiveness),
	)
}

func newDispatcher(cfg config.Config, m *metrics.Metrics, _ zerolog.Logger) *notification.Dispatcher {
	notifiers := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat))
	}
	return notification.NewDispatcher(m, notifiers...)
}

func newService(
	cfg config.Config,
	feed model.CandleFeed,
	rs *redisstore.Store,
	ss *sqlitestore.Store,
	alerts *notification.Dispatcher,
	m *metrics.Metrics,
	health *metrics.HealthStatus,
) (*enginesvc.Service, error) {
	return enginesvc.New(cfg, enginesvc.Deps{
		Feed:      feed,
		Status:    rs,
		Settings:  ss,
		Publisher: rs,
		Alerts:    alerts,
		Metrics:   m,
		Health:    health,
	})
}

func runService(lc fx.Lifecycle, svc *enginesvc.Service) {
	lc.Append(fx.Hook{
		OnStart: svc.Start,
		OnStop:  svc.Stop,
	})
}

func runLiveness(lc fx.Lifecycle, health *metrics.HealthStatus, rs *redisstore.Store, ss *sqlitestore.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			health.SetRedisConnected(true)
			health.SetSQLiteOK(true)
			health.StartLivenessChecker(ctx, rs.Client(), ss.DB(), livenessInterval)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func httpModule() fx.Option {
	return fx.Module("http",
		fx.Invoke(runMetricsServer, runAPIServer),
	)
}

func runMetricsServer(lc fx.Lifecycle, cfg config.Config, health *metrics.HealthStatus, reg *prometheus.Registry) {
	srv := metrics.NewServer(cfg.MetricsAddr, health, reg)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			srv.Start()
			return nil
		},
		OnStop: srv.Stop,
	})
}

func runAPIServer(lc fx.Lifecycle, cfg config.Config, svc *enginesvc.Service, log zerolog.Logger) {
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.HTTPAddr)
			if err != nil {
				return errors.Wrapf(err, "listen %s", cfg.HTTPAddr)
			}
			log.Info().Str("addr", cfg.HTTPAddr).Msg("api listening (/reload, /rules)")
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("api server error")
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
