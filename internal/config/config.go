// Package config loads service configuration from an optional config file
// and the environment.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds all configuration for the condition engine service.
type Config struct {
	ServiceName    string        `validate:"required"`
	LogLevel       string        `validate:"oneof=trace debug info warn error"`
	RedisAddr      string        `validate:"required"`
	RedisPassword  string
	SQLitePath     string        `validate:"required"`
	MetricsAddr    string        `validate:"required"`
	HTTPAddr       string        `validate:"required"`
	FeedSource     string        `validate:"oneof=redis ws"`
	FeedURL        string        `validate:"required_if=FeedSource ws"`
	BackfillSource string        `validate:"oneof=redis sqlite"`
	StrategyID     string        `validate:"required"`
	Symbols        []string      `validate:"min=1,dive,required"`
	Interval       string        `validate:"required"`
	Debounce       time.Duration `validate:"gte=0"`
	UseWorker      bool
	LookbackMargin int           `validate:"gte=0,lte=500"`
	ResyncCron     string        `validate:"required"`
	WebhookURL     string        `validate:"omitempty,url"`
	TelegramToken  string        `validate:"required_with=TelegramChat"`
	TelegramChat   string        `validate:"required_with=TelegramToken"`
	StateTTL       time.Duration `validate:"gte=0"`
}

var validate = validator.New()

func defaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "condengine")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("SQLITE_PATH", "data/condengine.db")
	v.SetDefault("METRICS_ADDR", ":9096")
	v.SetDefault("HTTP_ADDR", ":9097")
	v.SetDefault("FEED_SOURCE", "redis")
	v.SetDefault("FEED_URL", "")
	v.SetDefault("BACKFILL_SOURCE", "redis")
	v.SetDefault("STRATEGY_ID", "default")
	v.SetDefault("SYMBOLS", "BTCUSDT")
	v.SetDefault("INTERVAL", "1m")
	v.SetDefault("DEBOUNCE", "150ms")
	v.SetDefault("USE_WORKER", true)
	v.SetDefault("LOOKBACK_MARGIN", 2)
	v.SetDefault("RESYNC_CRON", "@every 5m")
	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", "")
	v.SetDefault("STATE_TTL", "10m")
}

// Load reads configFile when it is non-empty, then the environment, and
// validates the result.
func Load(configFile string) (Config, error) {
	v := viper.New()
	defaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", configFile)
		}
	}
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		ServiceName:    v.GetString("SERVICE_NAME"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		SQLitePath:     v.GetString("SQLITE_PATH"),
		MetricsAddr:    v.GetString("METRICS_ADDR"),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		FeedSource:     strings.ToLower(v.GetString("FEED_SOURCE")),
		FeedURL:        v.GetString("FEED_URL"),
		BackfillSource: strings.ToLower(v.GetString("BACKFILL_SOURCE")),
		StrategyID:     v.GetString("STRATEGY_ID"),
		Symbols:        splitList(v.GetString("SYMBOLS")),
		Interval:       v.GetString("INTERVAL"),
		Debounce:       v.GetDuration("DEBOUNCE"),
		UseWorker:      v.GetBool("USE_WORKER"),
		LookbackMargin: v.GetInt("LOOKBACK_MARGIN"),
		ResyncCron:     v.GetString("RESYNC_CRON"),
		WebhookURL:     v.GetString("WEBHOOK_URL"),
		TelegramToken:  v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChat:   v.GetString("TELEGRAM_CHAT_ID"),
		StateTTL:       v.GetDuration("STATE_TTL"),
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// splitList parses "BTCUSDT, ethusdt" into upper-cased symbols.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
