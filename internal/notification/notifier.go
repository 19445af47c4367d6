// Package notification delivers match alerts to external channels.
package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trading-condengine/internal/logger"
	"trading-condengine/internal/metrics"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	TS      time.Time         `json:"ts"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Name labels the backend in metrics and logs.
	Name() string
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Component("notify")}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	ev := n.log.Info().Str("level", string(alert.Level)).Str("title", alert.Title)
	for k, v := range alert.Fields {
		ev = ev.Str(k, v)
	}
	ev.Msg(alert.Message)
	return nil
}

// Dispatcher sends every alert to all configured notifiers. One failing
// backend does not stop the others.
type Dispatcher struct {
	notifiers []Notifier
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewDispatcher builds a dispatcher. m may be nil.
func NewDispatcher(m *metrics.Metrics, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, metrics: m, log: logger.Component("notify")}
}

// Notify delivers alert and returns the number of backends that accepted it.
func (d *Dispatcher) Notify(ctx context.Context, alert Alert) int {
	if alert.TS.IsZero() {
		alert.TS = time.Now().UTC()
	}
	sent := 0
	for _, n := range d.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			d.log.Warn().Err(err).Str("notifier", n.Name()).Str("title", alert.Title).Msg("alert delivery failed")
			continue
		}
		d.metrics.IncAlert(n.Name())
		sent++
	}
	return sent
}
