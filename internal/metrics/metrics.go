package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the condition engine. Every
// method is safe on a nil *Metrics so components can run unobserved.
type Metrics struct {
	EvaluationsTotal *prometheus.CounterVec // labels: result=match|nomatch|error
	EvaluationDur    prometheus.Histogram
	SignalCache      *prometheus.CounterVec // labels: result=hit|miss
	Superseded       prometheus.Counter
	WorkerFallbacks  prometheus.Counter
	StaleTicks       prometheus.Counter
	FeedErrors       *prometheus.CounterVec // labels: stage=backfill|stream
	FeedReconnects   prometheus.Counter
	Subscriptions    prometheus.Gauge

	PublishTotal *prometheus.CounterVec // labels: result=ok|error
	AlertsTotal  *prometheus.CounterVec // labels: notifier
	ResyncRuns   prometheus.Counter

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates the metrics and registers them on reg. A nil reg
// registers on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condengine_evaluations_total",
			Help: "Surfaced evaluations by result",
		}, []string{"result"}),
		EvaluationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "condengine_evaluation_duration_seconds",
			Help:    "Signal map construction plus tree evaluation latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		SignalCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condengine_signal_cache_total",
			Help: "Signal map cache lookups by result",
		}, []string{"result"}),
		Superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condengine_superseded_evaluations_total",
			Help: "Evaluation completions discarded because a newer ticket was issued",
		}),
		WorkerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condengine_worker_fallbacks_total",
			Help: "Subscriptions switched to synchronous evaluation after a worker failure",
		}),
		StaleTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condengine_stale_ticks_total",
			Help: "Ticks rejected because they are older than the last bar",
		}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condengine_feed_errors_total",
			Help: "Candle feed failures by stage",
		}, []string{"stage"}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condengine_feed_reconnects_total",
			Help: "Live feed reconnection attempts",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "condengine_subscriptions",
			Help: "Active pipeline subscriptions",
		}),
		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condengine_state_publish_total",
			Help: "Evaluation state publishes by result",
		}, []string{"result"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "condengine_alerts_total",
			Help: "Match alerts sent by notifier",
		}, []string{"notifier"}),
		ResyncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condengine_resync_runs_total",
			Help: "Scheduled backfill resyncs",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "condengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDur,
		m.SignalCache,
		m.Superseded,
		m.WorkerFallbacks,
		m.StaleTicks,
		m.FeedErrors,
		m.FeedReconnects,
		m.Subscriptions,
		m.PublishTotal,
		m.AlertsTotal,
		m.ResyncRuns,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)
	return m
}

// ObserveEvaluation records one surfaced evaluation.
func (m *Metrics) ObserveEvaluation(d time.Duration, match bool, failed bool) {
	if m == nil {
		return
	}
	result := "nomatch"
	switch {
	case failed:
		result = "error"
	case match:
		result = "match"
	}
	m.EvaluationsTotal.WithLabelValues(result).Inc()
	m.EvaluationDur.Observe(d.Seconds())
}

// CacheLookup records a signal map cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.SignalCache.WithLabelValues("hit").Inc()
		return
	}
	m.SignalCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) IncSuperseded() {
	if m != nil {
		m.Superseded.Inc()
	}
}

func (m *Metrics) IncWorkerFallback() {
	if m != nil {
		m.WorkerFallbacks.Inc()
	}
}

func (m *Metrics) IncStaleTick() {
	if m != nil {
		m.StaleTicks.Inc()
	}
}

func (m *Metrics) IncFeedError(stage string) {
	if m != nil {
		m.FeedErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) IncFeedReconnect() {
	if m != nil {
		m.FeedReconnects.Inc()
	}
}

func (m *Metrics) AddSubscriptions(delta float64) {
	if m != nil {
		m.Subscriptions.Add(delta)
	}
}

func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PublishTotal.WithLabelValues("error").Inc()
		return
	}
	m.PublishTotal.WithLabelValues("ok").Inc()
}

func (m *Metrics) IncAlert(notifier string) {
	if m != nil {
		m.AlertsTotal.WithLabelValues(notifier).Inc()
	}
}

func (m *Metrics) IncResync() {
	if m != nil {
		m.ResyncRuns.Inc()
	}
}

// SetBreakerState records a circuit breaker transition; tripped counts
// transitions into the open state.
func (m *Metrics) SetBreakerState(state int, tripped bool) {
	if m == nil {
		return
	}
	m.RedisCircuitBreakerState.Set(float64(state))
	if tripped {
		m.RedisCircuitBreakerTrips.Inc()
	}
}
