package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/logger"
	"trading-condengine/internal/model"
	"trading-condengine/internal/ringbuf"
	"trading-condengine/internal/strategy"
)

// Subscription evaluates one tree against one symbol/interval stream.
// All window, cache and ticket state belongs to the run goroutine; other
// goroutines talk to it through commands and read State.
type Subscription struct {
	id  string
	req Request
	p   *Pipeline
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	updates  chan EvaluationState
	commands chan func()
	results  chan result
	done     chan struct{}

	mu    sync.RWMutex
	state EvaluationState

	syncOnly atomic.Bool

	// owned by run
	tree         *condition.Group
	treeKey      uint64
	minBars      int
	needsStatus  bool
	window       *ringbuf.Window
	revision     uint64
	cache        signalCache
	ticket       uint64
	surfaced     uint64
	latest       Job
	worker       *worker
	inflight     context.CancelFunc
	debounce     *time.Timer
	reconnect    *time.Timer
	backoff      time.Duration
	events       <-chan model.CandleEvent
	needBackfill bool
	feedErr      string
	evalErr      string
	latency      *LatencyTracker
}

var subSeq atomic.Uint64

func newSubscription(ctx context.Context, p *Pipeline, req Request) *Subscription {
	id := fmt.Sprintf("%s-%d", logger.GenerateTraceID(req.Symbol, time.Now()), subSeq.Add(1))
	ctx, cancel := context.WithCancel(logger.WithTraceID(ctx, id))
	s := &Subscription{
		id:       id,
		req:      req,
		p:        p,
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan EvaluationState, p.opts.UpdatesBuffer),
		commands: make(chan func()),
		results:  make(chan result),
		done:     make(chan struct{}),
		window:   ringbuf.New(1),
		backoff:  p.opts.ReconnectMin,
		latency:  NewLatencyTracker(256),
	}
	s.log = logger.Ctx(ctx, p.log.With().
		Str("symbol", req.Symbol).Str("interval", req.Interval).Str("direction", string(req.Direction)).Logger())
	s.state = EvaluationState{
		SubscriptionID: id,
		Symbol:         req.Symbol,
		Interval:       req.Interval,
		Direction:      req.Direction,
	}
	s.setTree(req.Tree)
	return s
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.id }

// Request returns what was subscribed; Tree reflects the latest UpdateTree.
func (s *Subscription) Request() Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.req
}

// Updates delivers a state after every surfaced evaluation or feed failure.
// When the reader falls behind the oldest undelivered state is dropped. The
// channel is closed when the subscription ends.
func (s *Subscription) Updates() <-chan EvaluationState { return s.updates }

// State returns the latest state.
func (s *Subscription) State() EvaluationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Done is closed once the subscription has released its resources.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Degraded reports whether evaluation fell back to the calling goroutine
// after a worker failure.
func (s *Subscription) Degraded() bool { return s.syncOnly.Load() }

// UpdateTree swaps the evaluated tree, growing the window and reloading
// history when the new tree needs more bars.
func (s *Subscription) UpdateTree(tree *condition.Group) {
	s.do(func() {
		if s.setTree(tree) {
			s.backfill()
		}
		s.request()
	})
}

// Resync reloads the window from the backfill source and re-evaluates.
func (s *Subscription) Resync() {
	s.do(func() {
		s.backfill()
		s.request()
	})
}

// Refresh re-evaluates without new candles, e.g. after a status change.
// An unchanged window reuses the cached signal map.
func (s *Subscription) Refresh() {
	s.do(s.request)
}

// Close ends the subscription and waits for it to release its timers,
// worker and buffers.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription) do(cmd func()) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}

// setTree installs tree and resizes the window. It reports whether the
// window grew.
func (s *Subscription) setTree(tree *condition.Group) bool {
	t := condition.CloneGroup(condition.Canonicalize(tree))
	s.tree = t
	s.treeKey = fingerprint(t)
	s.minBars = strategy.RequiredLookback(t, 0)
	s.needsStatus = false
	condition.Walk(t, func(n condition.Node, _ int) bool {
		if n.Kind() == condition.KindStatus {
			s.needsStatus = true
			return false
		}
		return true
	})

	s.mu.Lock()
	s.req.Tree = t
	s.mu.Unlock()

	need := strategy.RequiredLookback(t, s.p.opts.LookbackMargin)
	grew := need > s.window.Cap()
	s.window.Resize(need)
	return grew
}

func (s *Subscription) run() {
	defer s.shutdown()

	if s.p.opts.UseWorker {
		s.worker = newWorker(s.exec, s.results, s.done)
	} else {
		s.syncOnly.Store(true)
	}

	s.backfill()
	if s.window.Len() > 0 {
		s.request()
	}
	s.connect()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.events:
			if !ok {
				s.events = nil
				s.log.Warn().Dur("backoff", s.backoff).Msg("feed closed, reconnecting")
				s.scheduleReconnect()
				continue
			}
			s.onEvent(ev)
		case <-timerC(s.debounce):
			s.debounce = nil
			s.request()
		case <-timerC(s.reconnect):
			s.reconnect = nil
			s.p.metrics.IncFeedReconnect()
			// refill bars missed while disconnected on the next tick
			s.needBackfill = true
			s.connect()
		case res := <-s.results:
			s.onResult(res)
		case cmd := <-s.commands:
			cmd()
		}
	}
}

func (s *Subscription) shutdown() {
	stopTimer(s.debounce)
	stopTimer(s.reconnect)
	if s.inflight != nil {
		s.inflight()
	}
	if s.worker != nil {
		s.worker.stop()
	}
	s.p.remove(s.id)
	s.cache.clear()
	s.window.Reset()
	close(s.updates)
	close(s.done)
	s.log.Debug().Msg("subscription closed")
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (s *Subscription) connect() {
	ch, err := s.p.feed.Stream(s.ctx, s.req.Symbol, s.req.Interval)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.feedFailed("stream", err)
		s.scheduleReconnect()
		return
	}
	s.events = ch
}

func (s *Subscription) scheduleReconnect() {
	if s.ctx.Err() != nil || s.reconnect != nil {
		return
	}
	s.reconnect = time.NewTimer(s.backoff)
	s.backoff *= 2
	if s.backoff > s.p.opts.ReconnectMax {
		s.backoff = s.p.opts.ReconnectMax
	}
}

// backfill replaces the window with the latest history. On failure the
// window keeps its data and the next tick retries.
func (s *Subscription) backfill() {
	ctx, cancel := context.WithTimeout(s.ctx, backfillTimeout)
	defer cancel()

	candles, err := s.p.feed.Backfill(ctx, s.req.Symbol, s.req.Interval, s.window.Cap())
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.needBackfill = true
		s.feedFailed("backfill", err)
		return
	}
	s.needBackfill = false
	s.feedErr = ""
	s.window.Reset()
	for _, c := range candles {
		s.ingest(c)
	}
	s.revision++
	s.log.Debug().Int("bars", s.window.Len()).Msg("backfilled")
}

func (s *Subscription) feedFailed(stage string, err error) {
	s.p.metrics.IncFeedError(stage)
	s.feedErr = errors.Wrap(err, stage).Error()
	s.log.Warn().Err(err).Str("stage", stage).Msg("feed error")

	s.mu.Lock()
	s.state.Error = s.errorText()
	s.mu.Unlock()
	s.publish()
}

func (s *Subscription) errorText() string {
	if s.feedErr != "" {
		return s.feedErr
	}
	return s.evalErr
}

// ingest applies c to the window: a newer bar is appended, the same bar
// replaces the forming slot, an older one is rejected.
func (s *Subscription) ingest(c model.Candle) bool {
	last, ok := s.window.Last()
	switch {
	case !ok || c.TS > last.TS:
		s.window.Push(c)
	case c.TS == last.TS:
		s.window.ReplaceLast(c)
		s.revision++
	default:
		s.p.metrics.IncStaleTick()
		s.log.Debug().Int64("ts", c.TS).Int64("last_ts", last.TS).Msg("stale tick rejected")
		return false
	}
	return true
}

func (s *Subscription) onEvent(ev model.CandleEvent) {
	if ev.Err != nil {
		s.feedFailed("stream", ev.Err)
		return
	}
	s.backoff = s.p.opts.ReconnectMin
	if s.needBackfill {
		s.backfill()
	}
	if !s.ingest(ev.Candle) {
		return
	}
	if !s.needBackfill {
		s.feedErr = ""
	}
	s.schedule()
}

// schedule arms the trailing-edge debounce. Ticks arriving while it is armed
// are folded into the pending evaluation.
func (s *Subscription) schedule() {
	if s.p.opts.Debounce <= 0 {
		s.request()
		return
	}
	if s.debounce != nil {
		return
	}
	s.debounce = time.NewTimer(s.p.opts.Debounce)
}

// request issues a new ticket and evaluates the current window, superseding
// any evaluation still in flight.
func (s *Subscription) request() {
	s.ticket++
	candles := s.window.Snapshot()
	job := Job{
		Ticket:      s.ticket,
		Symbol:      s.req.Symbol,
		Direction:   s.req.Direction,
		Tree:        s.tree,
		Candles:     candles,
		NeedsStatus: s.needsStatus,
		key:         cacheKey{tree: s.treeKey, bars: len(candles), revision: s.revision},
	}
	if n := len(candles); n > 0 {
		job.key.lastTS = candles[n-1].TS
	}
	signals, hit := s.cache.get(job.key)
	s.p.metrics.CacheLookup(hit)
	job.Signals = signals
	s.latest = job

	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	if s.worker != nil {
		ctx, cancel := context.WithCancel(s.ctx)
		err := s.worker.submit(workItem{ctx: ctx, cancel: cancel, job: job})
		if err == nil {
			s.inflight = cancel
			return
		}
		cancel()
		s.fallback(err)
	}
	s.apply(s.runSync(job))
}

func (s *Subscription) exec(ctx context.Context, job Job) result {
	start := time.Now()
	out, err := s.p.eval(ctx, job)
	return result{
		ticket:  job.Ticket,
		key:     job.key,
		bars:    len(job.Candles),
		outcome: out,
		err:     err,
		latency: time.Since(start),
	}
}

// runSync evaluates on the subscription goroutine. A panic becomes an
// evaluation error rather than taking the process down.
func (s *Subscription) runSync(job Job) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{ticket: job.Ticket, key: job.key, bars: len(job.Candles),
				err: errors.Errorf("evaluation panic: %v", r)}
		}
	}()
	return s.exec(s.ctx, job)
}

func (s *Subscription) fallback(err error) {
	s.log.Error().Err(err).Msg("evaluation worker unavailable, evaluating synchronously")
	s.p.metrics.IncWorkerFallback()
	if s.worker != nil {
		s.worker.stop()
		s.worker = nil
	}
	s.syncOnly.Store(true)
}

func (s *Subscription) onResult(res result) {
	if errors.Is(res.err, ErrWorkerFailure) {
		s.fallback(res.err)
		if s.surfaced < s.ticket {
			s.apply(s.runSync(s.latest))
		}
		return
	}
	s.apply(res)
}

// apply surfaces res if it carries the newest ticket.
func (s *Subscription) apply(res result) {
	if res.ticket != s.ticket {
		s.p.metrics.IncSuperseded()
		s.log.Debug().Uint64("ticket", res.ticket).Uint64("latest", s.ticket).Msg("stale evaluation discarded")
		return
	}
	if res.err != nil && isCancel(res.err) {
		// superseded work or shutdown; the next ticket will report
		return
	}
	s.surfaced = res.ticket
	s.inflight = nil

	if res.err != nil {
		s.evalErr = res.err.Error()
		s.p.metrics.ObserveEvaluation(res.latency, false, true)
		s.log.Error().Err(res.err).Uint64("ticket", res.ticket).Msg("evaluation failed")

		s.mu.Lock()
		s.state.Error = s.errorText()
		s.state.Ticket = res.ticket
		s.mu.Unlock()
		s.publish()
		return
	}

	s.evalErr = ""
	s.cache.put(res.key, res.outcome.Signals)
	s.latency.Record(float64(res.latency.Microseconds()) / 1000.0)
	s.p.metrics.ObserveEvaluation(res.latency, res.outcome.Match, false)
	last, avg, n := s.latency.Stats()
	ectx := res.outcome.Context

	s.mu.Lock()
	s.state.Ready = res.bars >= s.minBars
	s.state.Match = res.outcome.Match
	s.state.LastEvaluatedAt = time.Now()
	s.state.Context = &ectx
	s.state.Signals = res.outcome.Signals
	s.state.Error = s.errorText()
	s.state.Ticket = res.ticket
	s.state.Bars = res.bars
	s.state.Metrics = EvaluationMetrics{
		LastLatencyMs: last,
		AvgLatencyMs:  avg,
		P95LatencyMs:  s.latency.Percentile(0.95),
		SampleCount:   n,
	}
	s.mu.Unlock()
	s.publish()
}

// publish delivers the current state, dropping the oldest queued state when
// the reader is behind.
func (s *Subscription) publish() {
	st := s.State()
	for {
		select {
		case s.updates <- st:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
