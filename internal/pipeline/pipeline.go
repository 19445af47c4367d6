// Package pipeline keeps condition trees evaluated against live candles.
//
// Each Subscription owns a rolling window sized to its tree's lookback, a
// signal map cache and a single evaluation worker. Ticks mutate the window on
// the subscription's own goroutine; bursts are debounced into one trailing
// evaluation, and every evaluation request takes a new ticket. Only the result
// carrying the newest ticket is surfaced, so a slow or cancelled evaluation
// can never overwrite a fresher one.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/logger"
	"trading-condengine/internal/metrics"
	"trading-condengine/internal/model"
	"trading-condengine/internal/strategy"
)

const (
	DefaultDebounce       = 150 * time.Millisecond
	DefaultLookbackMargin = 2
	DefaultReconnectMin   = 2 * time.Second
	DefaultReconnectMax   = 30 * time.Second
	DefaultUpdatesBuffer  = 16
	backfillTimeout       = 10 * time.Second
)

// Options tunes a Pipeline. Zero Debounce evaluates on every tick.
type Options struct {
	Debounce       time.Duration
	UseWorker      bool
	LookbackMargin int
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	UpdatesBuffer  int
	// Eval replaces the default evaluation, mainly for tests.
	Eval EvalFunc
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:       DefaultDebounce,
		UseWorker:      true,
		LookbackMargin: DefaultLookbackMargin,
		ReconnectMin:   DefaultReconnectMin,
		ReconnectMax:   DefaultReconnectMax,
		UpdatesBuffer:  DefaultUpdatesBuffer,
	}
}

// Request describes one subscription.
type Request struct {
	Symbol    string
	Interval  string
	Direction model.Direction
	Tree      *condition.Group
}

// Pipeline manages subscriptions over one candle feed.
type Pipeline struct {
	feed    model.CandleFeed
	status  model.StatusProvider
	metrics *metrics.Metrics
	opts    Options
	eval    EvalFunc
	log     zerolog.Logger

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
	wg     sync.WaitGroup
}

// New creates a pipeline. status and m may be nil.
func New(feed model.CandleFeed, status model.StatusProvider, m *metrics.Metrics, opts Options) *Pipeline {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = DefaultReconnectMin
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = opts.ReconnectMin
	}
	if opts.UpdatesBuffer <= 0 {
		opts.UpdatesBuffer = DefaultUpdatesBuffer
	}
	if opts.LookbackMargin < 0 {
		opts.LookbackMargin = 0
	}
	p := &Pipeline{
		feed:    feed,
		status:  status,
		metrics: m,
		opts:    opts,
		log:     logger.Component("pipeline"),
		subs:    make(map[string]*Subscription),
	}
	p.eval = opts.Eval
	if p.eval == nil {
		p.eval = p.evaluate
	}
	return p
}

// Subscribe starts evaluating req.Tree for req.Symbol. The subscription
// lives until Close, Unsubscribe, Pipeline.Close or ctx is done. Subscribing
// on a closed pipeline returns an already closed subscription.
func (p *Pipeline) Subscribe(ctx context.Context, req Request) *Subscription {
	s := newSubscription(ctx, p, req)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.cancel()
		close(s.updates)
		close(s.done)
		return s
	}
	p.subs[s.id] = s
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.AddSubscriptions(1)
	go func() {
		defer p.wg.Done()
		s.run()
	}()
	return s
}

// Unsubscribe closes the subscription with id. It reports whether one existed.
func (p *Pipeline) Unsubscribe(id string) bool {
	p.mu.Lock()
	s, ok := p.subs[id]
	p.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	return true
}

// Get returns the live subscription with id, or nil.
func (p *Pipeline) Get(id string) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs[id]
}

// Subscriptions returns the live subscriptions ordered by id.
func (p *Pipeline) Subscriptions() []*Subscription {
	p.mu.Lock()
	out := make([]*Subscription, 0, len(p.subs))
	for _, s := range p.subs {
		out = append(out, s)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ResyncAll reloads every subscription's window from the backfill source.
func (p *Pipeline) ResyncAll() {
	for _, s := range p.Subscriptions() {
		s.Resync()
	}
}

// Close stops every subscription and waits for their goroutines.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	subs := make([]*Subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		s.cancel()
	}
	p.wg.Wait()
}

func (p *Pipeline) remove(id string) {
	p.mu.Lock()
	_, ok := p.subs[id]
	delete(p.subs, id)
	p.mu.Unlock()
	if ok {
		p.metrics.AddSubscriptions(-1)
	}
}

// evaluate is the default EvalFunc: signal map (unless cached), status
// snapshot when the tree needs one, then the tree walk. A failed status read
// leaves the snapshot absent, which fails status leaves closed.
func (p *Pipeline) evaluate(ctx context.Context, job Job) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	signals := job.Signals
	if signals == nil {
		signals = strategy.BuildSignalMap(job.Tree, job.Candles)
	}

	var status *model.StatusSnapshot
	if job.NeedsStatus && p.status != nil {
		snap, err := p.status.Snapshot(ctx, job.Symbol, job.Direction)
		switch {
		case ctx.Err() != nil:
			return Outcome{}, ctx.Err()
		case err != nil:
			p.log.Warn().Err(err).Str("symbol", job.Symbol).Str("direction", string(job.Direction)).
				Msg("status snapshot unavailable")
		default:
			status = snap
		}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	ectx := strategy.ContextFor(job.Symbol, job.Direction, job.Candles, status)
	return Outcome{
		Match:   strategy.Evaluate(job.Tree, ectx, signals),
		Context: ectx,
		Signals: signals,
	}, nil
}

// isCancel reports whether err only says the evaluation was cancelled.
func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
