// Package enginesvc runs the condition engine as a service: it loads the
// strategy settings, subscribes every enabled rule to the streaming
// pipeline, publishes evaluation states and alerts on new matches.
package enginesvc

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trading-condengine/internal/config"
	"trading-condengine/internal/logger"
	"trading-condengine/internal/metrics"
	"trading-condengine/internal/migrate"
	"trading-condengine/internal/model"
	"trading-condengine/internal/notification"
	"trading-condengine/internal/pipeline"
	"trading-condengine/internal/scheduler"
	"trading-condengine/internal/strategy"
)

const publishTimeout = 2 * time.Second

// Publisher receives every evaluation state, keyed by rule name.
type Publisher interface {
	PublishState(ctx context.Context, id string, state any) error
}

// Alerter delivers match alerts.
type Alerter interface {
	Notify(ctx context.Context, alert notification.Alert) int
}

// Deps are the collaborators of a Service. Feed and Settings are required.
type Deps struct {
	Feed      model.CandleFeed
	Status    model.StatusProvider
	Settings  model.SettingsSource
	Publisher Publisher
	Alerts    Alerter
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
}

// RuleState is the published form of an evaluation state.
type RuleState struct {
	Rule   string          `json:"rule"`
	Action strategy.Action `json:"action"`
	pipeline.EvaluationState
}

// ReloadResult reports what a settings reload changed.
type ReloadResult struct {
	Updated int `json:"updated"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

type binding struct {
	rule strategy.Rule
	sub  *pipeline.Subscription
}

// Service is the top-level orchestrator for the condition engine.
type Service struct {
	cfg   config.Config
	deps  Deps
	pipe  *pipeline.Pipeline
	sched *scheduler.Scheduler
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reloadMu sync.Mutex
	mu       sync.Mutex
	bindings map[string]*binding
}

// New wires a service. Nothing runs until Start.
func New(cfg config.Config, deps Deps) (*Service, error) {
	if deps.Feed == nil || deps.Settings == nil {
		return nil, errors.New("enginesvc: feed and settings source are required")
	}

	opts := pipeline.DefaultOptions()
	opts.Debounce = cfg.Debounce
	opts.UseWorker = cfg.UseWorker
	opts.LookbackMargin = cfg.LookbackMargin

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:      cfg,
		deps:     deps,
		pipe:     pipeline.New(deps.Feed, deps.Status, deps.Metrics, opts),
		sched:    scheduler.New(),
		log:      logger.Component("enginesvc"),
		ctx:      ctx,
		cancel:   cancel,
		bindings: make(map[string]*binding),
	}
	if err := s.sched.Add("resync", cfg.ResyncCron, s.Resync); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Start loads the settings, subscribes every rule and starts the resync
// schedule. ctx bounds only the settings read.
func (s *Service) Start(ctx context.Context) error {
	rules, err := s.loadRules(ctx)
	if err != nil {
		return err
	}

	s.reloadMu.Lock()
	for _, r := range rules {
		s.bind(r)
	}
	s.reloadMu.Unlock()

	if len(rules) == 0 {
		s.log.Warn().Str("strategy", s.cfg.StrategyID).Msg("no enabled rules; waiting for reload")
	}
	s.sched.Start()
	s.log.Info().
		Str("strategy", s.cfg.StrategyID).
		Strs("symbols", s.cfg.Symbols).
		Str("interval", s.cfg.Interval).
		Int("rules", len(rules)).
		Msg("condition engine started")
	return nil
}

// Stop ends every subscription and the scheduler.
func (s *Service) Stop(ctx context.Context) error {
	err := s.sched.Stop(ctx)
	s.cancel()
	s.pipe.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "enginesvc stop")
	}
	s.log.Info().Msg("shutdown complete")
	return err
}

// Reload re-reads the settings document. Rules that still exist keep their
// subscription and get the new tree; others are added or closed.
func (s *Service) Reload(ctx context.Context) (ReloadResult, error) {
	rules, err := s.loadRules(ctx)
	if err != nil {
		return ReloadResult{}, err
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	var res ReloadResult
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		seen[r.Name] = true
		s.mu.Lock()
		b, ok := s.bindings[r.Name]
		s.mu.Unlock()
		if ok {
			b.sub.UpdateTree(r.Tree)
			res.Updated++
			continue
		}
		s.bind(r)
		res.Added++
	}

	s.mu.Lock()
	var stale []*binding
	for name, b := range s.bindings {
		if !seen[name] {
			stale = append(stale, b)
			delete(s.bindings, name)
		}
	}
	n := len(s.bindings)
	s.mu.Unlock()

	for _, b := range stale {
		b.sub.Close()
		res.Removed++
	}
	s.deps.Health.SetSubscriptions(n)

	s.log.Info().Int("updated", res.Updated).Int("added", res.Added).Int("removed", res.Removed).Msg("settings reloaded")
	return res, nil
}

// Resync reloads every subscription window from the backfill source.
func (s *Service) Resync() {
	s.pipe.ResyncAll()
	s.deps.Metrics.IncResync()
}

// States returns the latest state of every rule ordered by name.
func (s *Service) States() []RuleState {
	s.mu.Lock()
	out := make([]RuleState, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, RuleState{Rule: b.rule.Name, Action: b.rule.Action, EvaluationState: b.sub.State()})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Rule < out[j].Rule })
	return out
}

func (s *Service) loadRules(ctx context.Context) ([]strategy.Rule, error) {
	data, err := s.deps.Settings.ReadSettingsJSON(ctx, s.cfg.StrategyID)
	if err != nil {
		return nil, errors.Wrapf(err, "load settings %s", s.cfg.StrategyID)
	}
	if data == nil {
		s.log.Warn().Str("strategy", s.cfg.StrategyID).Msg("settings document not found; using defaults")
	}
	settings := migrate.MigrateJSON(data)
	return strategy.RulesFromSettings(settings, s.cfg.Symbols), nil
}

// bind subscribes r. Callers hold reloadMu.
func (s *Service) bind(r strategy.Rule) {
	sub := s.pipe.Subscribe(s.ctx, pipeline.Request{
		Symbol:    r.Symbol,
		Interval:  s.cfg.Interval,
		Direction: r.Direction,
		Tree:      r.Tree,
	})
	b := &binding{rule: r, sub: sub}

	s.mu.Lock()
	s.bindings[r.Name] = b
	n := len(s.bindings)
	s.mu.Unlock()
	s.deps.Health.SetSubscriptions(n)

	s.log.Info().Str("rule", r.Name).Str("sub", sub.ID()).Msg("rule subscribed")
	s.wg.Add(1)
	go s.consume(b)
}

// consume forwards every state of b and alerts on false-to-true transitions
// of a ready, healthy evaluation.
func (s *Service) consume(b *binding) {
	defer s.wg.Done()
	matched := false
	for st := range b.sub.Updates() {
		s.publish(b, st)

		if st.Error != "" {
			s.deps.Health.SetFeedConnected(false)
			continue
		}
		s.deps.Health.SetFeedConnected(true)
		s.deps.Health.SetLastTickTime(time.Now())

		if !st.Ready {
			continue
		}
		if st.Match && !matched {
			s.alert(b, st)
		}
		matched = st.Match
	}
}

func (s *Service) publish(b *binding, st pipeline.EvaluationState) {
	if s.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, publishTimeout)
	defer cancel()
	err := s.deps.Publisher.PublishState(ctx, b.rule.Name, RuleState{Rule: b.rule.Name, Action: b.rule.Action, EvaluationState: st})
	if err != nil && s.ctx.Err() == nil {
		s.log.Warn().Err(err).Str("rule", b.rule.Name).Uint64("ticket", st.Ticket).Msg("state publish failed")
	}
}

func (s *Service) alert(b *binding, st pipeline.EvaluationState) {
	s.log.Info().Str("rule", b.rule.Name).Uint64("ticket", st.Ticket).Msg("conditions matched")
	if s.deps.Alerts == nil {
		return
	}
	s.deps.Alerts.Notify(s.ctx, matchAlert(b.rule, st))
}

func matchAlert(r strategy.Rule, st pipeline.EvaluationState) notification.Alert {
	level := notification.AlertInfo
	switch r.Action {
	case strategy.ActionStopLoss, strategy.ActionHedge:
		level = notification.AlertWarning
	}
	fields := map[string]string{
		"rule":      r.Name,
		"symbol":    r.Symbol,
		"direction": string(r.Direction),
		"action":    string(r.Action),
		"interval":  st.Interval,
	}
	if st.Context != nil && st.Context.CandleCurrent != nil {
		fields["price"] = strconv.FormatFloat(st.Context.CandleCurrent.Close, 'f', -1, 64)
		fields["bar_ts"] = strconv.FormatInt(st.Context.CandleCurrent.TS, 10)
	}
	return notification.Alert{
		Level:   level,
		Title:   r.Symbol + " " + string(r.Direction) + " " + string(r.Action),
		Message: "conditions matched",
		Fields:  fields,
	}
}
