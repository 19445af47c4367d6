// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"trading-condengine/internal/logger"
)

// Scheduler manages named cron jobs. A job never overlaps with itself and a
// panicking job is logged and recovered.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a scheduler. Specs use the standard five-field format or
// descriptors such as "@every 5m".
func New() *Scheduler {
	l := logger.Component("scheduler")
	cl := cronLogger{log: l}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			// Recover must wrap the job inside SkipIfStillRunning, or a panic
			// never returns the running slot and the job is skipped forever.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		log: l,
	}
}

// Add registers fn under name.
func (s *Scheduler) Add(name, spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.log.Debug().Str("job", name).Msg("running")
		fn()
	})
	if err != nil {
		return errors.Wrapf(err, "register %s job (%q)", name, spec)
	}
	s.log.Info().Str("job", name).Str("spec", spec).Msg("job registered")
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "scheduler stop")
	}
}

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
