package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"trading-condengine/internal/condition"
	"trading-condengine/internal/model"
	"trading-condengine/internal/strategy"
)

var (
	// ErrWorkerFailure reports an evaluation that crashed on the worker.
	ErrWorkerFailure = errors.New("pipeline: evaluation worker failed")
	// ErrWorkerStopped is returned when submitting to a stopped worker.
	ErrWorkerStopped = errors.New("pipeline: evaluation worker stopped")
)

// Job is an immutable evaluation request. Candles is a private copy of the
// window; Signals is set when the signal map came from the cache.
type Job struct {
	Ticket      uint64
	Symbol      string
	Direction   model.Direction
	Tree        *condition.Group
	Candles     []model.Candle
	Signals     strategy.SignalMap
	NeedsStatus bool

	key cacheKey
}

// Outcome is the product of one evaluation.
type Outcome struct {
	Match   bool
	Context strategy.EvaluationContext
	Signals strategy.SignalMap
}

// EvalFunc evaluates a job. It should honour ctx cancellation where it can;
// a result for a superseded ticket is discarded either way.
type EvalFunc func(ctx context.Context, job Job) (Outcome, error)

type result struct {
	ticket  uint64
	key     cacheKey
	bars    int
	outcome Outcome
	err     error
	latency time.Duration
}

type workItem struct {
	ctx    context.Context
	cancel context.CancelFunc
	job    Job
}

// worker runs jobs one at a time. At most one job waits behind the running
// one; submitting again replaces and cancels the waiting job.
type worker struct {
	jobs    chan workItem
	results chan<- result
	done    <-chan struct{}
	exec    func(context.Context, Job) result
	stopped bool
}

func newWorker(exec func(context.Context, Job) result, results chan<- result, done <-chan struct{}) *worker {
	w := &worker{
		jobs:    make(chan workItem, 1),
		results: results,
		done:    done,
		exec:    exec,
	}
	go w.run()
	return w
}

func (w *worker) run() {
	for item := range w.jobs {
		res := w.safeExec(item)
		item.cancel()
		select {
		case w.results <- res:
		case <-w.done:
			return
		}
	}
}

func (w *worker) safeExec(item workItem) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{
				ticket: item.job.Ticket,
				key:    item.job.key,
				bars:   len(item.job.Candles),
				err:    errors.Wrap(ErrWorkerFailure, fmt.Sprintf("panic: %v", r)),
			}
		}
	}()
	return w.exec(item.ctx, item.job)
}

// submit is called from a single goroutine only.
func (w *worker) submit(item workItem) error {
	if w.stopped {
		return ErrWorkerStopped
	}
	select {
	case w.jobs <- item:
		return nil
	default:
	}
	select {
	case old := <-w.jobs:
		old.cancel()
	default:
	}
	w.jobs <- item
	return nil
}

// stop cancels any waiting job and lets the running one finish.
func (w *worker) stop() {
	if w.stopped {
		return
	}
	w.stopped = true
	select {
	case old := <-w.jobs:
		old.cancel()
	default:
	}
	close(w.jobs)
}
