package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadcheck/internal/model"
	"github.com/sells-group/roadcheck/internal/monitoring"
)

// MsgPanic is the error text recorded when a job function panics.
const MsgPanic = "analysis aborted unexpectedly"

// progressBuffer is the capacity of each job's progress channel.
const progressBuffer = 32

// RunFunc performs one analysis, reporting progress on events. It must not
// close events.
type RunFunc func(ctx context.Context, events chan<- model.ProgressEvent) (*model.AnalysisReport, error)

// Tracker launches analysis jobs in the background and serves their status.
type Tracker struct {
	store *Store
	ctx   context.Context
	wg    sync.WaitGroup
}

// NewTracker creates a Tracker. Cancelling ctx cancels every running job.
func NewTracker(ctx context.Context, store *Store) *Tracker {
	if store == nil {
		store = NewStore()
	}
	return &Tracker{store: store, ctx: ctx}
}

// Store returns the underlying job store.
func (t *Tracker) Store() *Store {
	return t.store
}

// Submit registers a job and starts fn in its own goroutine. It returns the
// new job id without waiting for fn.
func (t *Tracker) Submit(name string, fn RunFunc) (string, error) {
	if fn == nil {
		return "", eris.New("jobs: nil run function")
	}
	if err := t.ctx.Err(); err != nil {
		return "", eris.Wrap(err, "jobs: tracker stopped")
	}

	id := uuid.New().String()
	if err := t.store.Create(id); err != nil {
		return "", err
	}

	t.wg.Add(1)
	go t.run(id, name, fn)
	return id, nil
}

// Status returns a snapshot of the job, or ErrNotFound.
func (t *Tracker) Status(id string) (model.JobStatus, error) {
	return t.store.Get(id)
}

// Wait blocks until every submitted job has reached a terminal state.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) run(id, name string, fn RunFunc) {
	defer t.wg.Done()

	log := zap.L().With(zap.String("job_id", id), zap.String("source", name))
	start := time.Now()
	monitoring.JobStarted()
	log.Info("jobs: analysis started")

	events := make(chan model.ProgressEvent, progressBuffer)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for ev := range events {
			if err := t.store.Apply(id, ev); err != nil {
				log.Warn("jobs: apply progress", zap.Error(err))
			}
		}
	}()

	report, err := t.invoke(fn, events)
	close(events)
	<-consumed

	elapsed := time.Since(start)
	if err != nil {
		msg := failureMessage(err)
		if ferr := t.store.Fail(id, msg); ferr != nil {
			log.Error("jobs: record failure", zap.Error(ferr))
		}
		monitoring.JobFinished(string(model.JobStateFailed), elapsed)
		log.Error("jobs: analysis failed", zap.String("error", msg), zap.Duration("elapsed", elapsed))
		return
	}

	if cerr := t.store.Complete(id, report); cerr != nil {
		log.Error("jobs: record completion", zap.Error(cerr))
	}
	monitoring.JobFinished(string(model.JobStateCompleted), elapsed)
	log.Info("jobs: analysis completed", zap.Duration("elapsed", elapsed))
}

// invoke calls fn and turns a panic into an error.
func (t *Tracker) invoke(fn RunFunc, events chan<- model.ProgressEvent) (report *model.AnalysisReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("jobs: analysis panicked", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
			report, err = nil, errPanic
		}
	}()
	report, err = fn(t.ctx, events)
	if err == nil && report == nil {
		err = eris.New("analysis produced no report")
	}
	return report, err
}

var errPanic = eris.New(MsgPanic)

// failureMessage renders err for API clients without stack frames.
func failureMessage(err error) string {
	if eris.Is(err, errPanic) {
		return MsgPanic
	}
	return err.Error()
}
