// Package jobs tracks background analysis runs and their progress.
package jobs

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roadcheck/internal/model"
)

var (
	// ErrNotFound is returned for unknown analysis ids.
	ErrNotFound = eris.New("jobs: analysis not found")
	// ErrFinished is returned when a terminal job is asked to transition.
	ErrFinished = eris.New("jobs: analysis already finished")
	// ErrExists is returned when Create reuses an id.
	ErrExists = eris.New("jobs: analysis id already exists")
)

const (
	stepInitializing = "Initializing analysis..."
	stepComplete     = "Analysis complete"
	stepFailed       = "Analysis failed"
)

type entry struct {
	mu     sync.RWMutex
	status model.JobStatus
}

// Store is an in-memory, concurrency-safe map of job statuses. Each job has
// its own lock; the map lock only guards insert and lookup.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*entry
	now  func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*entry),
		now:  time.Now,
	}
}

// Create registers a new job in the starting state.
func (s *Store) Create(id string) error {
	now := s.now()
	e := &entry{status: model.JobStatus{
		ID:          id,
		Status:      model.JobStateStarting,
		CurrentStep: stepInitializing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		return eris.Wrapf(ErrExists, "jobs: create %s", id)
	}
	s.jobs[id] = e
	return nil
}

// Get returns a copy of the job status.
func (s *Store) Get(id string) (model.JobStatus, error) {
	e, err := s.entry(id)
	if err != nil {
		return model.JobStatus{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status, nil
}

// Apply records a progress event. Percent and processed points never
// decrease, and events for terminal jobs are dropped.
func (s *Store) Apply(id string, ev model.ProgressEvent) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.status
	if st.Status.IsTerminal() {
		return nil
	}
	st.Status = model.JobStateProcessing
	st.CurrentStep = ev.Step
	st.Progress = max(st.Progress, model.ClampPercent(ev.Percent))
	st.ProcessedPoints = max(st.ProcessedPoints, ev.ProcessedPoints)
	if ev.TotalPoints > 0 {
		st.TotalPoints = ev.TotalPoints
	}
	st.UpdatedAt = s.now()
	return nil
}

// Complete moves the job to completed with the final report.
func (s *Store) Complete(id string, report *model.AnalysisReport) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.status
	if st.Status.IsTerminal() {
		return eris.Wrapf(ErrFinished, "jobs: complete %s", id)
	}
	st.Status = model.JobStateCompleted
	st.Progress = 100
	st.CurrentStep = stepComplete
	st.Result = report
	if report != nil {
		st.ProcessedPoints = max(st.ProcessedPoints, report.TotalPoints)
		if st.TotalPoints == 0 {
			st.TotalPoints = report.TotalPoints
		}
	}
	st.UpdatedAt = s.now()
	return nil
}

// Fail moves the job to failed with msg as the error text. Progress keeps
// its last value.
func (s *Store) Fail(id, msg string) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.status
	if st.Status.IsTerminal() {
		return eris.Wrapf(ErrFinished, "jobs: fail %s", id)
	}
	st.Status = model.JobStateFailed
	st.CurrentStep = stepFailed
	st.Error = &msg
	st.UpdatedAt = s.now()
	return nil
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "jobs: lookup %s", id)
	}
	return e, nil
}
