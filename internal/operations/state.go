package operations

import (
	"sync"
	"time"

	"sczmerge/internal/config"
	"sczmerge/internal/dataprocessing"
	"sczmerge/internal/exporter"
	"sczmerge/internal/files"
	"sczmerge/internal/publish"
	"sczmerge/pkg/contracts/domain"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState carries the configuration and every intermediate result of one run.
// Steps read what earlier steps produced and fill in their own fields.
type RunState struct {
	mu sync.RWMutex

	ID        string
	Status    RunStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	Config *config.Config
	Paths  *config.Paths

	// discover
	Files []files.FileInfo
	// load
	Loaded *dataprocessing.LoadResult
	// load, normalize, unify
	Tables []*domain.Table
	// merge, coerce
	Merged  *domain.Table
	Coerced dataprocessing.CoerceResult
	// persist
	Persisted *exporter.PersistResult
	// publish
	Uploads []publish.Upload

	steps map[string]*StepState
	order []string
}

// NewRunState creates the state for one run over cfg and its resolved paths
func NewRunState(id string, cfg *config.Config, paths *config.Paths) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Config:    cfg,
		Paths:     paths,
		steps:     make(map[string]*StepState),
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed
func (r *RunState) Complete() {
	r.finish(RunStatusCompleted, nil)
}

// Fail marks the run as failed with err
func (r *RunState) Fail(err error) {
	r.finish(RunStatusFailed, err)
}

// Cancel marks the run as cancelled
func (r *RunState) Cancel(err error) {
	r.finish(RunStatusCancelled, err)
}

func (r *RunState) finish(status RunStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = status
	r.Error = err
}

// Duration returns how long the run took, or has taken so far
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// AddStep registers a pending state for a step, keeping registration order
func (r *RunState) AddStep(id, name string) *StepState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.steps[id]; ok {
		return existing
	}
	s := NewStepState(id, name)
	r.steps[id] = s
	r.order = append(r.order, id)
	return s
}

// GetStep returns the state of a step, or nil when it was never registered
func (r *RunState) GetStep(id string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[id]
}

// Steps returns the step states in registration order
func (r *RunState) Steps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*StepState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.steps[id])
	}
	return out
}
