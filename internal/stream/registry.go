package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/leadgen/internal/model"
)

// Registry holds the jobs known to the API server.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*JobState
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*JobState)}
}

// Start registers a new job for q under a fresh id.
func (r *Registry) Start(q model.Query) *JobState {
	job := NewJobState(uuid.NewString(), q)
	r.mu.Lock()
	r.jobs[job.ID()] = job
	r.mu.Unlock()
	return job
}

// Get looks up a job by id.
func (r *Registry) Get(id string) (*JobState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Prune drops jobs that finished more than maxAge ago and returns how
// many were removed. Running jobs are kept.
func (r *Registry) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, job := range r.jobs {
		if job.finishedBefore(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}
