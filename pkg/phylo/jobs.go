package phylo

import (
	"sync"
	"time"
)

// JobStatus represents the lifecycle of one group's alignment + tree build.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobSkipped   JobStatus = "skipped"
)

// Job tracks the processing state of one homolog group.
type Job struct {
	GroupID   string
	Status    JobStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobManager stores group job states indexed by group id.
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobManager constructs a job manager with no jobs.
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// NewJob registers a queued job for the given group.
func (m *JobManager) NewJob(groupID string) *Job {
	job := &Job{
		GroupID:   groupID,
		Status:    JobQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.mu.Lock()
	m.jobs[groupID] = job
	m.mu.Unlock()
	return job
}

// SetRunning marks the job as running.
func (m *JobManager) SetRunning(groupID string) {
	m.update(groupID, func(j *Job) { j.Status = JobRunning })
}

// Complete marks the job complete.
func (m *JobManager) Complete(groupID string) {
	m.update(groupID, func(j *Job) { j.Status = JobCompleted })
}

// Fail records a failure with a user-facing message.
func (m *JobManager) Fail(groupID string, err error) {
	m.update(groupID, func(j *Job) {
		j.Status = JobFailed
		j.Error = err.Error()
	})
}

// Skip records a group that was never submitted (too few members).
func (m *JobManager) Skip(groupID string, reason string) {
	m.update(groupID, func(j *Job) {
		j.Status = JobSkipped
		j.Error = reason
	})
}

// Get fetches a job by group id.
func (m *JobManager) Get(groupID string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[groupID]
	return j, ok
}

// CountByStatus tallies jobs per status.
func (m *JobManager) CountByStatus() map[JobStatus]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[JobStatus]int)
	for _, j := range m.jobs {
		out[j.Status]++
	}
	return out
}

func (m *JobManager) update(groupID string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[groupID]
	if !ok {
		j = &Job{GroupID: groupID, CreatedAt: time.Now()}
		m.jobs[groupID] = j
	}
	fn(j)
	j.UpdatedAt = time.Now()
}
