package corpus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of an asynchronous ingestion run.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskState is a snapshot of an ingestion task, pollable by task id.
type TaskState struct {
	ID                 string     `json:"task_id"`
	Status             TaskStatus `json:"status"`
	DocumentsProcessed int        `json:"documents_processed"`
	DocumentsTotal     int        `json:"documents_total"`
	Error              string     `json:"error,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
}

// TaskTracker tracks in-flight and recently finished ingestion tasks.
// Finished tasks older than retention are dropped on write.
type TaskTracker struct {
	mu        sync.RWMutex
	tasks     map[string]*TaskState
	retention time.Duration
}

// NewTaskTracker creates a tracker that retains finished tasks for an hour.
func NewTaskTracker() *TaskTracker {
	return &TaskTracker{
		tasks:     make(map[string]*TaskState),
		retention: time.Hour,
	}
}

// Start registers a new running task and returns its id.
func (t *TaskTracker) Start() string {
	id := uuid.New().String()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[id] = &TaskState{
		ID:        id,
		Status:    TaskRunning,
		StartedAt: time.Now().UTC(),
	}
	t.pruneLocked()
	return id
}

// Progress updates the processed/total counters for a task.
func (t *TaskTracker) Progress(id string, processed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.tasks[id]; ok {
		s.DocumentsProcessed = processed
		s.DocumentsTotal = total
	}
}

// Finish marks a task completed, or failed if err is non-nil.
func (t *TaskTracker) Finish(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.tasks[id]
	if !ok {
		return
	}
	if err != nil {
		s.Status = TaskFailed
		s.Error = err.Error()
	} else {
		s.Status = TaskCompleted
	}
}

// Get returns a snapshot of the task, or false if unknown.
func (t *TaskTracker) Get(id string) (TaskState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.tasks[id]
	if !ok {
		return TaskState{}, false
	}
	return *s, true
}

func (t *TaskTracker) pruneLocked() {
	cutoff := time.Now().Add(-t.retention)
	for id, s := range t.tasks {
		if s.Status != TaskRunning && s.StartedAt.Before(cutoff) {
			delete(t.tasks, id)
		}
	}
}
