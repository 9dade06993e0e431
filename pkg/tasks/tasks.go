// Package tasks runs long extraction jobs in the background and tracks
// their state for status polling.
//
// The manager is a coarse-mutex task table: one lock guards every state
// transition, which is plenty for the handful of concurrent extractions
// an instance serves. Worker slots are bounded by a semaphore channel;
// a submitted task waits for a slot, runs, and records its outcome for
// later polling. Completed tasks are pruned after a retention window.
package tasks

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Func is the work a task executes. The returned value becomes the
// task's result; an error or panic marks it failed.
type Func func() (any, error)

// Task is the pollable state of one submitted job. Snapshot copies are
// returned to callers; the manager owns the live instance.
type Task struct {
	ID       string `json:"taskId"`
	Type     string `json:"taskType"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Result   any    `json:"result"`
	Error    string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// Manager is the in-process task table.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*Task
	slots chan struct{}
}

// NewManager creates a manager running at most maxWorkers tasks
// concurrently.
func NewManager(maxWorkers int) *Manager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Manager{
		tasks: make(map[string]*Task),
		slots: make(chan struct{}, maxWorkers),
	}
}

// Submit registers a task and starts it in the background. The task
// waits for a worker slot before running. Submitting a duplicate ID is
// an error.
func (m *Manager) Submit(id, taskType string, fn Func) (*Task, error) {
	task := &Task{
		ID:        id,
		Type:      taskType,
		Status:    StatusPending,
		Message:   "Task created",
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	if _, exists := m.tasks[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("task %q already exists", id)
	}
	m.tasks[id] = task
	m.mu.Unlock()

	slog.Info("task submitted", "task", id, "type", taskType)
	go m.run(id, fn)

	snapshot := *task
	return &snapshot, nil
}

func (m *Manager) run(id string, fn Func) {
	m.slots <- struct{}{}
	defer func() { <-m.slots }()

	started := time.Now()
	m.update(id, func(t *Task) {
		t.Status = StatusProcessing
		t.StartedAt = &started
		t.Message = "Task processing started"
	})
	slog.Info("task started", "task", id)

	result, err := runProtected(fn)
	completed := time.Now()

	if err != nil {
		slog.Error("task failed", "task", id, "error", err)
		m.update(id, func(t *Task) {
			t.Status = StatusFailed
			t.CompletedAt = &completed
			t.Error = err.Error()
			t.Message = "Task failed: " + err.Error()
		})
		return
	}

	m.update(id, func(t *Task) {
		t.Status = StatusCompleted
		t.CompletedAt = &completed
		t.Result = result
		t.Progress = 100
		t.Message = "Task completed successfully"
	})
	slog.Info("task completed", "task", id)
}

// runProtected converts a panic inside the task function into a failed
// task instead of taking the process down.
func runProtected(fn Func) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn()
}

func (m *Manager) update(id string, mutate func(*Task)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[id]; ok {
		mutate(task)
	}
}

// Get returns a snapshot of the task, or false when unknown.
func (m *Manager) Get(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// SetProgress updates a running task's progress percentage and,
// optionally, its status message. Progress is clamped to [0,100].
func (m *Manager) SetProgress(id string, progress int, message string) {
	m.update(id, func(t *Task) {
		t.Progress = min(100, max(0, progress))
		if message != "" {
			t.Message = message
		}
	})
}

// CleanupOlderThan removes completed and failed tasks finished more
// than maxAge ago, returning how many were pruned.
func (m *Manager) CleanupOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, task := range m.tasks {
		if task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("cleaned up old tasks", "count", removed)
	}
	return removed
}
