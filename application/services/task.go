package services

import (
	"context"
	"sync"
	"time"

	"github.com/dipan99/mindmapper/domain/core/valueobjects"
)

// TaskState is the lifecycle state of a materialization task
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskDiscarded TaskState = "discarded"
)

// IsTerminal reports whether no further transition can happen
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskDiscarded
}

// Task tracks the deferred production of one query's answer
type Task struct {
	queryID   valueobjects.NodeID
	createdAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu       sync.Mutex
	state    TaskState
	answerID valueobjects.NodeID
	attempts int
	err      error
	// once committed the result is registered whatever Cancel says;
	// cancelled and committed are mutually exclusive
	committed bool
	cancelled bool
}

func newTask(queryID valueobjects.NodeID, cancel context.CancelFunc) *Task {
	return &Task{
		queryID:   queryID,
		createdAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     TaskPending,
	}
}

// QueryID returns the query the task answers
func (t *Task) QueryID() valueobjects.NodeID {
	return t.queryID
}

// State returns the current state
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// AnswerID returns the id of the registered Answer node, zero until then
func (t *Task) AnswerID() valueobjects.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.answerID
}

// Attempts returns how many times the answering service was called
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Err returns the final error of a failed task
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the task reached a terminal state
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finished or ctx is done
func (t *Task) Wait(ctx context.Context) (TaskState, error) {
	select {
	case <-t.done:
		return t.State(), nil
	case <-ctx.Done():
		return t.State(), ctx.Err()
	}
}

func (t *Task) setState(state TaskState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

func (t *Task) recordAttempt() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	return t.attempts
}

// requestCancel cancels the task unless its result is already committed
func (t *Task) requestCancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.committed || t.state.IsTerminal() {
		return false
	}
	t.cancelled = true
	t.cancel()
	return true
}

// commit marks the point after which cancellation has no effect. It fails
// when the task was cancelled first.
func (t *Task) commit(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelled || ctx.Err() != nil {
		return false
	}
	t.committed = true
	return true
}

func (t *Task) finish(state TaskState, answerID valueobjects.NodeID, err error) {
	t.mu.Lock()
	t.state = state
	t.answerID = answerID
	t.err = err
	t.mu.Unlock()
}
