package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCanceled is the error of a task whose context was canceled.
var ErrCanceled = errors.New("fetch canceled")

// Error is the terminal error of a failed task.
type Error struct {
	Classification Classification
	Status         int
	Message        string
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Classification, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Classification, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// State is the lifecycle state of a Task.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
	Canceled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Task tracks one fetch chain, retries included. Its outcome is assigned
// exactly once.
type Task struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	err      error
	attempts int
}

func newTask(cancel context.CancelFunc) *Task {
	return &Task{done: make(chan struct{}), cancel: cancel}
}

// Done is closed when the task settles.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the current state and, for failed or canceled tasks, the
// error. Pending tasks return (Pending, nil).
func (t *Task) Result() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.err
}

// Wait blocks until the task settles or ctx is done.
func (t *Task) Wait(ctx context.Context) (State, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return Pending, ctx.Err()
	}
}

// Attempts reports how many requests the chain has issued so far.
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Cancel stops the chain. Pending retries are dropped and an in-flight
// request is aborted.
func (t *Task) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Task) addAttempt() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	return t.attempts
}

// complete settles the task. It reports false if the task was already settled.
func (t *Task) complete(state State, err error) bool {
	settled := false
	t.once.Do(func() {
		t.mu.Lock()
		t.state = state
		t.err = err
		t.mu.Unlock()
		close(t.done)
		settled = true
	})
	return settled
}
