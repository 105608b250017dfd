package querycache

import (
	"context"
	"sync"
	"time"
)

// Task is a Fetch running in the background on behalf of a consumer that may
// go away before it settles. The consumer keeps the Task and calls Cancel on
// teardown; after Cancel returns the apply callback is never invoked.
type Task struct {
	key    string
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	canceled bool
	res      Result
	err      error
}

// Go starts Fetch in a new goroutine and calls apply with its outcome unless
// the task was cancelled first. apply must not call Cancel on its own task.
func (c *Cache) Go(ctx context.Context, key string, ttl time.Duration, load Loader, apply func(Result, error)) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{key: key, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		res, err := c.Fetch(taskCtx, key, ttl, load)

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.canceled {
			c.logger.Debug("discarding result of cancelled fetch", "key", key)
			t.err = context.Canceled
			return
		}
		t.res, t.err = res, err
		if apply != nil {
			apply(res, err)
		}
	}()
	return t
}

// Key returns the cache key the task is loading.
func (t *Task) Key() string { return t.key }

// Cancel abandons the task. The underlying load keeps running for the cache
// but its result is no longer delivered to this task.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.canceled = true
	t.mu.Unlock()
	t.cancel()
}

// Done is closed once the task has settled or observed its cancellation.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task settles or ctx ends. A cancelled task reports
// context.Canceled.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-t.done:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.res, t.err
}
