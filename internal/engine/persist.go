package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"dida/internal/logging"
)

var ErrClosed = errors.New("engine is closed")

// Commit tracks the durable write behind one mutation. The in-memory change
// is already visible when a Commit is returned.
type Commit struct {
	done chan struct{}
	err  error
}

func newCommit() *Commit {
	return &Commit{done: make(chan struct{})}
}

func resolvedCommit(err error) *Commit {
	c := newCommit()
	c.resolve(err)
	return c
}

func (c *Commit) resolve(err error) {
	c.err = err
	close(c.done)
}

// Done is closed once the write has succeeded or given up.
func (c *Commit) Done() <-chan struct{} { return c.done }

// Err returns the final write error. It is nil while the write is pending.
func (c *Commit) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the write finishes or ctx ends.
func (c *Commit) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPolicy controls how a failed write is retried. Attempt n waits
// n*Backoff before running again.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetry retries a failed write twice with a short linear backoff.
var DefaultRetry = RetryPolicy{MaxAttempts: 3, Backoff: 200 * time.Millisecond}

// Failure describes a write that exhausted its retries.
type Failure struct {
	Op     string
	TaskID string
	Err    error
}

type write struct {
	op     string
	taskID string
	run    func(ctx context.Context) error
	commit *Commit
}

// writer drains queued writes on one goroutine in submission order, so the
// writes for any task id reach the backend in the order they were made.
type writer struct {
	mu      sync.Mutex
	queue   []write
	closed  bool
	wake    chan struct{}
	exited  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	retry   RetryPolicy
	onError func(Failure)
}

func newWriter(retry RetryPolicy, onError func(Failure)) *writer {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &writer{
		wake:    make(chan struct{}, 1),
		exited:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		retry:   retry,
		onError: onError,
	}
	go w.loop()
	return w
}

// submit queues run without blocking.
func (w *writer) submit(op, taskID string, run func(ctx context.Context) error) *Commit {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		logging.Warn("engine", "%s %s dropped: %v", op, taskID, ErrClosed)
		return resolvedCommit(ErrClosed)
	}
	c := newCommit()
	w.queue = append(w.queue, write{op: op, taskID: taskID, run: run, commit: c})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return c
}

func (w *writer) next() (write, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return write{}, false, w.closed
	}
	wr := w.queue[0]
	w.queue[0] = write{}
	w.queue = w.queue[1:]
	return wr, true, false
}

func (w *writer) loop() {
	defer close(w.exited)
	for {
		wr, ok, closed := w.next()
		if closed {
			return
		}
		if !ok {
			<-w.wake
			continue
		}
		wr.commit.resolve(w.execute(wr))
	}
}

func (w *writer) execute(wr write) error {
	var err error
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		if err = wr.run(w.ctx); err == nil {
			return nil
		}
		if w.ctx.Err() != nil {
			break
		}
		if attempt < w.retry.MaxAttempts {
			logging.Debug("engine", "%s %s failed (attempt %d/%d): %v", wr.op, wr.taskID, attempt, w.retry.MaxAttempts, err)
			select {
			case <-time.After(time.Duration(attempt) * w.retry.Backoff):
			case <-w.ctx.Done():
			}
		}
	}
	logging.Warn("engine", "%s %s not persisted: %v", wr.op, wr.taskID, err)
	if w.onError != nil {
		w.onError(Failure{Op: wr.op, TaskID: wr.taskID, Err: err})
	}
	return err
}

// flush waits until every write queued before the call has finished.
func (w *writer) flush(ctx context.Context) error {
	barrier := w.submit("flush", "", func(context.Context) error { return nil })
	if errors.Is(barrier.Err(), ErrClosed) {
		return nil
	}
	return barrier.Wait(ctx)
}

// close stops accepting writes, drains the queue and stops the goroutine.
// If ctx ends first, in-flight retries are abandoned.
func (w *writer) close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.exited
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}

	select {
	case <-w.exited:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.exited
		return ctx.Err()
	}
}
