package runtime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type job func(ctx context.Context)

// dispatchQueue runs jobs one at a time in push order on its own goroutine.
// push never blocks.
type dispatchQueue struct {
	logger *zap.Logger

	mu     sync.Mutex
	jobs   []job
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newDispatchQueue(logger *zap.Logger) *dispatchQueue {
	q := &dispatchQueue{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *dispatchQueue) push(j job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *dispatchQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			continue
		}
		j := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.exec(j)
	}
}

func (q *dispatchQueue) exec(j job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Dispatch job panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	j(context.Background())
}

func (q *dispatchQueue) flush(ctx context.Context) error {
	marker := make(chan struct{})
	if !q.push(func(context.Context) { close(marker) }) {
		return ErrClosed
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *dispatchQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}
