package parallel

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of one submitted operation.
type Result[T any] struct {
	TaskID   int64
	Value    T
	Err      error
	Duration time.Duration
}

// Pool manages concurrent task operations with bounded concurrency.
type Pool[T any] struct {
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	results    []*Result[T]
	errors     []error
	failFast   bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewPool creates a pool. If maxWorkers is 0 every submitted operation runs
// at once. If failFast is true the pool context is cancelled on the first
// error and operations that have not started yet are skipped.
func NewPool[T any](ctx context.Context, maxWorkers int, failFast bool) *Pool[T] {
	ctx, cancel := context.WithCancel(ctx)
	return &Pool[T]{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
		failFast:   failFast,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Submit schedules fn for taskID. It never blocks; the slot is acquired by
// the worker goroutine. fn receives the pool context.
func (p *Pool[T]) Submit(taskID int64, fn func(ctx context.Context) (T, error)) {
	res := &Result[T]{TaskID: taskID}
	p.mu.Lock()
	p.results = append(p.results, res)
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if p.maxWorkers > 0 {
			select {
			case p.semaphore <- struct{}{}:
				defer func() { <-p.semaphore }()
			case <-p.ctx.Done():
				p.finish(res, *new(T), p.ctx.Err(), 0)
				return
			}
		}
		if err := p.ctx.Err(); err != nil {
			p.finish(res, *new(T), err, 0)
			return
		}

		start := time.Now()
		value, err := fn(p.ctx)
		p.finish(res, value, err, time.Since(start))
	}()
}

func (p *Pool[T]) finish(res *Result[T], value T, err error, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res.Value, res.Err, res.Duration = value, err, d
	if err != nil {
		p.errors = append(p.errors, fmt.Errorf("task %d: %w", res.TaskID, err))
		if p.failFast {
			p.cancel()
		}
	}
}

// Wait waits for every submitted operation and returns the results in
// submission order together with the errors in completion order.
func (p *Pool[T]) Wait() ([]Result[T], []error) {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancel()

	results := make([]Result[T], len(p.results))
	for i, r := range p.results {
		results[i] = *r
	}
	errors := make([]error, len(p.errors))
	copy(errors, p.errors)
	return results, errors
}

// Cancel cancels all pending work in the pool.
func (p *Pool[T]) Cancel() {
	p.cancel()
}
