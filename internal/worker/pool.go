package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work producing a result of type T
type Job[T any] interface {
	Execute(ctx context.Context) T
}

// Pool manages a pool of workers that execute jobs concurrently. Results
// arrive in completion order; callers that need input order must carry an
// index in the result.
type Pool[T any] struct {
	workers    int
	jobQueue   chan Job[T]
	results    chan T
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool[T any](workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool[T]{
		workers:    workers,
		jobQueue:   make(chan Job[T], workers*2), // Buffered to prevent blocking
		results:    make(chan T, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit submits a job to the pool for execution
func (p *Pool[T]) Submit(job Job[T]) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait waits for all submitted jobs to complete and returns the results
func (p *Pool[T]) Wait() []T {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []T
	for result := range p.results {
		results = append(results, result)
	}

	return results
}

// Shutdown shuts down the worker pool immediately
func (p *Pool[T]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[T]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
