package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type addJob struct {
	n       int
	counter *int64
}

func (j *addJob) Execute(ctx context.Context) int {
	atomic.AddInt64(j.counter, 1)
	return j.n * 2
}

func TestPool_ProcessesAllJobs(t *testing.T) {
	pool := NewPool[int](4)
	pool.Start()

	var counter int64
	for i := 1; i <= 20; i++ {
		pool.Submit(&addJob{n: i, counter: &counter})
	}

	results := pool.Wait()
	if len(results) != 20 {
		t.Fatalf("Expected 20 results, got %d", len(results))
	}
	if atomic.LoadInt64(&counter) != 20 {
		t.Errorf("Expected 20 executions, got %d", counter)
	}

	sum := 0
	for _, r := range results {
		sum += r
	}
	// 2 * (1 + 2 + ... + 20)
	if sum != 420 {
		t.Errorf("Expected result sum 420, got %d", sum)
	}
}

func TestPool_ZeroWorkersClampedToOne(t *testing.T) {
	pool := NewPool[int](0)
	pool.Start()

	var counter int64
	pool.Submit(&addJob{n: 1, counter: &counter})

	results := pool.Wait()
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

type slowJob struct{}

func (j *slowJob) Execute(ctx context.Context) int {
	select {
	case <-ctx.Done():
		return -1
	case <-time.After(5 * time.Second):
		return 1
	}
}

func TestPool_ShutdownCancelsWork(t *testing.T) {
	pool := NewPool[int](2)
	pool.Start()

	pool.Submit(&slowJob{})
	pool.Submit(&slowJob{})

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not complete in time")
	}
}
