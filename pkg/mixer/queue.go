// ABOUTME: Multi-producer single-consumer task queue
// ABOUTME: Producers append under a short lock; the mixer drains all tasks behind a CAS gate
package mixer

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// TaskQueue lets any number of goroutines submit tasks while one consumer
// drains the whole queue at once. Producers only wait while a drain holds
// the gate; the consumer never waits for a producer.
type TaskQueue struct {
	// pushers counts producers inside the append phase; -1 while draining
	pushers atomic.Int32
	count   atomic.Int32
	limit   int32

	mu    sync.Mutex
	tasks []Task
}

// NewTaskQueue creates a queue. limit caps the number of undrained tasks;
// zero means unbounded.
func NewTaskQueue(limit int) *TaskQueue {
	return &TaskQueue{
		limit: int32(limit),
		tasks: make([]Task, 0, 64),
	}
}

// Push appends a task. It returns false when the queue is full and the
// task was dropped. The slot is reserved before appending so concurrent
// producers never exceed the limit.
func (q *TaskQueue) Push(t Task) bool {
	if n := q.count.Add(1); q.limit > 0 && n > q.limit {
		q.count.Add(-1)
		return false
	}

	for {
		n := q.pushers.Load()
		if n >= 0 && q.pushers.CompareAndSwap(n, n+1) {
			break
		}
		runtime.Gosched()
	}

	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	q.pushers.Add(-1)
	return true
}

// DrainAll moves every queued task out and returns them in queue order.
// spare is the slice returned by the previous drain; its storage is reused
// for the next batch. The result is empty when nothing was queued or a
// producer was mid-append, in which case the tasks arrive on a later drain.
// Consumer only.
func (q *TaskQueue) DrainAll(spare []Task) []Task {
	if len(spare) > 0 {
		clear(spare)
		spare = spare[:0]
	}

	if q.count.Load() <= 0 {
		return spare
	}
	if !q.pushers.CompareAndSwap(0, -1) {
		return spare
	}

	q.mu.Lock()
	batch := q.tasks
	q.tasks = spare
	q.count.Add(-int32(len(batch)))
	q.pushers.Store(0)
	q.mu.Unlock()

	return batch
}

// Len returns the approximate number of undrained tasks
func (q *TaskQueue) Len() int {
	n := q.count.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
