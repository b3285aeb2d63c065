package threading

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TaskHandle lets a submitter observe completion of one unit of work.
type TaskHandle struct {
	done chan struct{}
}

// Done is closed once the task has finished executing (or panicked).
func (h *TaskHandle) Done() <-chan struct{} { return h.done }

// WorkerPool executes short-lived units of work on a fixed set of workers.
// Submit is safe from any thread. A panic escaping a task is logged and
// contained; it never takes the worker down.
type WorkerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []poolTask
	running bool

	wg          sync.WaitGroup
	workerCount int

	activeTasks   atomic.Int64
	tasksFinished atomic.Uint64
	totalTaskTime atomicFloat64 // seconds, CAS-accumulated

	log *zap.Logger
}

type poolTask struct {
	fn     func()
	handle *TaskHandle
}

// NewWorkerPool starts workers goroutines immediately. A non-positive count
// falls back to GOMAXPROCS.
func NewWorkerPool(workers int, log *zap.Logger) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		workerCount: workers,
		running:     true,
		log:         log,
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.workerLoop(i)
	}
	return p
}

// Submit enqueues one unit of work and wakes an idle worker. The returned
// handle reports completion. Work submitted after Shutdown is dropped with
// its handle already closed.
func (p *WorkerPool) Submit(fn func()) *TaskHandle {
	h := &TaskHandle{done: make(chan struct{})}
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		close(h.done)
		return h
	}
	p.queue = append(p.queue, poolTask{fn: fn, handle: h})
	p.mu.Unlock()
	p.cond.Signal()
	return h
}

func (p *WorkerPool) workerLoop(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.running && len(p.queue) == 0 {
			p.cond.Wait()
		}
		if !p.running && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.runTask(id, task)
	}
}

func (p *WorkerPool) runTask(worker int, task poolTask) {
	start := time.Now()
	p.activeTasks.Add(1)
	defer func() {
		p.activeTasks.Add(-1)
		p.totalTaskTime.Add(time.Since(start).Seconds())
		p.tasksFinished.Add(1)
		close(task.handle.done)
	}()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic in pool task",
				zap.Int("worker", worker),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	task.fn()
}

// Shutdown stops accepting work, wakes all workers and joins them. In-flight
// tasks finish; queued tasks drain before the workers exit. Idempotent.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *WorkerPool) WorkerCount() int { return p.workerCount }

// QueuedTasks is the number of submitted units not yet picked up by a worker.
func (p *WorkerPool) QueuedTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ActiveTasks is the number of units currently executing.
func (p *WorkerPool) ActiveTasks() int {
	return int(p.activeTasks.Load())
}

// AverageTaskTime is total execution time over finished task count, zero when
// nothing has run yet.
func (p *WorkerPool) AverageTaskTime() time.Duration {
	n := p.tasksFinished.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(p.totalTaskTime.Load() / float64(n) * float64(time.Second))
}
