package async

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/fluxorio/asyncnet/pkg/logging"
)

// Task is the unit of work a ThreadPool runs. The context it receives
// carries the handle ActionComplete needs; a task that doesn't care about
// the escape hatch can ignore ctx entirely.
type Task func(ctx context.Context)

type activeCallKeyType struct{}

var activeCallKey activeCallKeyType

type activeCall struct {
	pool *ThreadPool
	done int32 // atomic, CAS-guarded so it fires at most once
}

func (c *activeCall) complete() {
	if atomic.CompareAndSwapInt32(&c.done, 0, 1) {
		atomic.AddInt32(&c.pool.activeCalls, -1)
	}
}

// ActionComplete lets a task running on pool declare its accounted-for
// work done before it actually returns to the worker loop, mirroring the
// threadpool's escape hatch for callbacks that keep the goroutine busy
// past the point the pool should count it as active (e.g. handing off to
// a socket read loop). ctx must be the context the task itself received.
// Calling it more than once for the same task, or with a context that
// didn't come from a Task invocation on pool, is a no-op.
func ActionComplete(ctx context.Context) {
	if call, ok := ctx.Value(activeCallKey).(*activeCall); ok {
		call.complete()
	}
}

// ThreadPool is the fixed worker-goroutine pool DispatchThreadPool queues
// schedule work onto. It mirrors the platform thread pool the provider
// contract was written against: a bounded set of workers pulling off one
// task channel, refcounted so a callback that drops the pool's last
// reference mid-invocation doesn't pull the rug out from under itself.
type ThreadPool struct {
	tasks       chan Task
	wg          sync.WaitGroup
	refs        int32
	activeCalls int32
	logger      logging.Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewThreadPool starts a pool with the given number of workers (minimum
// 1). A nil logger discards worker panics silently rather than crashing
// the pool.
func NewThreadPool(workers int, logger logging.Logger) *ThreadPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	p := &ThreadPool{
		tasks:   make(chan Task),
		refs:    1,
		logger:  logger,
		stopped: make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// DefaultThreadPool returns a pool sized to the host's CPU count, the same
// default the source library's platform pools use.
func DefaultThreadPool(logger logging.Logger) *ThreadPool {
	return NewThreadPool(runtime.NumCPU(), logger)
}

func (p *ThreadPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runTask(task)
	}
}

func (p *ThreadPool) runTask(task Task) {
	atomic.AddInt32(&p.activeCalls, 1)
	call := &activeCall{pool: p}
	ctx := context.WithValue(context.Background(), activeCallKey, call)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("async: pool worker task panicked: %v", r)
		}
		call.complete()
	}()
	task(ctx)
}

// Submit enqueues task to run on the next free worker. Submit blocks if
// every worker is busy; callers that need backpressure should size their
// own queue in front of the pool. A DispatchThreadPool SubQueue calls
// Submit directly, with no queue of its own in front.
func (p *ThreadPool) Submit(task Task) {
	p.tasks <- task
}

// ActiveCalls reports how many tasks are currently running (not counting
// those that have called ActionComplete).
func (p *ThreadPool) ActiveCalls() int {
	return int(atomic.LoadInt32(&p.activeCalls))
}

// AddRef increments the pool's reference count and returns it, so callers
// can hold shared ownership the way AsyncQueue does.
func (p *ThreadPool) AddRef() *ThreadPool {
	atomic.AddInt32(&p.refs, 1)
	return p
}

// Release drops a reference; at zero references the pool terminates.
func (p *ThreadPool) Release() {
	if atomic.AddInt32(&p.refs, -1) == 0 {
		p.Terminate()
	}
}

// Terminate stops accepting new tasks and signals workers to exit once
// their current task returns and the channel drains. It does not block:
// the source library's STL thread pool detaches rather than joins when
// Terminate is called from one of its own worker threads, to avoid a
// self-join deadlock; a Go goroutine has no equivalent of detach, so
// Terminate returns immediately for every caller and the actual wait is
// opt-in via Stopped, which a worker must never call on itself.
func (p *ThreadPool) Terminate() {
	p.stopOnce.Do(func() {
		close(p.tasks)
		go func() {
			p.wg.Wait()
			close(p.stopped)
		}()
	})
}

// Stopped returns a channel that closes once every worker has exited
// after Terminate. Waiting on it from inside one of the pool's own
// worker goroutines deadlocks; it exists for external callers doing a
// graceful shutdown.
func (p *ThreadPool) Stopped() <-chan struct{} {
	return p.stopped
}
