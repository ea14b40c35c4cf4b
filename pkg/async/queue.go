package async

import (
	"context"
	"sync"
	"sync/atomic"
)

// DispatchMode selects how a SubQueue hands a submitted callback off for
// execution.
type DispatchMode int

const (
	// DispatchThreadPool runs the callback on the queue's ThreadPool as
	// soon as a worker is free.
	DispatchThreadPool DispatchMode = iota
	// DispatchManual queues the callback until the owner calls DispatchOne
	// or DispatchAll — for callers that pump callbacks from their own
	// loop (a UI message loop, a game's per-frame tick).
	DispatchManual
	// DispatchFixedThread runs every callback, in submission order, on one
	// dedicated goroutine owned by the SubQueue.
	DispatchFixedThread
	// DispatchImmediate runs the callback synchronously on the submitting
	// goroutine, before Submit returns.
	DispatchImmediate
)

type queueItem struct {
	token interface{}
	fn    Task
}

// SubQueue is one half of a Queue — either its Work side or its
// Completion side — each independently configurable with its own
// DispatchMode.
type SubQueue struct {
	mode DispatchMode
	pool *ThreadPool

	mu     sync.Mutex
	cond   *sync.Cond
	items  []queueItem
	closed bool

	notifier func()
}

func newSubQueue(mode DispatchMode, pool *ThreadPool) *SubQueue {
	sq := &SubQueue{mode: mode, pool: pool}
	sq.cond = sync.NewCond(&sq.mu)
	if mode == DispatchFixedThread {
		go sq.fixedThreadLoop()
	}
	return sq
}

// SetSubmitNotifier registers fn to run after every successful Submit,
// useful for waking an external event loop that doesn't otherwise know
// work arrived (e.g. DispatchManual consumers).
func (sq *SubQueue) SetSubmitNotifier(fn func()) {
	sq.mu.Lock()
	sq.notifier = fn
	sq.mu.Unlock()
}

// Submit hands fn off according to the queue's DispatchMode. token
// identifies the submission for RemoveIf; callers that don't need
// predicate removal may pass nil.
func (sq *SubQueue) Submit(token interface{}, fn Task) {
	sq.mu.Lock()
	if sq.closed {
		sq.mu.Unlock()
		return
	}

	switch sq.mode {
	case DispatchImmediate:
		sq.mu.Unlock()
		fn(context.Background())
		sq.runNotifier()
		return
	case DispatchThreadPool:
		sq.mu.Unlock()
		sq.pool.Submit(fn)
		sq.runNotifier()
		return
	default: // DispatchManual, DispatchFixedThread
		sq.items = append(sq.items, queueItem{token: token, fn: fn})
		sq.cond.Signal()
		sq.mu.Unlock()
		sq.runNotifier()
	}
}

func (sq *SubQueue) runNotifier() {
	sq.mu.Lock()
	notifier := sq.notifier
	sq.mu.Unlock()
	if notifier != nil {
		notifier()
	}
}

// DispatchOne runs the oldest queued callback, if any, and reports
// whether it found one. Only meaningful for DispatchManual queues:
// DispatchThreadPool and DispatchImmediate never accumulate items, and a
// DispatchFixedThread queue's items are pumped by its own goroutine.
func (sq *SubQueue) DispatchOne() bool {
	sq.mu.Lock()
	if len(sq.items) == 0 {
		sq.mu.Unlock()
		return false
	}
	item := sq.items[0]
	sq.items = sq.items[1:]
	sq.mu.Unlock()
	item.fn(context.Background())
	return true
}

// DispatchAll drains every queued callback and returns how many ran.
func (sq *SubQueue) DispatchAll() int {
	n := 0
	for sq.DispatchOne() {
		n++
	}
	return n
}

// RemoveIf drops every not-yet-run queued item whose token satisfies
// pred, returning how many were removed. It has no effect on
// DispatchThreadPool/DispatchImmediate queues, whose callbacks never sit
// in a backlog: once submitted they're already running or already ran.
func (sq *SubQueue) RemoveIf(pred func(token interface{}) bool) int {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	kept := sq.items[:0]
	removed := 0
	for _, it := range sq.items {
		if pred(it.token) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	sq.items = kept
	return removed
}

// Len reports the number of callbacks currently queued and not yet run.
func (sq *SubQueue) Len() int {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return len(sq.items)
}

func (sq *SubQueue) close() {
	sq.mu.Lock()
	sq.closed = true
	sq.mu.Unlock()
	sq.cond.Broadcast()
}

func (sq *SubQueue) fixedThreadLoop() {
	for {
		sq.mu.Lock()
		for len(sq.items) == 0 && !sq.closed {
			sq.cond.Wait()
		}
		if len(sq.items) == 0 && sq.closed {
			sq.mu.Unlock()
			return
		}
		item := sq.items[0]
		sq.items = sq.items[1:]
		sq.mu.Unlock()
		item.fn(context.Background())
	}
}

// Queue is the two-channel dispatcher every AsyncState submits its work
// and completion callbacks through: a Work side for the provider's
// DoWork, and a Completion side for the caller's Callback. Each side has
// its own independently configurable DispatchMode.
type Queue struct {
	refs int32

	Work       *SubQueue
	Completion *SubQueue
}

// NewQueue builds a Queue whose Work and Completion sides dispatch
// according to workMode and completionMode. pool is required when either
// mode is DispatchThreadPool.
func NewQueue(workMode, completionMode DispatchMode, pool *ThreadPool) *Queue {
	return &Queue{
		refs:       1,
		Work:       newSubQueue(workMode, pool),
		Completion: newSubQueue(completionMode, pool),
	}
}

// NewSharedQueue builds a Queue whose Work and Completion sides share a
// single DispatchMode and pool — the common case for a provider that
// doesn't need its callbacks and its work on different dispatch models.
func NewSharedQueue(mode DispatchMode, pool *ThreadPool) *Queue {
	return NewQueue(mode, mode, pool)
}

func (q *Queue) addRef() *Queue {
	atomic.AddInt32(&q.refs, 1)
	return q
}

// Release drops a reference; at zero references both sides are closed.
func (q *Queue) Release() {
	if atomic.AddInt32(&q.refs, -1) == 0 {
		q.Work.close()
		q.Completion.close()
	}
}

var (
	defaultQueueOnce sync.Once
	defaultQueueVal  *Queue
	defaultPoolVal   *ThreadPool
)

// defaultQueue lazily builds the process-wide Queue used by any Block
// that doesn't supply its own — Work dispatches onto a CPU-sized pool,
// same as the platform default in the source library, while Completion
// runs callbacks in submission order on one dedicated goroutine so a
// caller relying on completion ordering gets it without asking for it.
func defaultQueue() *Queue {
	defaultQueueOnce.Do(func() {
		defaultPoolVal = DefaultThreadPool(nil)
		defaultQueueVal = NewQueue(DispatchThreadPool, DispatchFixedThread, defaultPoolVal)
	})
	return defaultQueueVal
}
