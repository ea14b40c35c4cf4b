// Package async implements the caller-owned asynchronous operation
// protocol this module is built around: Block, the reference-counted
// state behind it, the two-channel dispatch Queue its callbacks run
// through, and the four-method Provider contract an HTTP or WebSocket
// transport plugs into to do the actual work.
//
// The protocol is Begin, to attach a Provider and get an operation
// handle; Schedule, to hand it to a Queue's Work side (optionally after a
// delay); Complete, called by the provider once real work finishes;
// GetStatus/GetResultSize/GetResult to observe the outcome; and Cancel to
// abandon it early. Every terminal status is one of the eight Status
// values — the contract never returns a Go error across this boundary,
// and it panics (via failfast) only on programmer errors: a nil block,
// provider or ProviderData, or a second Schedule while the first one's
// DoWork has not started.
package async

import (
	"context"
	"sync"
	"time"

	"github.com/fluxorio/asyncnet/pkg/failfast"
)

// Block is the caller-owned handle for one asynchronous operation. Its
// zero value is valid; pass a pointer to Begin. Unlike the source
// library's fixed-size AsyncBlock, a Go Block needs no platform-specific
// padding — there's no FFI boundary to keep it binary-stable across.
type Block struct {
	// Queue is the Queue the operation's Work and Completion callbacks
	// dispatch through when Begin is given no queue. If both are nil the
	// module's shared default is used (Work on a CPU-sized pool,
	// Completion on one dedicated goroutine).
	Queue *Queue

	// Callback, if set, runs on the Queue's Completion side once the
	// operation reaches a terminal status.
	Callback func(*Block)

	// Context is caller-supplied data retrievable from Callback; the
	// core never inspects it.
	Context interface{}

	mu             sync.Mutex
	st             *state
	terminalSet    bool
	terminalStatus Status
}

// Begin attaches provider to block and returns StatusPending on success.
// It returns StatusInvalidArg if block already has an operation attached
// that hasn't been reaped yet (by a successful GetResult or a Cancel). A
// nil block or provider is a programmer error and panics via failfast,
// not a status code — there's no way to report it through a Block that
// doesn't exist.
//
// queue may be nil to use block.Queue, or the module's shared default
// queue if that is nil too. token and function are identity tags for the
// logical call: GetResult rejects a token that differs from this one and
// names function in the diagnostic it logs; Token and Function return
// them. The core does nothing else with them.
func Begin(block *Block, provider Provider, queue *Queue, token, function interface{}) Status {
	failfast.NotNil(block, "block")
	failfast.NotNil(provider, "provider")

	block.mu.Lock()
	defer block.mu.Unlock()
	if block.st != nil {
		return StatusInvalidArg
	}

	q := queue
	if q == nil {
		q = block.Queue
	}
	if q == nil {
		q = defaultQueue()
	}
	st := newState(provider, q, token, function)
	st.data.Block = block

	block.st = st
	block.terminalSet = false
	return StatusPending
}

// Schedule hands the operation's DoWork to its Queue's Work side, after
// delay (zero for immediate dispatch). It returns StatusInvalidArg if
// block has no attached operation, and panics via failfast if an earlier
// Schedule for this operation has not yet had its DoWork started — a
// caller bug, not a recoverable contract violation.
func Schedule(block *Block, delay time.Duration) Status {
	failfast.NotNil(block, "block")
	block.mu.Lock()
	st := block.st
	block.mu.Unlock()
	if st == nil {
		return StatusInvalidArg
	}

	st.markWorkScheduled()
	st.addRef()

	doWork := Task(func(ctx context.Context) {
		defer st.release()
		runProviderDoWork(block, st)
	})

	if delay > 0 {
		timer := time.AfterFunc(delay, func() {
			st.queue.Work.Submit(st, doWork)
		})
		st.markTimerScheduled(timer)
	} else {
		st.queue.Work.Submit(st, doWork)
	}
	return StatusPending
}

func runProviderDoWork(block *Block, st *state) {
	st.clearWorkScheduled()

	if st.isCanceled() {
		completeBlock(block, st, 0, StatusAborted)
		return
	}

	status := st.provider.DoWork(&st.data)
	if status == StatusPending {
		// Provider took ownership; it (or its background goroutine) will
		// call Complete asynchronously.
		return
	}
	if status == StatusSuccess {
		// A provider must route every successful completion through
		// Complete, so the result size gets attached. Returning Success
		// directly from DoWork is a contract violation.
		status = StatusUnexpected
	}
	completeBlock(block, st, 0, status)
}

// Complete is called by a Provider, directly from DoWork or from a
// goroutine it spawned, to report the operation's terminal outcome.
// StatusPending is rewritten to StatusUnexpected: a provider that isn't
// ready to complete should simply not call Complete yet. The first call
// wins; any later call (from a provider that double-completes, or that
// races with Cancel) is silently dropped.
func Complete(data *ProviderData, resultSize uint64, status Status) Status {
	failfast.NotNil(data, "data")
	st := data.state
	if st == nil {
		return StatusInvalidArg
	}
	if status == StatusPending {
		status = StatusUnexpected
	}
	completeBlock(data.Block, st, resultSize, status)
	return StatusSuccess
}

func completeBlock(block *Block, st *state, resultSize uint64, status Status) {
	block.mu.Lock()
	if block.terminalSet {
		block.mu.Unlock()
		return
	}
	block.terminalSet = true
	block.terminalStatus = status
	st.resultSize = resultSize
	block.mu.Unlock()

	st.signalCompletion()

	if block.Callback != nil {
		cb := block.Callback
		st.addRef()
		st.queue.Completion.Submit(st, Task(func(ctx context.Context) {
			defer st.release()
			cb(block)
		}))
	}
}

// GetStatus returns the operation's current status. If wait is true and
// the operation hasn't reached a terminal status yet, GetStatus blocks
// until it does. The terminal status stays readable after GetResult or
// Cancel has reaped the operation; a Block that was never begun reports
// StatusInvalidArg.
func GetStatus(block *Block, wait bool) Status {
	failfast.NotNil(block, "block")
	block.mu.Lock()
	if block.terminalSet {
		s := block.terminalStatus
		block.mu.Unlock()
		return s
	}
	st := block.st
	if st == nil {
		block.mu.Unlock()
		return StatusInvalidArg
	}
	block.mu.Unlock()

	if !wait {
		return StatusPending
	}
	<-st.done
	block.mu.Lock()
	s := block.terminalStatus
	block.mu.Unlock()
	return s
}

// GetResultSize returns the size a successful result reported via
// Complete. It returns the terminal status itself if that status isn't
// StatusSuccess, and StatusPending if the operation hasn't completed.
func GetResultSize(block *Block) (uint64, Status) {
	failfast.NotNil(block, "block")
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.st == nil {
		return 0, StatusInvalidArg
	}
	if !block.terminalSet {
		return 0, StatusPending
	}
	if block.terminalStatus != StatusSuccess {
		return 0, block.terminalStatus
	}
	return block.st.resultSize, StatusSuccess
}

// GetResult copies the completed result into buffer via the provider's
// GetResult method and reports how many bytes were written. token must
// match the token passed to Begin; a mismatch returns StatusInvalidArg
// without touching the provider or reaping the state, since it means the
// caller is holding the wrong handle for this operation, not that the
// operation itself failed.
//
// The operation's state is only detached from block (reaped) on the path
// that actually returns StatusSuccess here. Every other outcome —
// including StatusNotSufficientBuffer — leaves the state attached so a
// caller that resizes its buffer can call GetResult again and still find
// the result waiting. A version of this code that instead detached the
// state before checking the buffer size would leave a block with no
// state to retry against; that bug, and this fix, are both direct
// consequences of how the source implementation's GetAsyncResult is
// written.
func GetResult(block *Block, token interface{}, buffer []byte) (int, Status) {
	failfast.NotNil(block, "block")
	block.mu.Lock()
	st := block.st
	if st == nil {
		block.mu.Unlock()
		return 0, StatusInvalidArg
	}
	if !block.terminalSet {
		block.mu.Unlock()
		return 0, StatusPending
	}
	term := block.terminalStatus
	block.mu.Unlock()

	if st.token != token {
		diagLogger.Warnf("async: GetResult token mismatch; this AsyncBlock was initiated by %v", st.function)
		return 0, StatusInvalidArg
	}

	if term != StatusSuccess {
		return 0, term
	}

	n, status := st.provider.GetResult(&st.data, buffer)
	if status == StatusSuccess {
		block.mu.Lock()
		block.st = nil
		block.mu.Unlock()
		st.provider.Cleanup(&st.data)
		st.release()
	}
	return n, status
}

// Cancel marks the operation canceled, calls the provider's Cancel
// method as a best-effort stop signal, and — unless the operation had
// already completed — forces its terminal status to StatusAborted. It
// then reaps the state (calling Cleanup) unconditionally: a caller that
// cancels is declaring it no longer wants the result, whether or not one
// was ready.
//
// Cancel on a Block with no attached operation, or one already reaped,
// returns StatusInvalidArg.
func Cancel(block *Block) Status {
	failfast.NotNil(block, "block")
	block.mu.Lock()
	st := block.st
	if st == nil {
		block.mu.Unlock()
		return StatusInvalidArg
	}
	alreadyTerminal := block.terminalSet
	block.mu.Unlock()

	st.mu.Lock()
	st.canceled = true
	timer := st.timer
	timerWasScheduled := st.timerScheduled
	st.mu.Unlock()

	if timer != nil && timerWasScheduled && timer.Stop() {
		// The timer's AfterFunc will never run now, so its Submit to the
		// pool never happens either. Release the ref Schedule took on its
		// behalf here instead of waiting out the rest of the delay.
		st.release()
	}

	st.provider.Cancel(&st.data)

	if !alreadyTerminal {
		completeBlock(block, st, 0, StatusAborted)
	}

	block.mu.Lock()
	block.st = nil
	block.mu.Unlock()

	st.provider.Cleanup(&st.data)
	st.release()
	return StatusSuccess
}

// Run is a convenience over Begin and Schedule for a one-shot operation
// that doesn't need a named Provider type: fn runs exactly where DoWork
// would, and anything it needs to do asynchronously it does the same way
// a full Provider's DoWork would — spawn a goroutine and call Complete.
// Mirrors the source library's RunAsync helper.
func Run(block *Block, queue *Queue, fn func(data *ProviderData) Status) Status {
	status := Begin(block, &runProvider{fn: fn}, queue, nil, nil)
	if status != StatusPending {
		return status
	}
	return Schedule(block, 0)
}

type runProvider struct {
	fn func(data *ProviderData) Status
}

func (p *runProvider) DoWork(data *ProviderData) Status { return p.fn(data) }
func (p *runProvider) GetResult(data *ProviderData, buf []byte) (int, Status) {
	return 0, StatusSuccess
}
func (p *runProvider) Cancel(data *ProviderData)  {}
func (p *runProvider) Cleanup(data *ProviderData) {}

// Token returns the token value passed to Begin, or nil if the Block has
// no attached operation (never begun, or already reaped).
func Token(block *Block) interface{} {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.st == nil {
		return nil
	}
	return block.st.token
}

// Function returns the function value passed to Begin, or nil if the
// Block has no attached operation.
func Function(block *Block) interface{} {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.st == nil {
		return nil
	}
	return block.st.function
}
