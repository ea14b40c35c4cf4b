package async

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/asyncnet/pkg/failfast"
	"github.com/fluxorio/asyncnet/pkg/logging"
)

// diagLogger sinks core-level diagnostics that aren't programmer errors
// (failfast panics cover those) but are still worth surfacing — a token
// mismatch on GetResult, for instance. Defaults to a no-op; SetLogger
// swaps it for a real Logger.
var diagLogger logging.Logger = logging.NopLogger()

// SetLogger sets the Logger pkg/async reports core-level diagnostics
// through. Passing nil restores the no-op default.
func SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.NopLogger()
	}
	diagLogger = l
}

// state is the reference-counted heap object backing one Block's
// operation. A Block can only ever reach its state through block.st, but
// a scheduled work callback, a pending timer, or an in-flight completion
// callback each hold their own reference so the state outlives a Block
// that's been reaped out from under them.
type state struct {
	refs int32 // atomic

	provider Provider
	data     ProviderData

	queue *Queue

	mu             sync.Mutex
	canceled       bool
	workScheduled  bool
	timerScheduled bool

	timer *time.Timer

	done     chan struct{}
	doneOnce sync.Once

	token    interface{}
	function interface{}

	resultSize uint64
}

func newState(provider Provider, queue *Queue, token, function interface{}) *state {
	s := &state{
		refs:     1,
		provider: provider,
		queue:    queue.addRef(),
		token:    token,
		function: function,
		done:     make(chan struct{}),
	}
	s.data = ProviderData{state: s}
	return s
}

func (s *state) addRef() *state {
	atomic.AddInt32(&s.refs, 1)
	return s
}

func (s *state) release() {
	if atomic.AddInt32(&s.refs, -1) == 0 {
		s.destroy()
	}
}

// destroy tears down everything the state owned: the delay timer, if any,
// and the queue reference taken at construction. Matches the source
// library's AsyncState destructor.
func (s *state) destroy() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.queue.Release()
}

func (s *state) signalCompletion() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *state) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// markWorkScheduled enforces the single-fire rule: only one DoWork
// dispatch may be outstanding per state. Calling Schedule again before
// the worker has picked up the previous dispatch (see clearWorkScheduled)
// is a programmer error, not a recoverable status.
func (s *state) markWorkScheduled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	failfast.If(!s.workScheduled, "async: Schedule called twice for the same operation")
	s.workScheduled = true
}

func (s *state) markTimerScheduled(t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerScheduled = true
	s.timer = t
}

// clearWorkScheduled marks the worker as having picked up the scheduled
// task: workScheduled tracks "a DoWork dispatch is outstanding," not "one
// has ever happened," so the worker clears it the moment it starts.
func (s *state) clearWorkScheduled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workScheduled = false
}
