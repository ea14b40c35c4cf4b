package async

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestThreadPoolSubmitRunsTask(t *testing.T) {
	pool := NewThreadPool(2, nil)
	defer pool.Terminate()

	done := make(chan struct{})
	pool.Submit(func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted task never ran")
	}
}

func TestThreadPoolActiveCallsTracksConcurrency(t *testing.T) {
	pool := NewThreadPool(4, nil)
	defer pool.Terminate()

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		pool.Submit(func(ctx context.Context) {
			wg.Done()
			<-release
		})
	}
	wg.Wait()

	if got := pool.ActiveCalls(); got != 3 {
		t.Fatalf("ActiveCalls = %d, want 3", got)
	}
	close(release)
}

func TestThreadPoolActionCompleteDecrementsEarly(t *testing.T) {
	pool := NewThreadPool(1, nil)
	defer pool.Terminate()

	entered := make(chan struct{})
	release := make(chan struct{})
	pool.Submit(func(ctx context.Context) {
		close(entered)
		ActionComplete(ctx)
		<-release
	})

	<-entered
	// Give the ActionComplete call a moment to land relative to the check.
	deadline := time.After(time.Second)
	for pool.ActiveCalls() != 0 {
		select {
		case <-deadline:
			t.Fatal("ActionComplete never decremented ActiveCalls")
		default:
		}
	}
	close(release)
}

func TestThreadPoolActionCompleteIsIdempotent(t *testing.T) {
	pool := NewThreadPool(1, nil)
	defer pool.Terminate()

	done := make(chan struct{})
	pool.Submit(func(ctx context.Context) {
		ActionComplete(ctx)
		ActionComplete(ctx) // must not double-decrement or panic
		close(done)
	})
	<-done
}

func TestThreadPoolTerminateDoesNotBlock(t *testing.T) {
	pool := NewThreadPool(2, nil)
	finished := make(chan struct{})
	go func() {
		pool.Terminate()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Terminate blocked")
	}

	select {
	case <-pool.Stopped():
	case <-time.After(time.Second):
		t.Fatal("pool never reported Stopped after Terminate")
	}
}

func TestThreadPoolAddRefRelease(t *testing.T) {
	pool := NewThreadPool(1, nil)
	pool.AddRef()
	pool.Release()
	select {
	case <-pool.Stopped():
		t.Fatal("pool terminated while a reference was still outstanding")
	case <-time.After(50 * time.Millisecond):
	}
	pool.Release()
	select {
	case <-pool.Stopped():
	case <-time.After(time.Second):
		t.Fatal("pool never terminated once its last reference was released")
	}
}
