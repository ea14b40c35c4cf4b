package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSubQueueManualDispatchOrder(t *testing.T) {
	sq := newSubQueue(DispatchManual, nil)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		sq.Submit(i, func(ctx context.Context) { order = append(order, i) })
	}
	if n := sq.DispatchAll(); n != 5 {
		t.Fatalf("DispatchAll = %d, want 5", n)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d (manual dispatch must be FIFO)", i, v, i)
		}
	}
}

func TestSubQueueRemoveIf(t *testing.T) {
	sq := newSubQueue(DispatchManual, nil)
	for i := 0; i < 10; i++ {
		sq.Submit(i, func(ctx context.Context) {})
	}
	removed := sq.RemoveIf(func(token interface{}) bool {
		return token.(int)%2 == 0
	})
	if removed != 5 {
		t.Fatalf("RemoveIf removed %d, want 5", removed)
	}
	if got := sq.Len(); got != 5 {
		t.Fatalf("Len after RemoveIf = %d, want 5", got)
	}
}

func TestSubQueueImmediateRunsSynchronously(t *testing.T) {
	sq := newSubQueue(DispatchImmediate, nil)
	ran := false
	sq.Submit(nil, func(ctx context.Context) { ran = true })
	if !ran {
		t.Fatalf("DispatchImmediate did not run the callback before Submit returned")
	}
}

func TestSubQueueFixedThreadRunsInOrder(t *testing.T) {
	sq := newSubQueue(DispatchFixedThread, nil)
	defer sq.close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		i := i
		sq.Submit(i, func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("fixed-thread order[%d] = %d, want %d", i, v, i)
		}
	}
}

// TestSubQueueConcurrentPushPop replicates the shape of the source
// library's lockless-list stress test: many producers pushing while many
// consumers pump the queue, verified by a slot array that catches a value
// delivered more than once or not at all.
func TestSubQueueConcurrentPushPop(t *testing.T) {
	const (
		producers     = 30
		perProducer   = 50000
		consumers     = 10
		totalExpected = producers * perProducer
	)

	sq := newSubQueue(DispatchManual, nil)
	seen := make([]int32, totalExpected)

	var producerWG sync.WaitGroup
	producerWG.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer producerWG.Done()
			base := p * perProducer
			for i := 0; i < perProducer; i++ {
				idx := base + i
				sq.Submit(idx, func(ctx context.Context) {
					atomic.AddInt32(&seen[idx], 1)
				})
			}
		}()
	}

	var processed int64
	stop := make(chan struct{})
	var consumerWG sync.WaitGroup
	consumerWG.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumerWG.Done()
			for {
				if sq.DispatchOne() {
					atomic.AddInt64(&processed, 1)
					continue
				}
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}

	producerWG.Wait()
	// Drain whatever is left after every producer has finished submitting.
	for sq.Len() > 0 {
		sq.DispatchOne()
	}
	close(stop)
	consumerWG.Wait()

	// Any items dispatched by the consumer goroutines between the close(stop)
	// race and their next loop check are still accounted for because
	// DispatchOne only returns after running the callback.
	for i := range seen {
		if atomic.LoadInt32(&seen[i]) != 1 {
			t.Fatalf("slot %d delivered %d times, want exactly 1", i, seen[i])
		}
	}
}

func TestQueueReleaseClosesSubQueues(t *testing.T) {
	pool := NewThreadPool(2, nil)
	defer pool.Terminate()

	q := NewSharedQueue(DispatchManual, pool)
	q.Release()

	submitted := false
	q.Work.Submit(nil, func(ctx context.Context) { submitted = true })
	q.Work.DispatchAll()
	if submitted {
		t.Fatalf("Submit ran a task on a queue whose last reference was released")
	}
}
