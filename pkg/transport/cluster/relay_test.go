package cluster_test

import (
	"context"
	"testing"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"

	"github.com/fluxorio/asyncnet/pkg/async"
	"github.com/fluxorio/asyncnet/pkg/transport/cluster"
)

func runTestNATSServer(t *testing.T) *natssrv.Server {
	t.Helper()

	opts := &natssrv.Options{Port: -1}
	s, err := natssrv.NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(s.Shutdown)
	return s
}

func TestRelayAwaitReceivesRemotePublish(t *testing.T) {
	srv := runTestNATSServer(t)
	url := srv.ClientURL()
	ctx := context.Background()

	publisher, err := cluster.Dial(ctx, cluster.Config{URL: url, Prefix: "test"})
	if err != nil {
		t.Fatalf("Dial publisher: %v", err)
	}
	t.Cleanup(func() { publisher.Close() })

	watcher, err := cluster.Dial(ctx, cluster.Config{URL: url, Prefix: "test"})
	if err != nil {
		t.Fatalf("Dial watcher: %v", err)
	}
	t.Cleanup(func() { watcher.Close() })

	var block async.Block
	if status := watcher.Await(&block, nil, "shared-download-42"); status != async.StatusPending {
		t.Fatalf("Await = %v, want Pending", status)
	}

	// Give the subscription a moment to register before publishing —
	// NATS subscriptions are asynchronous to establish.
	time.Sleep(50 * time.Millisecond)

	if err := publisher.PublishCompletion(cluster.CompletionRecord{
		Token:   "shared-download-42",
		Status:  async.StatusSuccess,
		Payload: []byte("cached-asset-bytes"),
	}); err != nil {
		t.Fatalf("PublishCompletion: %v", err)
	}

	if st := async.GetStatus(&block, true); st != async.StatusSuccess {
		t.Fatalf("GetStatus = %v, want Success", st)
	}
	buf := make([]byte, 64)
	n, st := async.GetResult(&block, "shared-download-42", buf)
	if st != async.StatusSuccess || string(buf[:n]) != "cached-asset-bytes" {
		t.Fatalf("GetResult = (%q, %v), want cached-asset-bytes", buf[:n], st)
	}
}

func TestRelayAwaitPropagatesFailureStatus(t *testing.T) {
	srv := runTestNATSServer(t)
	url := srv.ClientURL()
	ctx := context.Background()

	publisher, err := cluster.Dial(ctx, cluster.Config{URL: url, Prefix: "test"})
	if err != nil {
		t.Fatalf("Dial publisher: %v", err)
	}
	t.Cleanup(func() { publisher.Close() })

	watcher, err := cluster.Dial(ctx, cluster.Config{URL: url, Prefix: "test"})
	if err != nil {
		t.Fatalf("Dial watcher: %v", err)
	}
	t.Cleanup(func() { watcher.Close() })

	var block async.Block
	watcher.Await(&block, nil, "shared-download-failed")
	time.Sleep(50 * time.Millisecond)

	publisher.PublishCompletion(cluster.CompletionRecord{
		Token:  "shared-download-failed",
		Status: async.StatusUnexpected,
	})

	if st := async.GetStatus(&block, true); st != async.StatusUnexpected {
		t.Fatalf("GetStatus = %v, want Unexpected", st)
	}
}

func TestRelayAwaitCancelUnsubscribes(t *testing.T) {
	srv := runTestNATSServer(t)
	url := srv.ClientURL()
	ctx := context.Background()

	watcher, err := cluster.Dial(ctx, cluster.Config{URL: url, Prefix: "test"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { watcher.Close() })

	var block async.Block
	watcher.Await(&block, nil, "never-arrives")
	async.Cancel(&block)

	if st := async.GetStatus(&block, false); st != async.StatusAborted {
		t.Fatalf("GetStatus = %v, want Aborted after Cancel", st)
	}
}
