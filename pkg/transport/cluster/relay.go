// Package cluster bridges a single process's completions out to the rest
// of a console fleet and back: when one process's provider finishes work
// another process is waiting on, the relay publishes a small completion
// record over NATS and the other process's relay feeds it into a local
// async.Block as though a local Provider had completed it, adapted from
// a NATS-backed cluster event bus's inbound dispatch pattern.
package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/asyncnet/pkg/async"
	"github.com/fluxorio/asyncnet/pkg/codec"
	"github.com/fluxorio/asyncnet/pkg/concurrency"
	"github.com/fluxorio/asyncnet/pkg/logging"
	"github.com/fluxorio/asyncnet/pkg/telemetry/metrics"
)

// Config configures a Relay's NATS connection and inbound dispatch.
type Config struct {
	// URL is the NATS server URL. Defaults to nats.DefaultURL.
	URL string

	// Prefix is prepended to every subject this relay uses. Defaults to
	// "asyncnet".
	Prefix string

	// Name is an optional NATS connection name, useful for identifying
	// which console/process a subscription belongs to in server-side
	// connection listings.
	Name string

	// ExecutorConfig bounds how many inbound completion records this
	// relay processes concurrently. An unset config here gets a smaller
	// pool sized for a single console process rather than a server
	// handling many tenants.
	ExecutorConfig concurrency.ExecutorConfig

	Logger logging.Logger
}

// CompletionRecord is the wire payload a relay publishes once a provider
// it's watching over reaches a terminal status, and what a remote relay
// decodes on the receiving end.
type CompletionRecord struct {
	Token   string       `json:"token"`
	Status  async.Status `json:"status"`
	Payload []byte       `json:"payload,omitempty"`
}

// Relay is one process's connection to the completion bus. A single Relay
// can both publish completions local providers produce and watch for
// completions other processes publish.
type Relay struct {
	nc       *nats.Conn
	prefix   string
	executor concurrency.Executor
	logger   logging.Logger
	metrics  *metrics.Metrics
}

// Dial connects to the NATS server described by cfg and starts the
// bounded executor inbound completion records are dispatched through.
func Dial(ctx context.Context, cfg Config) (*Relay, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "asyncnet"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	execCfg := cfg.ExecutorConfig
	if execCfg.Workers == 0 && execCfg.QueueSize == 0 {
		execCfg = concurrency.DefaultExecutorConfig()
		execCfg.Workers = 4
		execCfg.QueueSize = 256
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cluster: connect %s: %w", url, err)
	}

	return &Relay{
		nc:       nc,
		prefix:   prefix,
		executor: concurrency.NewExecutor(ctx, execCfg),
		logger:   logger,
		metrics:  metrics.GetMetrics(),
	}, nil
}

func (r *Relay) subject(token string) string { return r.prefix + ".complete." + token }

// PublishCompletion broadcasts a provider's terminal outcome under token
// so another process's relay, watching the same token, can observe it.
func (r *Relay) PublishCompletion(rec CompletionRecord) error {
	data, err := codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("cluster: encode completion record: %w", err)
	}
	r.metrics.RecordClusterPublish(rec.Token)
	return r.nc.Publish(r.subject(rec.Token), data)
}

// Await begins and schedules block against an async.Provider that
// completes once a CompletionRecord for token arrives from any process's
// PublishCompletion — a purely inbound operation that never issues local
// work of its own.
func (r *Relay) Await(block *async.Block, queue *async.Queue, token string) async.Status {
	status := async.Begin(block, &completionProvider{relay: r, token: token}, queue, token, nil)
	if status != async.StatusPending {
		return status
	}
	return async.Schedule(block, 0)
}

// Close shuts down the relay's executor and drains the NATS connection.
func (r *Relay) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.executor.Shutdown(ctx)
	_ = r.nc.Drain()
	r.nc.Close()
	return nil
}

type completionProvider struct {
	relay *Relay
	token string

	mu      sync.Mutex
	sub     *nats.Subscription
	payload []byte
}

func (p *completionProvider) DoWork(data *async.ProviderData) async.Status {
	sub, err := p.relay.nc.Subscribe(p.relay.subject(p.token), func(msg *nats.Msg) {
		task := concurrency.NewNamedTask("cluster-relay."+p.token, func(ctx context.Context) error {
			var rec CompletionRecord
			if err := codec.Decode(msg.Data, &rec); err != nil {
				return err
			}
			p.mu.Lock()
			p.payload = rec.Payload
			p.mu.Unlock()
			p.relay.metrics.RecordClusterReceive(rec.Token)
			async.Complete(data, uint64(len(rec.Payload)), rec.Status)
			return nil
		})
		if err := p.relay.executor.Submit(task); err != nil {
			p.relay.logger.Warnf("cluster relay overloaded for token %s: %v", p.token, err)
		}
	})
	if err != nil {
		return async.StatusUnexpected
	}

	p.mu.Lock()
	p.sub = sub
	p.mu.Unlock()
	return async.StatusPending
}

func (p *completionProvider) GetResult(data *async.ProviderData, buffer []byte) (int, async.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(buffer) < len(p.payload) {
		return 0, async.StatusNotSufficientBuffer
	}
	return copy(buffer, p.payload), async.StatusSuccess
}

func (p *completionProvider) Cancel(data *async.ProviderData) {
	p.mu.Lock()
	sub := p.sub
	p.mu.Unlock()
	if sub != nil {
		_ = sub.Unsubscribe()
	}
}

func (p *completionProvider) Cleanup(data *async.ProviderData) {
	p.mu.Lock()
	if p.sub != nil {
		_ = p.sub.Unsubscribe()
		p.sub = nil
	}
	p.payload = nil
	p.mu.Unlock()
}
