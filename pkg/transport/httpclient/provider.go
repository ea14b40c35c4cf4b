// Package httpclient implements async.Provider over a single HTTP request,
// with optional client-side bearer-token minting, rate limiting, and
// circuit breaking layered on top — three concerns more commonly enforced
// server-side, inverted here to run on the calling end instead.
package httpclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxorio/asyncnet/pkg/async"
	"github.com/fluxorio/asyncnet/pkg/codec"
	"github.com/fluxorio/asyncnet/pkg/logging"
	"github.com/fluxorio/asyncnet/pkg/telemetry/metrics"
)

// Config selects a Provider's transport and optional guardrails. Doer is
// required; everything else is opt-in.
type Config struct {
	Doer Doer

	// Auth, if non-nil, mints a bearer token attached to every request's
	// Authorization header.
	Auth *AuthConfig

	// RateLimitPerSecond caps how many requests this provider will start
	// per second. Zero disables rate limiting.
	RateLimitPerSecond int

	// BreakerThreshold is the number of consecutive failures that opens
	// the circuit. Zero disables the breaker.
	BreakerThreshold int

	// BreakerResetTimeout is how long the breaker stays open before
	// allowing a probe request through. Defaults to 30s if the breaker
	// is enabled and this is zero.
	BreakerResetTimeout time.Duration

	Logger logging.Logger
}

// Provider issues one HTTP call per async.Block it's attached to via
// async.Begin. A single Provider instance is meant to be reused across
// many Begin calls — that's what lets its rate limiter and circuit
// breaker track state across requests.
type Provider struct {
	cfg     Config
	logger  logging.Logger
	minter  *tokenMinter
	limiter *rateLimiter
	breaker *circuitBreaker
	metrics *metrics.Metrics
}

// New builds a Provider from cfg. It panics if cfg.Doer is nil — that's a
// caller wiring bug, not a runtime condition.
func New(cfg Config) *Provider {
	if cfg.Doer == nil {
		panic("httpclient: Config.Doer is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	p := &Provider{cfg: cfg, logger: logger, metrics: metrics.GetMetrics()}
	if cfg.Auth != nil {
		p.minter = newTokenMinter(*cfg.Auth)
	}
	if cfg.RateLimitPerSecond > 0 {
		p.limiter = newRateLimiter(cfg.RateLimitPerSecond)
	}
	if cfg.BreakerThreshold > 0 {
		resetTimeout := cfg.BreakerResetTimeout
		if resetTimeout <= 0 {
			resetTimeout = 30 * time.Second
		}
		p.breaker = newCircuitBreaker(cfg.BreakerThreshold, resetTimeout)
	}
	return p
}

// callContext carries the per-call state a Provider needs between DoWork,
// GetResult, Cancel, and Cleanup — it's what ProviderData.Context holds.
type callContext struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	body   []byte
}

func newCallContext() *callContext { return &callContext{} }

// Do is the convenience entry point: it begins and schedules req against
// block using p as the provider, returning once DoWork has been
// dispatched. Callers observe completion through block's Callback or by
// polling async.GetStatus, exactly as with any other Provider.
func (p *Provider) Do(block *async.Block, queue *async.Queue, req Request) async.Status {
	status := async.Begin(block, &boundRequest{provider: p, req: req}, queue, req.Method, req.URL)
	if status != async.StatusPending {
		return status
	}
	return async.Schedule(block, 0)
}

// boundRequest adapts one Request into an async.Provider, so each
// async.Block gets its own isolated callContext while sharing p's rate
// limiter, breaker, and token minter.
type boundRequest struct {
	provider *Provider
	req      Request
	ctx      *callContext
}

func (b *boundRequest) DoWork(data *async.ProviderData) async.Status {
	p := b.provider
	b.ctx = newCallContext()
	data.Context = b.ctx

	if p.limiter != nil && !p.limiter.allow() {
		return async.StatusUnexpected
	}
	if p.breaker != nil && !p.breaker.allow() {
		return async.StatusUnexpected
	}

	req := b.req
	if p.minter != nil {
		token, err := p.minter.Token()
		if err != nil {
			p.logger.Errorf("httpclient: mint token: %v", err)
			return async.StatusUnexpected
		}
		if req.Headers == nil {
			req.Headers = make(map[string]string, 1)
		} else {
			headers := make(map[string]string, len(req.Headers)+1)
			for k, v := range req.Headers {
				headers[k] = v
			}
			req.Headers = headers
		}
		req.Headers["Authorization"] = "Bearer " + token
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.ctx.mu.Lock()
	b.ctx.cancel = cancel
	b.ctx.mu.Unlock()

	go func() {
		start := time.Now()
		resp, err := p.cfg.Doer.Do(ctx, req)
		elapsed := time.Since(start)

		if err != nil {
			if p.breaker != nil {
				p.breaker.failure()
			}
			p.metrics.RecordHTTPRequest(req.Method, "error", elapsed, len(req.Body), 0)
			async.Complete(data, 0, async.StatusUnexpected)
			return
		}
		if p.breaker != nil {
			p.breaker.success()
		}
		p.metrics.RecordHTTPRequest(req.Method, fmt.Sprintf("%d", resp.StatusCode), elapsed, len(req.Body), len(resp.Body))

		b.ctx.mu.Lock()
		b.ctx.body = resp.Body
		b.ctx.mu.Unlock()

		status := async.StatusSuccess
		if resp.StatusCode >= 400 {
			status = async.StatusUnexpected
		}
		async.Complete(data, uint64(len(resp.Body)), status)
	}()

	return async.StatusPending
}

func (b *boundRequest) GetResult(data *async.ProviderData, buffer []byte) (int, async.Status) {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	if len(buffer) < len(b.ctx.body) {
		return 0, async.StatusNotSufficientBuffer
	}
	n := copy(buffer, b.ctx.body)
	return n, async.StatusSuccess
}

func (b *boundRequest) Cancel(data *async.ProviderData) {
	if b.ctx == nil {
		return
	}
	b.ctx.mu.Lock()
	cancel := b.ctx.cancel
	b.ctx.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (b *boundRequest) Cleanup(data *async.ProviderData) {
	if b.ctx == nil {
		return
	}
	b.ctx.mu.Lock()
	b.ctx.body = nil
	b.ctx.mu.Unlock()
}

// DecodeJSON decodes a completed result's body (already copied out via
// async.GetResult) into v, using the module's shared codec.
func DecodeJSON(buffer []byte, v interface{}) error {
	if err := codec.Decode(buffer, v); err != nil {
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}

// EncodeJSON builds a Request body from v using the module's shared codec.
func EncodeJSON(v interface{}) ([]byte, error) {
	data, err := codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("httpclient: encode request: %w", err)
	}
	return data, nil
}
