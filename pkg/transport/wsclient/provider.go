package wsclient

import (
	"fmt"
	"sync"

	"github.com/fluxorio/asyncnet/pkg/async"
	"github.com/fluxorio/asyncnet/pkg/codec"
)

// Provider issues request/reply calls over a single dialed Client. Unlike
// httpclient.Provider, it carries no transport-level state of its own —
// the Client already multiplexes every in-flight call — so a Provider is
// just a thin async.Provider adapter around it.
type Provider struct {
	client *Client
}

// New wraps client in a Provider.
func New(client *Client) *Provider { return &Provider{client: client} }

// Do begins and schedules a request/reply call: op and address select the
// server-side handler the way they do in the wider bridge protocol,
// and body is encoded with the module's codec as the request payload.
func (p *Provider) Do(block *async.Block, queue *async.Queue, op, address string, body interface{}) async.Status {
	status := async.Begin(block, &boundCall{provider: p, op: op, address: address, body: body}, queue, op, address)
	if status != async.StatusPending {
		return status
	}
	return async.Schedule(block, 0)
}

type boundCall struct {
	provider *Provider
	op       string
	address  string
	body     interface{}

	mu     sync.Mutex
	id     string
	result []byte
}

func (b *boundCall) DoWork(data *async.ProviderData) async.Status {
	c := b.provider.client
	id := c.nextRequestID()
	b.mu.Lock()
	b.id = id
	b.mu.Unlock()

	bodyBytes, err := codec.Encode(b.body)
	if err != nil {
		return async.StatusInvalidArg
	}

	replyCh := c.registerPending(id)
	if err := c.send(Envelope{Op: b.op, Address: b.address, ID: id, Body: bodyBytes}); err != nil {
		c.removePending(id)
		return async.StatusUnexpected
	}

	go func() {
		env, ok := <-replyCh
		if !ok {
			// The Client closed while this call was outstanding.
			async.Complete(data, 0, async.StatusAborted)
			return
		}
		if env.Error != "" {
			async.Complete(data, 0, async.StatusUnexpected)
			return
		}
		b.mu.Lock()
		b.result = []byte(env.Body)
		b.mu.Unlock()
		async.Complete(data, uint64(len(env.Body)), async.StatusSuccess)
	}()

	return async.StatusPending
}

func (b *boundCall) GetResult(data *async.ProviderData, buffer []byte) (int, async.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(buffer) < len(b.result) {
		return 0, async.StatusNotSufficientBuffer
	}
	return copy(buffer, b.result), async.StatusSuccess
}

func (b *boundCall) Cancel(data *async.ProviderData) {
	b.mu.Lock()
	id := b.id
	b.mu.Unlock()
	if id != "" {
		b.provider.client.removePending(id)
	}
}

func (b *boundCall) Cleanup(data *async.ProviderData) {
	b.mu.Lock()
	b.result = nil
	b.mu.Unlock()
}

// DecodeJSON decodes a completed call's result body into v.
func DecodeJSON(buffer []byte, v interface{}) error {
	if err := codec.Decode(buffer, v); err != nil {
		return fmt.Errorf("wsclient: decode reply: %w", err)
	}
	return nil
}
