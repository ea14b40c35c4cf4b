// Package wsclient implements async.Provider over a long-lived
// WebSocket session: one dial produces a Client that multiplexes any
// number of request/reply calls, keyed by correlation ID, plus
// fire-and-forget push subscriptions, over a single connection.
package wsclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fluxorio/asyncnet/pkg/codec"
	"github.com/fluxorio/asyncnet/pkg/logging"
	"github.com/fluxorio/asyncnet/pkg/telemetry/metrics"
)

// Config dials and configures a Client.
type Config struct {
	URL    string
	Header http.Header

	// Dialer is used to establish the connection. A nil Dialer uses
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Logger logging.Logger
}

// Client is one dialed WebSocket connection multiplexing request/reply
// calls and push subscriptions. It is safe for concurrent use.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  logging.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[string]chan Envelope
	subs    map[string][]chan Envelope
	closed  bool
}

// Dial establishes the connection and starts the background read pump.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial %s: %w", cfg.URL, err)
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		metrics: metrics.GetMetrics(),
		pending: make(map[string]chan Envelope),
		subs:    make(map[string][]chan Envelope),
	}
	go c.readPump()
	return c, nil
}

// Subscribe registers a channel that receives pushed Envelopes addressed
// to address until the Client is closed. The channel buffers 16 frames; a
// frame that arrives while it is full is dropped. The caller is expected
// to range over the returned channel; it's closed when the Client closes.
func (c *Client) Subscribe(address string) <-chan Envelope {
	ch := make(chan Envelope, 16)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	c.subs[address] = append(c.subs[address], ch)
	c.mu.Unlock()
	return ch
}

func (c *Client) nextRequestID() string {
	return uuid.NewString()
}

func (c *Client) registerPending(id string) chan Envelope {
	ch := make(chan Envelope, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

// removePending unregisters id's reply channel and closes it, unblocking
// any goroutine still waiting on it (read as StatusAborted by the
// Provider). A no-op if the reply already arrived and removed itself.
func (c *Client) removePending(id string) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (c *Client) send(env Envelope) error {
	data, err := codec.Encode(env)
	if err != nil {
		return fmt.Errorf("wsclient: encode envelope: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readPump is the connection's single reader: it dispatches replies to
// their waiting caller by ID, pushed messages to every subscriber of
// their address, and on any read error drains every pending caller with
// a closed-channel signal before returning, mirroring a bridge's cleanup
// on connection loss (inverted here to the dial side).
func (c *Client) readPump() {
	defer c.drainOnClose()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := codec.Decode(data, &env); err != nil {
			c.logger.Warnf("wsclient: malformed frame: %v", err)
			continue
		}

		if env.ID != "" {
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			delete(c.pending, env.ID)
			c.mu.Unlock()
			if ok {
				ch <- env
				c.metrics.RecordWSMessage("reply", 0)
				continue
			}
		}

		c.metrics.RecordWSMessage("push", 0)
		if env.Address != "" {
			c.mu.Lock()
			subs := append([]chan Envelope(nil), c.subs[env.Address]...)
			c.mu.Unlock()
			for _, sub := range subs {
				select {
				case sub <- env:
				default:
					c.logger.Warnf("wsclient: dropped push frame for %s: subscriber channel full", env.Address)
				}
			}
		}
	}
}

func (c *Client) drainOnClose() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]chan Envelope)
	subs := c.subs
	c.subs = make(map[string][]chan Envelope)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	for _, chs := range subs {
		for _, ch := range chs {
			close(ch)
		}
	}
}

// Close closes the underlying connection with a close frame. Pending
// request/reply calls are drained with a closed channel, which the
// Provider's DoWork goroutine reads as StatusAborted.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
