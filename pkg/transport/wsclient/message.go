package wsclient

import "encoding/json"

// Envelope is the single frame shape exchanged over the socket in both
// directions — one JSON object per WebSocket text frame, correlated by ID
// for request/reply traffic and addressed for fire-and-forget push
// traffic, mirroring a common event-bus-over-WebSocket wire shape from
// the client side of the same protocol.
type Envelope struct {
	Op      string          `json:"op"`
	Address string          `json:"address,omitempty"`
	ID      string          `json:"id,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OpRequest, OpPublish, OpSend, OpSubscribe, and OpMessage are the operations this
// client issues or recognizes. A server speaking the same bridge
// protocol understands these same names.
const (
	OpRequest   = "request"
	OpPublish   = "publish"
	OpSend      = "send"
	OpSubscribe = "subscribe"
	OpMessage   = "message"
)
