package async

// ProviderData is handed to every Provider method. Context is whatever the
// provider stashed there from its own constructor; the core never looks
// inside it. Block is the operation's caller-owned handle, useful for a
// provider's background goroutine to call Complete once real work
// finishes.
type ProviderData struct {
	Block   *Block
	Context interface{}

	state *state
}

// Provider is the extension point every transport — HTTP, WebSocket, or
// anything else — plugs into. Begin attaches one to a Block; the core
// drives it through one DoWork per Schedule, any number of GetResult calls,
// an optional Cancel, and exactly one Cleanup.
type Provider interface {
	// DoWork starts the operation and must not block. Long-running work
	// belongs on its own goroutine that eventually calls Complete with
	// data. Returning StatusPending defers completion to that goroutine;
	// returning any other status completes the block synchronously with
	// it. Returning StatusSuccess directly is a contract violation — the
	// core rewrites it to StatusUnexpected, since a synchronous result
	// must still go through Complete to attach its size.
	DoWork(data *ProviderData) Status

	// GetResult copies up to len(buffer) bytes of the completed result
	// into buffer and reports how many bytes it wrote. Returning
	// StatusNotSufficientBuffer must not discard the result — GetResult
	// may be called again with a larger buffer.
	GetResult(data *ProviderData, buffer []byte) (int, Status)

	// Cancel requests that any in-flight operation stop. It must be safe
	// to call at any time, including after completion, and must not
	// block.
	Cancel(data *ProviderData)

	// Cleanup releases resources associated with data. The core calls it
	// exactly once, after the block has reached a terminal status and is
	// no longer reachable by a caller (GetResult has returned Success, or
	// Cancel has run).
	Cleanup(data *ProviderData)
}
