// Package transport implements the wire protocols the diagnostic client
// speaks: newline-framed JSON over a subprocess (stdio), SSE streams with a
// POST back-channel, and plain HTTP probing.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	diagerrors "github.com/mcp-doctor/mcp-doctor-go/pkg/errors"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/protocol"
)

// DefaultRequestTimeout bounds how long a request waits for its response.
const DefaultRequestTimeout = 30 * time.Second

// Transport is the interface shared by the stdio and SSE engines.
type Transport interface {
	// Connect establishes the transport: spawns the subprocess or opens
	// the event stream.
	Connect(ctx context.Context) error

	// SendRequest sends a request and blocks until the matching response
	// arrives or the timeout expires. The raw result is returned; a
	// JSON-RPC error object becomes a Go error.
	SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// SendNotification sends a notification. No response is awaited.
	SendNotification(ctx context.Context, method string, params interface{}) error

	// Close releases the transport. It never fails; problems during
	// teardown are logged and swallowed.
	Close()
}

// BaseTransport carries the pieces every transport needs: request id
// allocation and the pending-request table correlating responses by id.
type BaseTransport struct {
	mu      sync.Mutex
	pending map[string]chan *protocol.Message
	nextID  atomic.Int64
}

// NewBaseTransport creates an empty base.
func NewBaseTransport() *BaseTransport {
	return &BaseTransport{
		pending: make(map[string]chan *protocol.Message),
	}
}

// NextID returns the next monotonic integer request id.
func (b *BaseTransport) NextID() int64 {
	return b.nextID.Add(1)
}

// GenerateID returns a fresh UUID request id.
func (b *BaseTransport) GenerateID() string {
	return uuid.NewString()
}

// RegisterPending creates the response slot for a request id. The returned
// channel holds one buffered message so delivery never blocks the reader.
func (b *BaseTransport) RegisterPending(id interface{}) chan *protocol.Message {
	ch := make(chan *protocol.Message, 1)
	b.mu.Lock()
	b.pending[protocol.IDKey(id)] = ch
	b.mu.Unlock()
	return ch
}

// CancelPending removes the response slot for a request id, if still present.
func (b *BaseTransport) CancelPending(id interface{}) {
	b.mu.Lock()
	delete(b.pending, protocol.IDKey(id))
	b.mu.Unlock()
}

// Dispatch routes a response to the waiter registered for its id. The slot is
// removed before delivery, so a duplicate response for the same id finds no
// waiter and reports false.
func (b *BaseTransport) Dispatch(msg *protocol.Message) bool {
	key := protocol.IDKey(msg.ID)

	b.mu.Lock()
	ch, ok := b.pending[key]
	if ok {
		delete(b.pending, key)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	ch <- msg
	return true
}

// WaitForResponse blocks on a registered slot until the response arrives, the
// timeout expires, or the context is cancelled. The slot is deregistered on
// every exit path.
func (b *BaseTransport) WaitForResponse(ctx context.Context, id interface{}, ch chan *protocol.Message, timeout time.Duration) (*protocol.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		return msg, nil
	case <-timer.C:
		b.CancelPending(id)
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		b.CancelPending(id)
		return nil, ctx.Err()
	}
}

// CancelAll drops every pending slot. Waiters time out on their own.
func (b *BaseTransport) CancelAll() {
	b.mu.Lock()
	b.pending = make(map[string]chan *protocol.Message)
	b.mu.Unlock()
}

// PendingCount reports how many requests are awaiting responses.
func (b *BaseTransport) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Initialize runs the MCP handshake over a connected transport: the
// initialize request followed by the initialized notification. The result is
// nil when the server returned an empty body.
func Initialize(ctx context.Context, t Transport, clientName, clientVersion string) (*protocol.InitializeResult, error) {
	params := protocol.NewInitializeParams(clientName, clientVersion)

	raw, err := t.SendRequest(ctx, protocol.MethodInitialize, params)
	if err != nil {
		if rpcErr, ok := err.(*protocol.Error); ok {
			return nil, diagerrors.HandshakeError("", rpcErr.Code, rpcErr.Message)
		}
		return nil, err
	}

	var result *protocol.InitializeResult
	if len(raw) > 0 {
		result = &protocol.InitializeResult{}
		if err := json.Unmarshal(raw, result); err != nil {
			return nil, diagerrors.ProtocolError("invalid initialize result", err)
		}
	}

	if err := t.SendNotification(ctx, protocol.MethodInitialized, nil); err != nil {
		return nil, err
	}

	return result, nil
}
