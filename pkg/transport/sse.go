package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tmaxmax/go-sse"

	diagerrors "github.com/mcp-doctor/mcp-doctor-go/pkg/errors"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/logging"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/protocol"
)

const (
	// DefaultConnectTimeout bounds how long Connect waits for the endpoint
	// event that tells us where to POST requests.
	DefaultConnectTimeout = 10 * time.Second

	// sseReconnectDelay is the pause before reopening a dropped stream.
	sseReconnectDelay = time.Second

	// sseBodyLimit bounds how much of a POST response body is read.
	sseBodyLimit = 10 * 1024 * 1024
)

// SSEConfig configures an SSE transport.
type SSEConfig struct {
	// URL is the SSE stream endpoint.
	URL string

	// Headers are added to every HTTP request (auth tokens and the like).
	Headers map[string]string

	// RequestTimeout bounds each request. Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration

	// ConnectTimeout bounds the wait for the endpoint event. Zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Logger receives transport diagnostics. Nil means no logging.
	Logger logging.Logger

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// SSETransport speaks MCP over a server-sent-events stream with a POST
// back-channel. The server announces the POST URL in an "endpoint" event;
// responses arrive either as "message" events or directly in the POST
// response body.
type SSETransport struct {
	*BaseTransport

	config SSEConfig
	logger logging.Logger
	client *http.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	messagesURL     string
	sessionID       string
	protocolVersion string

	endpointReady chan struct{}
	readyOnce     sync.Once

	stopped      atomic.Bool
	listenerDone chan struct{}
	closeOnce    sync.Once
}

// NewSSETransport creates a transport for the given stream URL. The stream
// opens on Connect.
func NewSSETransport(config SSEConfig) *SSETransport {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &SSETransport{
		BaseTransport: NewBaseTransport(),
		config:        config,
		logger:        logger.WithFields(logging.String("component", "sse")),
		client:        client,
		endpointReady: make(chan struct{}),
		listenerDone:  make(chan struct{}),
	}
}

// SetProtocolVersion records the negotiated protocol version; subsequent
// requests carry it in the mcp-protocol-version header.
func (t *SSETransport) SetProtocolVersion(version string) {
	t.mu.Lock()
	t.protocolVersion = version
	t.mu.Unlock()
}

// SessionID returns the session id the server embedded in the endpoint URL,
// if any.
func (t *SSETransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *SSETransport) applyHeaders(req *http.Request) {
	for key, value := range t.config.Headers {
		req.Header.Set(key, value)
	}
	t.mu.Lock()
	if t.protocolVersion != "" {
		req.Header.Set(protocol.ProtocolVersionHeader, t.protocolVersion)
	}
	t.mu.Unlock()
}

// Connect opens the stream and blocks until the server announces its message
// endpoint or the connect timeout expires.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(context.Background())
	go t.listen()

	select {
	case <-t.endpointReady:
		return nil
	case <-time.After(t.config.ConnectTimeout):
		t.Close()
		return diagerrors.SSEConnectError(t.config.URL, 0,
			fmt.Errorf("no endpoint event within %v", t.config.ConnectTimeout))
	case <-ctx.Done():
		t.Close()
		return ctx.Err()
	}
}

// listen keeps the event stream open, reconnecting with a fixed backoff until
// the transport closes.
func (t *SSETransport) listen() {
	defer close(t.listenerDone)

	for !t.stopped.Load() {
		if err := t.readStream(); err != nil && !t.stopped.Load() {
			t.logger.Warn("SSE stream dropped, reconnecting",
				logging.ErrorField(err),
				logging.Duration("delay", sseReconnectDelay))
		}

		select {
		case <-t.ctx.Done():
			return
		case <-time.After(sseReconnectDelay):
		}
	}
}

// readStream opens one GET and consumes events until the stream ends.
func (t *SSETransport) readStream() error {
	req, err := http.NewRequestWithContext(t.ctx, http.MethodGet, t.config.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	t.applyHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return diagerrors.SSEConnectError(t.config.URL, resp.StatusCode, nil)
	}

	t.logger.Debug("SSE stream open", logging.String("url", t.config.URL))

	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			return err
		}

		switch ev.Type {
		case "endpoint":
			t.handleEndpointEvent(ev.Data)
		case "message":
			t.handleMessageEvent(ev.Data)
		default:
			t.logger.Debug("Ignoring event", logging.String("type", ev.Type))
		}
	}
	return nil
}

// handleEndpointEvent resolves the announced POST URL, which may be relative,
// against the stream URL and captures the session id from its query.
func (t *SSETransport) handleEndpointEvent(data string) {
	base, err := url.Parse(t.config.URL)
	if err != nil {
		t.logger.Error("Invalid stream URL", logging.ErrorField(err))
		return
	}
	endpoint, err := url.Parse(strings.TrimSpace(data))
	if err != nil || strings.TrimSpace(data) == "" {
		t.logger.Error("Invalid endpoint event", logging.String("data", data))
		return
	}

	resolved := base.ResolveReference(endpoint)

	t.mu.Lock()
	t.messagesURL = resolved.String()
	t.sessionID = resolved.Query().Get("session_id")
	t.mu.Unlock()

	t.logger.Info("Message endpoint announced",
		logging.String("url", resolved.String()),
		logging.String("session_id", t.SessionID()))

	t.readyOnce.Do(func() { close(t.endpointReady) })
}

// handleMessageEvent routes a response event to its waiter. Events that
// correlate with nothing are unsolicited and only logged.
func (t *SSETransport) handleMessageEvent(data string) {
	var msg protocol.Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		t.logger.Warn("Skipping malformed message event", logging.ErrorField(err))
		return
	}

	if !msg.IsResponse() {
		t.logger.Debug("Ignoring server message", logging.String("method", msg.Method))
		return
	}

	if !t.Dispatch(&msg) {
		t.logger.Debug("Unsolicited response", logging.Any("id", msg.ID))
	}
}

func (t *SSETransport) postURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messagesURL
}

// SendRequest POSTs a request to the message endpoint and waits for the
// response. A server that answers the POST with the response body short-cuts
// the stream; the pending slot is dropped first so a duplicate stream event
// for the same id is discarded.
func (t *SSETransport) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	select {
	case <-t.endpointReady:
	default:
		return nil, diagerrors.SSEConnectError(t.config.URL, 0, fmt.Errorf("transport not connected"))
	}

	id := t.GenerateID()
	msg, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, diagerrors.ProtocolError("failed to build request", err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, diagerrors.ProtocolError("failed to encode request", err)
	}

	ch := t.RegisterPending(id)

	t.logger.Debug("Sending request",
		logging.String("method", method),
		logging.String("id", id))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.postURL(), bytes.NewReader(payload))
	if err != nil {
		t.CancelPending(id)
		return nil, diagerrors.ProtocolError("failed to build POST", err)
	}
	req.Header.Set("Content-Type", "application/json")
	t.applyHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		t.CancelPending(id)
		return nil, diagerrors.SSEConnectError(t.postURL(), 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, sseBodyLimit))
		if readErr == nil {
			if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
				var direct protocol.Message
				if json.Unmarshal(trimmed, &direct) == nil && direct.IsResponse() {
					t.CancelPending(id)
					if direct.Error != nil {
						return nil, direct.Error
					}
					return direct.Result, nil
				}
			}
		}
		// Empty or non-JSON 200 body; the response comes over the stream.
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent:
		// Response comes over the stream.
	default:
		t.CancelPending(id)
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, diagerrors.ProtocolError(
			fmt.Sprintf("POST returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	response, err := t.WaitForResponse(ctx, id, ch, t.config.RequestTimeout)
	if err != nil {
		if err == context.DeadlineExceeded {
			return nil, diagerrors.ResponseTimeoutError("sse", method, id, t.config.RequestTimeout)
		}
		return nil, err
	}

	if response.Error != nil {
		return nil, response.Error
	}
	return response.Result, nil
}

// SendNotification POSTs a notification. Any 2xx status is acceptance.
func (t *SSETransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		return diagerrors.ProtocolError("failed to build notification", err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return diagerrors.ProtocolError("failed to encode notification", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.postURL(), bytes.NewReader(payload))
	if err != nil {
		return diagerrors.ProtocolError("failed to build POST", err)
	}
	req.Header.Set("Content-Type", "application/json")
	t.applyHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return diagerrors.SSEConnectError(t.postURL(), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return diagerrors.ProtocolError(fmt.Sprintf("notification POST returned HTTP %d", resp.StatusCode), nil)
	}
	return nil
}

// Close stops the listener and abandons pending requests. Never fails.
func (t *SSETransport) Close() {
	t.closeOnce.Do(func() {
		t.stopped.Store(true)
		if t.cancel != nil {
			t.cancel()

			select {
			case <-t.listenerDone:
			case <-time.After(2 * time.Second):
				t.logger.Warn("SSE listener did not finish in time")
			}
		}

		t.CancelAll()
		t.logger.Info("SSE transport closed")
	})
}

var _ Transport = (*SSETransport)(nil)
