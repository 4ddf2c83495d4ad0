// Package client is the façade of the diagnostic tool: point it at an MCP
// server, whatever the transport, and interrogate it.
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	diagerrors "github.com/mcp-doctor/mcp-doctor-go/pkg/errors"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/launcher"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/logging"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/protocol"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/transport"
)

// Name and Version identify this client during the MCP handshake.
const (
	Name    = "mcp-doctor"
	Version = "0.1.0"
)

// Client diagnoses one MCP server. The connection is established lazily on
// the first operation; Close is always safe.
type Client struct {
	target string
	opts   Options
	logger logging.Logger

	mu        sync.Mutex
	ready     bool
	closed    bool
	kind      TransportKind
	transport transport.Transport
	stdio     *transport.StdioTransport
	sse       *transport.SSETransport
	serverURL string
	manager   *launcher.Manager
	info      *protocol.ServerInfo

	httpClient *http.Client
}

// New creates a client for a target: an http(s) URL, an npx launch command,
// or any other command to run as a stdio server.
func New(target string, opts ...Option) *Client {
	options := buildOptions(opts)

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}

	return &Client{
		target:     target,
		opts:       options,
		logger:     options.Logger.WithFields(logging.String("component", "client")),
		kind:       DetectTransport(target, options.Transport),
		httpClient: httpClient,
	}
}

// DetectTransport classifies a target. URLs start as TransportHTTP and may
// become TransportSSE after probing; everything else is a stdio command.
func DetectTransport(target string, requested TransportKind) TransportKind {
	if requested != "" && requested != TransportAuto {
		return requested
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return TransportHTTP
	}
	return TransportStdio
}

// Kind reports the transport in use. Before the first operation this may
// still say http for an endpoint that later probes as SSE.
func (c *Client) Kind() TransportKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

// ServerURL describes where the client is connected.
func (c *Client) ServerURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.kind {
	case TransportStdio:
		return "stdio://" + c.target
	case TransportSSE:
		return "sse://" + c.target
	default:
		if c.serverURL != "" {
			return c.serverURL
		}
		return c.target
	}
}

// ensureReady connects on first use. Safe to call repeatedly.
func (c *Client) ensureReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return diagerrors.NewError(diagerrors.CodeInternalError, "client is closed",
			diagerrors.CategoryInternal, diagerrors.SeverityError)
	}
	if c.ready {
		return nil
	}

	switch c.kind {
	case TransportStdio:
		if err := c.connectStdio(ctx); err != nil {
			c.opts.Metrics.RecordError(errorCategory(err))
			return err
		}
	case TransportHTTP, TransportSSE:
		if err := c.connectHTTP(ctx); err != nil {
			c.opts.Metrics.RecordError(errorCategory(err))
			return err
		}
	}

	c.ready = true
	return nil
}

func (c *Client) connectStdio(ctx context.Context) error {
	stdio := transport.NewStdioTransport(transport.StdioConfig{
		Command:        c.target,
		Env:            c.opts.Env,
		WorkingDir:     c.opts.WorkingDir,
		RequestTimeout: c.opts.Timeout,
		Logger:         c.opts.Logger,
	})

	if err := stdio.Connect(ctx); err != nil {
		return err
	}

	result, err := transport.Initialize(ctx, stdio, Name, Version)
	if err != nil {
		stdio.Close()
		return err
	}

	c.stdio = stdio
	c.transport = stdio
	c.info = protocol.ServerInfoFromInitialize(result, stdio.ServerName())
	c.opts.Metrics.RecordTransportEvent("stdio", "connect")

	c.logger.Info("Connected over stdio",
		logging.String("server", c.info.ServerName),
		logging.String("version", c.info.ServerVersion))
	return nil
}

func (c *Client) connectHTTP(ctx context.Context) error {
	target := c.target

	// A launch command means we must start the server ourselves and talk
	// plain HTTP to whatever address it announces.
	if launcher.IsLaunchCommand(target) {
		c.manager = launcher.NewManager(c.opts.Logger)

		started := time.Now()
		url, err := c.manager.Launch(ctx, launcher.Config{
			Command:    target,
			Env:        c.opts.Env,
			WorkingDir: c.opts.WorkingDir,
			Timeout:    c.opts.Timeout,
			Port:       c.opts.Port,
			LogEnv:     true,
			Logger:     c.opts.Logger,
		})
		if err != nil {
			return err
		}

		c.opts.Metrics.RecordLaunch(time.Since(started))
		c.opts.Metrics.ProcessStarted()
		c.serverURL = url
		c.kind = TransportHTTP
		return nil
	}

	kind := c.kind
	if kind != TransportSSE {
		kind = TransportKind(transport.ProbeEndpoint(ctx, target, c.opts.Headers, c.opts.Logger))
		c.logger.Info("Probed endpoint", logging.String("kind", string(kind)))
	}

	if kind == TransportSSE {
		return c.connectSSE(ctx)
	}

	c.kind = TransportHTTP
	c.serverURL = target
	return nil
}

func (c *Client) connectSSE(ctx context.Context) error {
	sse := transport.NewSSETransport(transport.SSEConfig{
		URL:            c.target,
		Headers:        c.opts.Headers,
		RequestTimeout: c.opts.Timeout,
		Logger:         c.opts.Logger,
		HTTPClient:     c.opts.HTTPClient,
	})

	if err := sse.Connect(ctx); err != nil {
		sse.Close()
		return err
	}

	result, err := transport.Initialize(ctx, sse, Name, Version)
	if err != nil {
		sse.Close()
		return err
	}

	c.sse = sse
	c.transport = sse
	c.kind = TransportSSE
	c.info = protocol.ServerInfoFromInitialize(result, "SSE MCP Server")
	sse.SetProtocolVersion(c.info.ProtocolVersion)
	c.opts.Metrics.RecordTransportEvent("sse", "connect")

	c.logger.Info("Connected over SSE",
		logging.String("server", c.info.ServerName),
		logging.String("session_id", sse.SessionID()))
	return nil
}

// GetServerInfo reports what the server said about itself: the handshake
// result on stdio and SSE, or the info document a REST endpoint serves.
func (c *Client) GetServerInfo(ctx context.Context) (*protocol.ServerInfo, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	kind, info := c.kind, c.info
	c.mu.Unlock()

	if kind == TransportStdio || kind == TransportSSE {
		return info, nil
	}
	return c.restServerInfo(ctx)
}

// ListTools fetches the server's tool catalog. Malformed entries are skipped,
// not fatal.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	if t := c.engine(); t != nil {
		raw, err := c.sendTimed(ctx, t, protocol.MethodListTools, nil)
		if err != nil {
			return nil, err
		}
		return c.parseTools(raw), nil
	}
	return c.restListTools(ctx)
}

// ListResources fetches the server's resource catalog. Unsupported on plain
// HTTP targets.
func (c *Client) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	t := c.engine()
	if t == nil {
		return nil, diagerrors.OperationNotSupported("http", "resources/list", "")
	}

	raw, err := c.sendTimed(ctx, t, protocol.MethodListResources, nil)
	if err != nil {
		return nil, err
	}

	resources, skipped := protocol.ParseResources(raw)
	if skipped > 0 {
		c.logger.Warn("Skipped malformed resource entries", logging.Int("skipped", skipped))
	}
	return resources, nil
}

// CallTool invokes a tool and returns the raw result. Unsupported on plain
// HTTP targets.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	t := c.engine()
	if t == nil {
		return nil, diagerrors.OperationNotSupported("http", "tools/call",
			"Use the MCP Inspector to exercise tools on plain HTTP servers: npx @modelcontextprotocol/inspector --cli "+c.ServerURL())
	}

	params := &protocol.CallToolParams{Name: name, Arguments: arguments}

	started := time.Now()
	raw, err := c.sendTimed(ctx, t, protocol.MethodCallTool, params)
	c.opts.Metrics.RecordToolCall(name, statusOf(err), time.Since(started))
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Close releases everything: transports shut down, launched processes stop.
// Never fails, safe to call any number of times.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	t := c.transport
	manager := c.manager
	kind := c.kind
	c.mu.Unlock()

	if t != nil {
		t.Close()
		c.opts.Metrics.RecordTransportEvent(string(kind), "close")
	}
	if manager != nil {
		manager.StopAll()
		c.opts.Metrics.ProcessStopped()
	}

	c.logger.Debug("Client closed")
}

// engine returns the JSON-RPC transport, or nil on a plain HTTP target.
func (c *Client) engine() transport.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

func (c *Client) transportName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.kind)
}

// sendTimed wraps a request with metrics.
func (c *Client) sendTimed(ctx context.Context, t transport.Transport, method string, params interface{}) (json.RawMessage, error) {
	started := time.Now()
	raw, err := t.SendRequest(ctx, method, params)
	c.opts.Metrics.RecordRequest(method, c.transportName(), statusOf(err), time.Since(started))
	if err != nil {
		c.opts.Metrics.RecordError(errorCategory(err))
	}
	return raw, err
}

func (c *Client) parseTools(raw json.RawMessage) []protocol.Tool {
	tools, skipped := protocol.ParseTools(raw)
	if skipped > 0 {
		c.logger.Warn("Skipped malformed tool entries", logging.Int("skipped", skipped))
	}
	if len(tools) == 0 {
		c.logger.Warn("No tools reported by server")
	}
	return tools
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func errorCategory(err error) string {
	if diagErr, ok := diagerrors.AsDiagError(err); ok {
		return string(diagErr.Category())
	}
	return string(diagerrors.CategoryInternal)
}
