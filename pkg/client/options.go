package client

import (
	"net/http"
	"time"

	"github.com/mcp-doctor/mcp-doctor-go/pkg/logging"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/observability"
)

// TransportKind names how the client reaches a server.
type TransportKind string

const (
	// TransportAuto picks the transport from the target: URLs are probed
	// for SSE versus plain HTTP, anything else is a stdio command.
	TransportAuto TransportKind = "auto"
	// TransportStdio talks to a subprocess over stdin/stdout.
	TransportStdio TransportKind = "stdio"
	// TransportSSE talks to an event-stream endpoint.
	TransportSSE TransportKind = "sse"
	// TransportHTTP talks plain HTTP, with tool invocation unsupported.
	TransportHTTP TransportKind = "http"
)

// DefaultTimeout bounds individual requests issued by the client.
const DefaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	// Transport forces a transport instead of auto-detection.
	Transport TransportKind

	// Timeout bounds each request.
	Timeout time.Duration

	// Headers are added to every HTTP request on SSE and HTTP targets.
	Headers map[string]string

	// Env holds extra environment variables for launched processes.
	Env map[string]string

	// WorkingDir is the working directory for launched processes.
	WorkingDir string

	// Port hints which port a launched server will pick.
	Port int

	// Logger receives client diagnostics.
	Logger logging.Logger

	// Metrics receives operation metrics. Nil disables recording.
	Metrics *observability.Metrics

	// HTTPClient overrides the default client for SSE/HTTP targets.
	HTTPClient *http.Client
}

// Option mutates Options.
type Option func(*Options)

// WithTransport forces the transport kind.
func WithTransport(kind TransportKind) Option {
	return func(o *Options) { o.Transport = kind }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.Timeout = timeout }
}

// WithHeaders sets extra HTTP headers for SSE and HTTP targets.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) { o.Headers = headers }
}

// WithEnv sets extra environment variables for launched processes.
func WithEnv(env map[string]string) Option {
	return func(o *Options) { o.Env = env }
}

// WithWorkingDir sets the working directory for launched processes.
func WithWorkingDir(dir string) Option {
	return func(o *Options) { o.WorkingDir = dir }
}

// WithPort hints the port a launched server is expected on.
func WithPort(port int) Option {
	return func(o *Options) { o.Port = port }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *Options) { o.Metrics = metrics }
}

// WithHTTPClient overrides the HTTP client used for SSE and HTTP targets.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) { o.HTTPClient = client }
}

func buildOptions(opts []Option) Options {
	options := Options{
		Transport: TransportAuto,
		Timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = logging.NewNop()
	}
	return options
}
