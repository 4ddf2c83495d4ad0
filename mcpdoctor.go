// Package mcpdoctor diagnoses Model Context Protocol servers over stdio,
// SSE, and plain HTTP.
package mcpdoctor

import (
	"github.com/mcp-doctor/mcp-doctor-go/pkg/client"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/launcher"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/transport"
)

// Version is the version this client reports during the MCP handshake.
const Version = client.Version

// These exports provide direct access to the core components
var (
	// New creates a diagnostic client for a URL or launch command
	New = client.New

	// NewServerProcess launches and supervises an npx-based server
	NewServerProcess = launcher.NewServerProcess

	// NewStdioTransport creates a stdio subprocess transport
	NewStdioTransport = transport.NewStdioTransport

	// NewSSETransport creates an SSE transport
	NewSSETransport = transport.NewSSETransport
)

// Transport kinds accepted by WithTransport
const (
	TransportAuto  = client.TransportAuto
	TransportStdio = client.TransportStdio
	TransportSSE   = client.TransportSSE
	TransportHTTP  = client.TransportHTTP
)

// Client options
var (
	WithTransport  = client.WithTransport
	WithTimeout    = client.WithTimeout
	WithHeaders    = client.WithHeaders
	WithEnv        = client.WithEnv
	WithWorkingDir = client.WithWorkingDir
	WithPort       = client.WithPort
	WithLogger     = client.WithLogger
	WithMetrics    = client.WithMetrics
)
