// Package mcpdoctor is a diagnostic client for Model Context Protocol (MCP)
// servers. Point it at a server, whatever its transport, and ask what the
// server offers and whether it actually answers.
//
// # Overview
//
// The module consists of several sub-packages:
//
//   - pkg/client: the façade; target detection, lazy connect, diagnostics
//   - pkg/launcher: npx process launching and server address discovery
//   - pkg/transport: stdio, SSE and probe transports over JSON-RPC 2.0
//   - pkg/protocol: protocol types, method constants, lenient payload parsing
//   - pkg/errors: the diagnostic error taxonomy
//   - pkg/logging: structured leveled logging
//   - pkg/observability: Prometheus metrics
//
// # Diagnosing a server
//
// A target is either an http(s) URL or a command line. URLs are probed to
// tell SSE endpoints from plain REST ones; commands are run as stdio
// subprocesses, except npx launch commands of the form
// "export KEY=value && npx some-server", which are started and then reached
// over HTTP at whatever address they announce.
//
//	c := mcpdoctor.New("npx firecrawl-mcp")
//	defer c.Close()
//
//	info, err := c.GetServerInfo(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tools, err := c.ListTools(ctx)
//
// Failures come back as typed errors from pkg/errors, each carrying the
// category, the offending command or endpoint, and captured process output
// where there is any, so the caller can print something actionable instead
// of "connection refused".
package mcpdoctor
