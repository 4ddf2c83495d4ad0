package protocol

// ProtocolVersion is the MCP protocol revision this client speaks.
const ProtocolVersion = "2024-11-05"

// Method names used by the diagnostic client. The vocabulary is deliberately
// small: this is a probe, not a general-purpose MCP implementation.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "notifications/initialized"
	MethodListTools     = "tools/list"
	MethodCallTool      = "tools/call"
	MethodListResources = "resources/list"
)

// ProtocolVersionHeader is the HTTP header carrying the negotiated protocol
// version on SSE and HTTP requests.
const ProtocolVersionHeader = "mcp-protocol-version"
