package errors

// JSON-RPC 2.0 standard error codes
const (
	// CodeParseError indicates invalid JSON was received
	CodeParseError int = -32700

	// CodeInvalidRequest indicates the JSON sent is not a valid Request object
	CodeInvalidRequest int = -32600

	// CodeMethodNotFound indicates the method does not exist / is not available
	CodeMethodNotFound int = -32601

	// CodeInvalidParams indicates invalid method parameter(s)
	CodeInvalidParams int = -32602

	// CodeInternalError indicates an internal JSON-RPC error
	CodeInternalError int = -32603
)

// Diagnostic error codes, kept inside the implementation-defined JSON-RPC
// range so they can travel in error objects unmodified
const (
	// Handshake errors (-32000 to -32099)
	CodeHandshakeRejected int = -32000 // Server rejected the initialize request

	// Operation errors (-32300 to -32399)
	CodeResponseTimeout int = -32301 // No response arrived within the deadline

	// Process and transport errors (-32500 to -32599)
	CodeProcessLaunch     int = -32500 // Server process could not be started
	CodeProcessTerminated int = -32501 // Server process exited while a request was pending
	CodeAddressDiscovery  int = -32502 // Launched server never announced a usable address
	CodeSSEConnect        int = -32503 // SSE stream could not be established

	// Protocol errors (-32900 to -32999)
	CodeProtocolError int = -32900 // Malformed or unexpected protocol traffic
)

// CodeInfo provides human-readable information about an error code
type CodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

var codeRegistry = map[int]CodeInfo{
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryProtocol, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	CodeHandshakeRejected: {CodeHandshakeRejected, "HandshakeRejected", "Server rejected initialization", CategoryHandshake, SeverityCritical},
	CodeResponseTimeout:   {CodeResponseTimeout, "ResponseTimeout", "Request timed out", CategoryTimeout, SeverityError},
	CodeProcessLaunch:     {CodeProcessLaunch, "ProcessLaunch", "Server process launch failed", CategoryProcess, SeverityCritical},
	CodeProcessTerminated: {CodeProcessTerminated, "ProcessTerminated", "Server process exited unexpectedly", CategoryProcess, SeverityCritical},
	CodeAddressDiscovery:  {CodeAddressDiscovery, "AddressDiscovery", "Server address discovery failed", CategoryDiscovery, SeverityCritical},
	CodeSSEConnect:        {CodeSSEConnect, "SSEConnect", "SSE stream connection failed", CategoryTransport, SeverityError},
	CodeProtocolError:     {CodeProtocolError, "ProtocolError", "Protocol error", CategoryProtocol, SeverityError},
}

// GetCodeInfo returns information about an error code
func GetCodeInfo(code int) (CodeInfo, bool) {
	info, exists := codeRegistry[code]
	return info, exists
}

// GetCodeName returns the name of an error code
func GetCodeName(code int) string {
	if info, exists := codeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}
