package errors

import (
	"fmt"
	"time"
)

// ProcessErrorData contains structured data for server process failures
type ProcessErrorData struct {
	Command  string `json:"command,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Output   string `json:"output,omitempty"`
	Running  bool   `json:"running"`
}

// DiscoveryErrorData contains structured data for address discovery failures
type DiscoveryErrorData struct {
	Output       string   `json:"output,omitempty"`
	Hints        []string `json:"hints,omitempty"`
	ProcessState string   `json:"process_state,omitempty"`
	PortsTried   []int    `json:"ports_tried,omitempty"`
}

// TimeoutErrorData contains structured data for request timeouts
type TimeoutErrorData struct {
	Transport string        `json:"transport"`
	Method    string        `json:"method,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Timeout   time.Duration `json:"timeout"`
}

// HandshakeErrorData contains structured data for rejected handshakes
type HandshakeErrorData struct {
	Transport string `json:"transport"`
	RPCCode   int    `json:"rpc_code,omitempty"`
	RPCError  string `json:"rpc_error,omitempty"`
}

// SSEErrorData contains structured data for SSE stream failures
type SSEErrorData struct {
	Endpoint   string `json:"endpoint,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Retryable  bool   `json:"retryable"`
}

// ProcessLaunchError creates an error for a server process that failed to start
func ProcessLaunchError(command string, cause error) DiagError {
	message := "Failed to launch server process"
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(
		cause,
		CodeProcessLaunch,
		message,
		CategoryProcess,
		SeverityCritical,
	).WithData(&ProcessErrorData{
		Command: command,
		Running: false,
	})
}

// ProcessTerminatedError creates an error for a server process that exited
// while the client still needed it. Output carries the tail of the captured
// stderr so the operator sees the crash reason.
func ProcessTerminatedError(command string, exitCode int, output string) DiagError {
	return NewErrorf(
		CodeProcessTerminated,
		CategoryProcess,
		SeverityCritical,
		"Server process exited with code %d", exitCode,
	).WithData(&ProcessErrorData{
		Command:  command,
		ExitCode: exitCode,
		Output:   output,
		Running:  false,
	})
}

// AddressDiscoveryError creates an error for a launched server that never
// announced a usable address. The hints are rendered into the message so they
// reach the operator even when the structured data is dropped.
func AddressDiscoveryError(output, processState string, hints []string, portsTried []int) DiagError {
	message := "Could not determine server address from process output"
	for _, hint := range hints {
		message = fmt.Sprintf("%s\n  - %s", message, hint)
	}

	return NewError(
		CodeAddressDiscovery,
		message,
		CategoryDiscovery,
		SeverityCritical,
	).WithData(&DiscoveryErrorData{
		Output:       output,
		Hints:        hints,
		ProcessState: processState,
		PortsTried:   portsTried,
	})
}

// HandshakeError creates an error for an initialize request the server rejected
func HandshakeError(transport string, rpcCode int, rpcMessage string) DiagError {
	return NewErrorf(
		CodeHandshakeRejected,
		CategoryHandshake,
		SeverityCritical,
		"Server rejected initialization: %s (code %d)", rpcMessage, rpcCode,
	).WithData(&HandshakeErrorData{
		Transport: transport,
		RPCCode:   rpcCode,
		RPCError:  rpcMessage,
	})
}

// ResponseTimeoutError creates an error for a request that got no response
// within the deadline
func ResponseTimeoutError(transport, method, requestID string, timeout time.Duration) DiagError {
	return NewErrorf(
		CodeResponseTimeout,
		CategoryTimeout,
		SeverityError,
		"No response to %s within %v", method, timeout,
	).WithData(&TimeoutErrorData{
		Transport: transport,
		Method:    method,
		RequestID: requestID,
		Timeout:   timeout,
	})
}

// SSEConnectError creates an error for an SSE stream that could not be
// established
func SSEConnectError(endpoint string, statusCode int, cause error) DiagError {
	message := fmt.Sprintf("Failed to connect to SSE stream at %s", endpoint)
	if statusCode != 0 {
		message = fmt.Sprintf("%s (HTTP %d)", message, statusCode)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(
		cause,
		CodeSSEConnect,
		message,
		CategoryTransport,
		SeverityError,
	).WithData(&SSEErrorData{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Retryable:  true,
	})
}

// ProtocolError creates an error for malformed or unexpected protocol traffic
func ProtocolError(detail string, cause error) DiagError {
	if cause != nil {
		return WrapError(cause, CodeProtocolError, "Protocol error", CategoryProtocol, SeverityError).
			WithDetail(detail)
	}
	return NewError(CodeProtocolError, "Protocol error", CategoryProtocol, SeverityError).
		WithDetail(detail)
}

// OperationNotSupported creates an error for an operation the active transport
// cannot perform, such as tool invocation over a plain REST endpoint
func OperationNotSupported(transport, operation, guidance string) DiagError {
	message := fmt.Sprintf("%s is not supported by the %s transport", operation, transport)
	if guidance != "" {
		message = fmt.Sprintf("%s. %s", message, guidance)
	}
	return NewError(CodeMethodNotFound, message, CategoryProtocol, SeverityWarning)
}
