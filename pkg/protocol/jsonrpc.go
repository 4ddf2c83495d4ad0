package protocol

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the supported JSON-RPC version.
const JSONRPCVersion = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	ParseError     int = -32700
	InvalidRequest int = -32600
	MethodNotFound int = -32601
	InvalidParams  int = -32602
	InternalError  int = -32603
)

// Message is a JSON-RPC 2.0 message in the single combined shape MCP servers
// exchange: a request carries ID and Method, a notification carries Method
// only, and a response carries ID plus exactly one of Result or Error.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest creates a request message with the given id, method and params.
func NewRequest(id interface{}, method string, params interface{}) (*Message, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// NewNotification creates a notification message: a method with no id, for
// which no response is ever expected.
func NewNotification(method string, params interface{}) (*Message, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	return &Message{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// IsResponse reports whether the message is a response: it carries an id, no
// method, and at least one of result or error.
func (m *Message) IsResponse() bool {
	return m.ID != nil && m.Method == "" && (len(m.Result) > 0 || m.Error != nil)
}

// IsNotification reports whether the message is a notification.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// IDKey normalizes a message id for correlation-map lookup. JSON numbers
// decode as float64, so an integer id sent as 7 and received as 7.0 must map
// to the same key.
func IDKey(id interface{}) string {
	return fmt.Sprintf("%v", id)
}
