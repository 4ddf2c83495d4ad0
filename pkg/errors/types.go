// Package errors provides structured error handling for the diagnostic
// client. It defines typed errors that map to JSON-RPC style error codes and
// carry enough context to explain a failed probe to the operator.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Category classifies an error for handling and reporting
type Category string

const (
	CategoryProcess   Category = "process"
	CategoryDiscovery Category = "discovery"
	CategoryTransport Category = "transport"
	CategoryHandshake Category = "handshake"
	CategoryTimeout   Category = "timeout"
	CategoryProtocol  Category = "protocol"
	CategoryInternal  Category = "internal"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context records where and when an error occurred
type Context struct {
	RequestID string    `json:"request_id,omitempty"`
	Method    string    `json:"method,omitempty"`
	Transport string    `json:"transport,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component,omitempty"`
}

// DiagError is the interface implemented by every error this module
// produces. The With* methods copy; an error in flight is never mutated.
type DiagError interface {
	error

	Code() int
	Message() string
	Details() string
	Data() interface{}
	Category() Category
	Severity() Severity
	Context() *Context

	WithContext(ctx *Context) DiagError
	WithDetail(detail string) DiagError
	WithData(data interface{}) DiagError

	Unwrap() error
	ToJSON() map[string]interface{}
}

type diagError struct {
	code     int
	category Category
	severity Severity
	message  string
	details  string
	data     interface{}
	context  *Context
	wrapped  error
}

func newDiagError(code int, message string, category Category, severity Severity, wrapped error) *diagError {
	return &diagError{
		code:     code,
		category: category,
		severity: severity,
		message:  message,
		wrapped:  wrapped,
		context:  &Context{Timestamp: time.Now()},
	}
}

func (e *diagError) Error() string {
	if e.details == "" {
		return e.message
	}
	return e.message + ": " + e.details
}

func (e *diagError) Code() int          { return e.code }
func (e *diagError) Message() string    { return e.message }
func (e *diagError) Details() string    { return e.details }
func (e *diagError) Data() interface{}  { return e.data }
func (e *diagError) Category() Category { return e.category }
func (e *diagError) Severity() Severity { return e.severity }
func (e *diagError) Context() *Context  { return e.context }
func (e *diagError) Unwrap() error      { return e.wrapped }

func (e *diagError) clone() *diagError {
	copied := *e
	return &copied
}

func (e *diagError) WithContext(ctx *Context) DiagError {
	copied := e.clone()
	copied.context = ctx
	return copied
}

// WithDetail appends to any detail already present.
func (e *diagError) WithDetail(detail string) DiagError {
	copied := e.clone()
	if copied.details == "" {
		copied.details = detail
	} else {
		copied.details += "; " + detail
	}
	return copied
}

func (e *diagError) WithData(data interface{}) DiagError {
	copied := e.clone()
	copied.data = data
	return copied
}

// ToJSON flattens the error for reports and log payloads.
func (e *diagError) ToJSON() map[string]interface{} {
	doc := map[string]interface{}{
		"code":     e.code,
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}
	if e.details != "" {
		doc["details"] = e.details
	}
	if e.data != nil {
		doc["data"] = e.data
	}
	if e.context != nil {
		doc["context"] = e.context
	}
	if e.wrapped != nil {
		doc["cause"] = e.wrapped.Error()
	}
	return doc
}

func (e *diagError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSON())
}

// NewError creates a DiagError with no underlying cause.
func NewError(code int, message string, category Category, severity Severity) DiagError {
	return newDiagError(code, message, category, severity, nil)
}

// NewErrorf is NewError with a formatted message.
func NewErrorf(code int, category Category, severity Severity, format string, args ...interface{}) DiagError {
	return newDiagError(code, fmt.Sprintf(format, args...), category, severity, nil)
}

// WrapError attaches diagnostic classification to an existing error. The
// cause stays reachable through errors.Is and errors.As.
func WrapError(err error, code int, message string, category Category, severity Severity) DiagError {
	return newDiagError(code, message, category, severity, err)
}

// AsDiagError finds the first DiagError in the chain.
func AsDiagError(err error) (DiagError, bool) {
	var diagErr DiagError
	if stderrors.As(err, &diagErr) {
		return diagErr, true
	}
	return nil, false
}

// IsDiagError reports whether the chain contains a DiagError.
func IsDiagError(err error) bool {
	_, ok := AsDiagError(err)
	return ok
}

// IsCategory reports whether the error is a DiagError of the given category.
func IsCategory(err error, category Category) bool {
	diagErr, ok := AsDiagError(err)
	return ok && diagErr.Category() == category
}

// IsCode reports whether the error is a DiagError carrying the given code.
func IsCode(err error, code int) bool {
	diagErr, ok := AsDiagError(err)
	return ok && diagErr.Code() == code
}
