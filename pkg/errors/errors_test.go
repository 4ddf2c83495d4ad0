package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDiagErrorInterface(t *testing.T) {
	tests := []struct {
		name     string
		err      DiagError
		wantCode int
		wantCat  Category
		wantSev  Severity
	}{
		{
			name:     "process launch",
			err:      ProcessLaunchError("npx demo-server", fmt.Errorf("exec: not found")),
			wantCode: CodeProcessLaunch,
			wantCat:  CategoryProcess,
			wantSev:  SeverityCritical,
		},
		{
			name:     "process terminated",
			err:      ProcessTerminatedError("npx demo-server", 1, "boom"),
			wantCode: CodeProcessTerminated,
			wantCat:  CategoryProcess,
			wantSev:  SeverityCritical,
		},
		{
			name:     "address discovery",
			err:      AddressDiscoveryError("no output", "running", []string{"check the port"}, []int{3000}),
			wantCode: CodeAddressDiscovery,
			wantCat:  CategoryDiscovery,
			wantSev:  SeverityCritical,
		},
		{
			name:     "handshake rejected",
			err:      HandshakeError("sse", -32600, "unsupported protocol version"),
			wantCode: CodeHandshakeRejected,
			wantCat:  CategoryHandshake,
			wantSev:  SeverityCritical,
		},
		{
			name:     "response timeout",
			err:      ResponseTimeoutError("stdio", "tools/list", "3", 5*time.Second),
			wantCode: CodeResponseTimeout,
			wantCat:  CategoryTimeout,
			wantSev:  SeverityError,
		},
		{
			name:     "sse connect",
			err:      SSEConnectError("http://localhost:3000/sse", 500, nil),
			wantCode: CodeSSEConnect,
			wantCat:  CategoryTransport,
			wantSev:  SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Code(); got != tt.wantCode {
				t.Errorf("Code() = %v, want %v", got, tt.wantCode)
			}
			if got := tt.err.Category(); got != tt.wantCat {
				t.Errorf("Category() = %v, want %v", got, tt.wantCat)
			}
			if got := tt.err.Severity(); got != tt.wantSev {
				t.Errorf("Severity() = %v, want %v", got, tt.wantSev)
			}
			if msg := tt.err.Error(); msg == "" {
				t.Error("Error() returned empty string")
			}
		})
	}
}

func TestErrorChaining(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ProcessLaunchError("npx demo-server", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestWithDetailImmutability(t *testing.T) {
	base := NewError(CodeProtocolError, "protocol error", CategoryProtocol, SeverityError)
	detailed := base.WithDetail("unexpected frame")

	if base.Details() != "" {
		t.Error("WithDetail modified the original error")
	}
	if detailed.Details() != "unexpected frame" {
		t.Errorf("Details() = %q, want %q", detailed.Details(), "unexpected frame")
	}

	stacked := detailed.WithDetail("second")
	if got := stacked.Details(); got != "unexpected frame; second" {
		t.Errorf("stacked Details() = %q", got)
	}
}

func TestErrorData(t *testing.T) {
	err := ResponseTimeoutError("sse", "tools/call", "abc", 10*time.Second)

	data, ok := err.Data().(*TimeoutErrorData)
	if !ok {
		t.Fatalf("Data() = %T, want *TimeoutErrorData", err.Data())
	}
	if data.Transport != "sse" || data.Method != "tools/call" || data.Timeout != 10*time.Second {
		t.Errorf("unexpected data: %+v", data)
	}
}

func TestCategoryAndCodeChecks(t *testing.T) {
	err := AddressDiscoveryError("", "exited", nil, nil)

	if !IsCategory(err, CategoryDiscovery) {
		t.Error("IsCategory(CategoryDiscovery) = false")
	}
	if IsCategory(err, CategoryTransport) {
		t.Error("IsCategory(CategoryTransport) = true")
	}
	if !IsCode(err, CodeAddressDiscovery) {
		t.Error("IsCode(CodeAddressDiscovery) = false")
	}
	if IsCode(fmt.Errorf("plain"), CodeAddressDiscovery) {
		t.Error("IsCode on a plain error = true")
	}
}

func TestDiscoveryHintsInMessage(t *testing.T) {
	hints := []string{"verify the package name", "try a different port"}
	err := AddressDiscoveryError("", "running", hints, []int{3000, 8080})

	for _, hint := range hints {
		if !strings.Contains(err.Error(), hint) {
			t.Errorf("Error() missing hint %q: %s", hint, err.Error())
		}
	}
}

func TestErrorSerialization(t *testing.T) {
	err := HandshakeError("sse", -32600, "bad version")

	payload, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Marshal failed: %v", marshalErr)
	}

	var decoded map[string]interface{}
	if unmarshalErr := json.Unmarshal(payload, &decoded); unmarshalErr != nil {
		t.Fatalf("Unmarshal failed: %v", unmarshalErr)
	}
	if decoded["code"].(float64) != float64(CodeHandshakeRejected) {
		t.Errorf("code = %v, want %d", decoded["code"], CodeHandshakeRejected)
	}
	if decoded["category"] != string(CategoryHandshake) {
		t.Errorf("category = %v", decoded["category"])
	}
}

func TestCodeRegistry(t *testing.T) {
	info, ok := GetCodeInfo(CodeProcessTerminated)
	if !ok {
		t.Fatal("CodeProcessTerminated not registered")
	}
	if info.Name != "ProcessTerminated" {
		t.Errorf("Name = %q", info.Name)
	}
	if GetCodeName(-1) != "UnknownError" {
		t.Errorf("GetCodeName(-1) = %q", GetCodeName(-1))
	}
}
