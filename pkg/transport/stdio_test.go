package transport

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	diagerrors "github.com/mcp-doctor/mcp-doctor-go/pkg/errors"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/protocol"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/testutil"
)

// stubServerCommand writes a shell script acting as a line-based JSON-RPC
// server and returns the command to launch it.
func stubServerCommand(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub servers need a unix shell")
	}

	path := filepath.Join(t.TempDir(), "server.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return "/bin/sh " + path
}

// echoScript answers initialize, tools/list and tools/call, echoing back the
// request id it finds on each line.
const echoScript = `while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"protocolVersion":"2024-11-05","serverInfo":{"name":"stub","version":"0.1.0"},"capabilities":{"tools":{}}}}\n' "$id" ;;
    *'"method":"tools/list"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"tools":[{"name":"echo","description":"repeats input"}]}}\n' "$id" ;;
    *'"method":"tools/call"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"content":[{"type":"text","text":"hello"}]}}\n' "$id" ;;
  esac
done
`

func TestStdioRoundTrip(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{
		Command:        stubServerCommand(t, echoScript),
		RequestTimeout: 5 * time.Second,
	})
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background()))

	result, err := Initialize(context.Background(), tr, "mcp-doctor", "0.1.0")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "stub", result.ServerInfo.Name)

	raw, err := tr.SendRequest(context.Background(), protocol.MethodListTools, nil)
	require.NoError(t, err)

	tools, skipped := protocol.ParseTools(raw)
	require.Len(t, tools, 1)
	assert.Zero(t, skipped)
	assert.Equal(t, "echo", tools[0].Name)
}

func TestStdioSkipsNonJSONOutput(t *testing.T) {
	script := `echo "Starting stub server..."
echo "not json at all"
` + echoScript

	tr := NewStdioTransport(StdioConfig{
		Command:        stubServerCommand(t, script),
		RequestTimeout: 5 * time.Second,
	})
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background()))

	_, err := tr.SendRequest(context.Background(), protocol.MethodInitialize, protocol.NewInitializeParams("mcp-doctor", "0.1.0"))
	require.NoError(t, err)
}

func TestStdioRequeuesMismatchedResponses(t *testing.T) {
	// The server emits a stale response before the real one.
	script := `while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  printf '{"jsonrpc":"2.0","id":999,"result":{"stale":true}}\n'
  printf '{"jsonrpc":"2.0","id":%s,"result":{"ok":true}}\n' "$id"
done
`

	tr := NewStdioTransport(StdioConfig{
		Command:        stubServerCommand(t, script),
		RequestTimeout: 5 * time.Second,
	})
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background()))

	raw, err := tr.SendRequest(context.Background(), protocol.MethodListTools, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestStdioServerError(t *testing.T) {
	script := `while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  printf '{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"no such method"}}\n' "$id"
done
`

	tr := NewStdioTransport(StdioConfig{
		Command:        stubServerCommand(t, script),
		RequestTimeout: 5 * time.Second,
	})
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background()))

	_, err := tr.SendRequest(context.Background(), "bogus/method", nil)
	require.Error(t, err)

	rpcErr, ok := err.(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestStdioResponseTimeout(t *testing.T) {
	script := `while read line; do
  :
done
`

	tr := NewStdioTransport(StdioConfig{
		Command:        stubServerCommand(t, script),
		RequestTimeout: 300 * time.Millisecond,
	})
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background()))

	_, err := tr.SendRequest(context.Background(), protocol.MethodListTools, nil)
	require.Error(t, err)
	assert.True(t, diagerrors.IsCode(err, diagerrors.CodeResponseTimeout))
}

func TestStdioProcessDeathSurfacesStderr(t *testing.T) {
	script := `read line
echo "fatal: missing API_KEY" >&2
exit 7
`

	tr := NewStdioTransport(StdioConfig{
		Command:        stubServerCommand(t, script),
		RequestTimeout: 5 * time.Second,
	})
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background()))

	_, err := tr.SendRequest(context.Background(), protocol.MethodInitialize, nil)
	require.Error(t, err)
	require.True(t, diagerrors.IsCode(err, diagerrors.CodeProcessTerminated))

	diagErr, _ := diagerrors.AsDiagError(err)
	data, ok := diagErr.Data().(*diagerrors.ProcessErrorData)
	require.True(t, ok)
	assert.Equal(t, 7, data.ExitCode)
	assert.Contains(t, data.Output, "missing API_KEY")
}

func TestStdioLaunchFailure(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "/nonexistent/binary-xyz"})
	err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, diagerrors.IsCode(err, diagerrors.CodeProcessLaunch))
}

func TestStdioCloseIsIdempotent(t *testing.T) {
	defer testutil.CheckGoroutines(t)()

	tr := NewStdioTransport(StdioConfig{
		Command:        stubServerCommand(t, echoScript),
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, tr.Connect(context.Background()))

	tr.Close()
	tr.Close()
}

func TestStdioCloseWithoutConnect(t *testing.T) {
	tr := NewStdioTransport(StdioConfig{Command: "npx whatever"})
	tr.Close()
}

func TestStdioServerName(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"npx firecrawl-mcp", "firecrawl-mcp"},
		{"npx -y firecrawl-mcp", "firecrawl-mcp"},
		{"node server.js", "node"},
		{"/bin/sh /tmp/server.sh", "/bin/sh"},
	}

	for _, tt := range tests {
		tr := NewStdioTransport(StdioConfig{Command: tt.command})
		assert.Equal(t, tt.want, tr.ServerName(), tt.command)
	}
}
