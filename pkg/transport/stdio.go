package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	diagerrors "github.com/mcp-doctor/mcp-doctor-go/pkg/errors"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/launcher"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/logging"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/protocol"
)

const (
	// stdioQueueSize bounds how many unread server messages buffer up.
	stdioQueueSize = 256

	// stdioShutdownGrace is how long Close waits after SIGTERM.
	stdioShutdownGrace = 5 * time.Second

	// stderrTailLimit bounds the retained stderr for crash reports.
	stderrTailLimit = 8 * 1024
)

// StdioConfig configures a stdio transport.
type StdioConfig struct {
	// Command is the server launch command; env assignments in a prefix
	// before the final "&&" are applied to the subprocess.
	Command string

	// Env holds extra environment variables, overridden by assignments
	// embedded in Command.
	Env map[string]string

	// WorkingDir is the working directory for the subprocess.
	WorkingDir string

	// RequestTimeout bounds each request. Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Logger receives transport diagnostics. Nil means no logging.
	Logger logging.Logger
}

// StdioTransport speaks newline-framed JSON-RPC with a subprocess over its
// stdin and stdout.
type StdioTransport struct {
	*BaseTransport

	config StdioConfig
	logger logging.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writer  *bufio.Writer
	writeMu sync.Mutex

	queue chan *protocol.Message

	exitedFlag atomic.Bool
	exitStatus atomic.Int64
	exitedCh   chan struct{}

	stderrMu   sync.Mutex
	stderrTail []byte

	readers   errgroup.Group
	closeOnce sync.Once
}

// NewStdioTransport creates a transport for the given launch command. The
// subprocess starts on Connect.
func NewStdioTransport(config StdioConfig) *StdioTransport {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &StdioTransport{
		BaseTransport: NewBaseTransport(),
		config:        config,
		logger:        logger.WithFields(logging.String("component", "stdio")),
		queue:         make(chan *protocol.Message, stdioQueueSize),
		exitedCh:      make(chan struct{}),
	}
}

// Connect spawns the subprocess and starts the reader goroutines.
func (t *StdioTransport) Connect(ctx context.Context) error {
	argv, cmdEnv, err := launcher.SplitCommand(t.config.Command)
	if err != nil {
		return diagerrors.ProcessLaunchError(t.config.Command, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = launcher.MergeEnviron(os.Environ(), t.config.Env, cmdEnv)
	cmd.Dir = t.config.WorkingDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return diagerrors.ProcessLaunchError(t.config.Command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return diagerrors.ProcessLaunchError(t.config.Command, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return diagerrors.ProcessLaunchError(t.config.Command, err)
	}

	t.logger.Info("Starting stdio server", logging.String("command", strings.Join(argv, " ")))
	if err := cmd.Start(); err != nil {
		return diagerrors.ProcessLaunchError(t.config.Command, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.writer = bufio.NewWriter(stdin)

	go func() {
		state, err := cmd.Process.Wait()
		if err == nil {
			t.exitStatus.Store(int64(state.ExitCode()))
		}
		t.exitedFlag.Store(true)
		close(t.exitedCh)
	}()

	t.readers.Go(func() error {
		t.readLoop(stdout)
		return nil
	})
	t.readers.Go(func() error {
		t.collectStderr(stderr)
		return nil
	})

	t.logger.Debug("Stdio server started", logging.Int("pid", cmd.Process.Pid))
	return nil
}

// readLoop parses stdout lines into messages and queues them. Lines that are
// not JSON are server chatter, logged and skipped.
func (t *StdioTransport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.logger.Debug("Skipping non-JSON output", logging.String("line", line))
			continue
		}

		select {
		case t.queue <- &msg:
		default:
			t.logger.Warn("Message queue full, dropping message",
				logging.Any("id", msg.ID))
		}
	}

	if err := scanner.Err(); err != nil {
		t.logger.Debug("Stdout reader stopped", logging.ErrorField(err))
	}
}

// collectStderr keeps a bounded tail of stderr for crash reports.
func (t *StdioTransport) collectStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		t.logger.Debug("Server stderr", logging.String("line", line))

		t.stderrMu.Lock()
		t.stderrTail = append(t.stderrTail, line...)
		t.stderrTail = append(t.stderrTail, '\n')
		if len(t.stderrTail) > stderrTailLimit {
			t.stderrTail = t.stderrTail[len(t.stderrTail)-stderrTailLimit:]
		}
		t.stderrMu.Unlock()
	}
}

func (t *StdioTransport) stderrSnapshot() string {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()
	return string(t.stderrTail)
}

func (t *StdioTransport) writeMessage(msg *protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return diagerrors.ProtocolError("failed to encode message", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		return t.terminatedError()
	}
	if err := t.writer.Flush(); err != nil {
		return t.terminatedError()
	}
	return nil
}

func (t *StdioTransport) terminatedError() error {
	return diagerrors.ProcessTerminatedError(t.config.Command, int(t.exitStatus.Load()), t.stderrSnapshot())
}

// SendRequest writes a request line and polls the message queue for the
// matching response. Responses for other requests are requeued; server
// notifications are logged and dropped.
func (t *StdioTransport) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := t.NextID()
	msg, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, diagerrors.ProtocolError("failed to build request", err)
	}

	t.logger.Debug("Sending request",
		logging.String("method", method),
		logging.Any("id", id))

	if err := t.writeMessage(msg); err != nil {
		return nil, err
	}

	wantKey := protocol.IDKey(id)
	deadline := time.Now().Add(t.config.RequestTimeout)

	for {
		if t.exitedFlag.Load() && len(t.queue) == 0 {
			return nil, t.terminatedError()
		}
		if time.Now().After(deadline) {
			return nil, diagerrors.ResponseTimeoutError("stdio", method, wantKey, t.config.RequestTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case received := <-t.queue:
			if received.IsResponse() && protocol.IDKey(received.ID) == wantKey {
				if received.Error != nil {
					return nil, received.Error
				}
				return received.Result, nil
			}

			if received.IsResponse() {
				// A response for another in-flight request; put it back.
				select {
				case t.queue <- received:
				default:
					t.logger.Warn("Dropping response, queue full", logging.Any("id", received.ID))
				}
				time.Sleep(10 * time.Millisecond)
			} else {
				t.logger.Debug("Ignoring server message",
					logging.String("method", received.Method))
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SendNotification writes a notification line. Nothing is awaited.
func (t *StdioTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		return diagerrors.ProtocolError("failed to build notification", err)
	}

	t.logger.Debug("Sending notification", logging.String("method", method))
	return t.writeMessage(msg)
}

// Close shuts the subprocess down: stdin closes, SIGTERM, a bounded grace
// period, then SIGKILL. Never fails.
func (t *StdioTransport) Close() {
	t.closeOnce.Do(func() {
		if t.cmd == nil || t.cmd.Process == nil {
			return
		}

		if t.stdin != nil {
			t.stdin.Close()
		}

		if !t.exitedFlag.Load() {
			if err := t.cmd.Process.Signal(syscall.SIGTERM); err != nil {
				t.logger.Debug("SIGTERM failed", logging.ErrorField(err))
			}

			select {
			case <-t.exitedCh:
			case <-time.After(stdioShutdownGrace):
				t.logger.Warn("Graceful shutdown timed out, forcing kill")
				if err := t.cmd.Process.Kill(); err != nil {
					t.logger.Error("Failed to kill server process", logging.ErrorField(err))
				}
				<-t.exitedCh
			}
		}

		// Readers finish once the pipes report EOF.
		done := make(chan struct{})
		go func() {
			t.readers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.logger.Warn("Reader goroutines did not finish in time")
		}

		t.CancelAll()
		t.logger.Info("Stdio transport closed")
	})
}

// ServerName derives a display name for the server from its launch command.
func (t *StdioTransport) ServerName() string {
	argv, _, err := launcher.SplitCommand(t.config.Command)
	if err != nil || len(argv) == 0 {
		return t.config.Command
	}
	if argv[0] == "npx" && len(argv) > 1 {
		for _, arg := range argv[1:] {
			if !strings.HasPrefix(arg, "-") {
				return arg
			}
		}
	}
	return argv[0]
}

var _ Transport = (*StdioTransport)(nil)
