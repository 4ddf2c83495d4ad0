package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mcp-doctor/mcp-doctor-go/pkg/errors"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/logging"
)

// DefaultTimeout bounds how long a launched server may take to announce its
// address.
const DefaultTimeout = 30 * time.Second

// shutdownGrace is how long Stop waits after SIGTERM before killing.
const shutdownGrace = 5 * time.Second

// Config describes a server to launch.
type Config struct {
	// Command is the full launch command, e.g.
	// "export API_KEY=xyz && npx firecrawl-mcp".
	Command string

	// Env holds extra environment variables for the process. Assignments
	// embedded in Command take precedence over these.
	Env map[string]string

	// WorkingDir is the working directory for the process.
	WorkingDir string

	// Timeout bounds address discovery. Zero means DefaultTimeout.
	Timeout time.Duration

	// Port, when set, is probed first during fallback detection.
	Port int

	// LogEnv enables the safe environment summary in launch logs.
	LogEnv bool

	// Logger receives launch progress. Nil means no logging.
	Logger logging.Logger
}

// ServerProcess manages one launched server process.
type ServerProcess struct {
	config Config
	logger logging.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	serverURL string

	exitedFlag atomic.Bool
	exitStatus atomic.Int64
	exitedCh   chan struct{}
}

// NewServerProcess creates a process manager for the given config.
func NewServerProcess(config Config) *ServerProcess {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &ServerProcess{
		config:   config,
		logger:   logger.WithFields(logging.String("component", "launcher")),
		exitedCh: make(chan struct{}),
	}
}

// Start launches the process and blocks until it announces a server address,
// dies, or the startup timeout expires. The process is stopped before any
// error is returned.
func (s *ServerProcess) Start(ctx context.Context) (string, error) {
	argv, cmdEnv, err := SplitCommand(s.config.Command)
	if err != nil {
		return "", errors.ProcessLaunchError(s.config.Command, err)
	}
	if argv[0] != "npx" {
		return "", errors.ProcessLaunchError(s.config.Command,
			fmt.Errorf("command must start with 'npx', got %q", argv[0]))
	}

	environ := MergeEnviron(os.Environ(), s.config.Env, cmdEnv)

	s.logger.Info("Starting server process",
		logging.String("command", strings.Join(argv, " ")),
		logging.String("working_dir", s.config.WorkingDir))
	if s.config.LogEnv {
		s.logger.Info("Environment variables", logging.String("env", SafeEnvSummary(environ)))
	} else {
		s.logger.Debug("Environment variable logging disabled")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = environ
	cmd.Dir = s.config.WorkingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.ProcessLaunchError(s.config.Command, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", errors.ProcessLaunchError(s.config.Command, err)
	}

	if err := cmd.Start(); err != nil {
		return "", errors.ProcessLaunchError(s.config.Command, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdout = stdout
	s.stderr = stderr
	s.mu.Unlock()

	s.logger.Info("Process started", logging.Int("pid", cmd.Process.Pid))

	// Wait on the process directly so the pipes stay open for the
	// discovery loop.
	go func() {
		state, err := cmd.Process.Wait()
		if err == nil {
			s.exitStatus.Store(int64(state.ExitCode()))
		}
		s.exitedFlag.Store(true)
		close(s.exitedCh)
	}()

	url, err := s.waitForAddress(ctx)
	if err != nil {
		s.Stop()
		return "", err
	}

	s.mu.Lock()
	s.serverURL = url
	s.mu.Unlock()

	s.logger.Info("Server started", logging.String("address", url))
	return url, nil
}

// URL returns the discovered server address, or empty before Start succeeds.
func (s *ServerProcess) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverURL
}

// Stop terminates the process: SIGTERM, a bounded grace period, then SIGKILL.
// Safe to call multiple times and on a process that never started.
func (s *ServerProcess) Stop() {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	if s.exitedFlag.Load() {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Debug("SIGTERM failed", logging.ErrorField(err))
	}

	select {
	case <-s.exitedCh:
	case <-time.After(shutdownGrace):
		s.logger.Warn("Graceful shutdown timed out, forcing kill")
		if err := cmd.Process.Kill(); err != nil {
			s.logger.Error("Failed to kill server process", logging.ErrorField(err))
		}
		<-s.exitedCh
	}

	s.mu.Lock()
	s.serverURL = ""
	s.mu.Unlock()

	s.logger.Info("Server process stopped")
}

func (s *ServerProcess) exited() bool {
	return s.exitedFlag.Load()
}

func (s *ServerProcess) exitCode() int {
	return int(s.exitStatus.Load())
}

// Manager tracks several launched servers and stops them all on shutdown.
type Manager struct {
	mu      sync.Mutex
	servers map[string]*ServerProcess
	logger  logging.Logger
}

// NewManager creates an empty server manager.
func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		servers: make(map[string]*ServerProcess),
		logger:  logger,
	}
}

// Launch starts a server from the config and tracks it under its URL.
func (m *Manager) Launch(ctx context.Context, config Config) (string, error) {
	if config.Logger == nil {
		config.Logger = m.logger
	}

	server := NewServerProcess(config)
	url, err := server.Start(ctx)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.servers[url] = server
	m.mu.Unlock()

	return url, nil
}

// Stop stops the server tracked under the URL, if any.
func (m *Manager) Stop(url string) {
	m.mu.Lock()
	server := m.servers[url]
	delete(m.servers, url)
	m.mu.Unlock()

	if server != nil {
		server.Stop()
	}
}

// StopAll stops every tracked server.
func (m *Manager) StopAll() {
	m.mu.Lock()
	servers := make([]*ServerProcess, 0, len(m.servers))
	for _, server := range m.servers {
		servers = append(servers, server)
	}
	m.servers = make(map[string]*ServerProcess)
	m.mu.Unlock()

	for _, server := range servers {
		server.Stop()
	}
}

// Active returns the URLs of all tracked servers.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	urls := make([]string, 0, len(m.servers))
	for url := range m.servers {
		urls = append(urls, url)
	}
	return urls
}
