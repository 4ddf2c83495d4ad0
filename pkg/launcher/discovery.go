package launcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mcp-doctor/mcp-doctor-go/pkg/errors"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/logging"
)

// addressPatterns are tried in order against each output line; the first
// pattern that yields a valid address wins. Announcement phrasings come
// before bare URLs so a line mentioning several URLs resolves to the one the
// server actually announced.
var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:server|mcp)\s+(?:running|started|listening)\s+(?:on|at)?\s*(https?://\S+)`),
	regexp.MustCompile(`(?i)(?:available|serving)\s+(?:on|at)?\s*(https?://\S+)`),
	regexp.MustCompile(`(?i)url:\s*(https?://\S+)`),
	regexp.MustCompile(`(?i)listening\s+(?:on|at)?\s*(https?://\S+)`),
	regexp.MustCompile(`(?i)(https?://(?:localhost|127\.0\.0\.1):\d+(?:/\S*)?)`),
	regexp.MustCompile(`(?i)(http://[^\s:]+:\d+(?:/\S*)?)`),
	regexp.MustCompile(`(?i)port\s+(\d+)`),
	regexp.MustCompile(`(?i)(?:localhost|127\.0\.0\.1):(\d+)`),
}

var allDigits = regexp.MustCompile(`^\d+$`)

// ExtractServerAddress scans one line of process output for a server address.
// A bare port number resolves to http://localhost:<port>. Returns the empty
// string when the line announces nothing usable.
func ExtractServerAddress(line string) string {
	for _, pattern := range addressPatterns {
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		candidate := strings.TrimRight(match[1], ".,;")
		if allDigits.MatchString(candidate) {
			candidate = "http://localhost:" + candidate
		}
		if isValidAddress(candidate) {
			return candidate
		}
	}
	return ""
}

// isValidAddress accepts only local http(s) URLs with an explicit port.
func isValidAddress(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	if !strings.Contains(url, "localhost") && !strings.Contains(url, "127.0.0.1") {
		return false
	}
	rest := strings.SplitN(url, "//", 2)[1]
	return strings.Contains(rest, ":")
}

// fallbackPorts are probed when the server never announced an address.
// Best-effort ordering of ports MCP servers commonly pick.
var fallbackPorts = []int{3000, 3001, 8000, 8080, 4000, 5000, 9000}

// waitForAddress watches the process output until a server address appears,
// the process dies, or the startup timeout expires. On timeout it falls back
// to probing common ports before giving up.
func (s *ServerProcess) waitForAddress(ctx context.Context) (string, error) {
	timeout := s.config.Timeout
	start := time.Now()
	deadline := start.Add(timeout)

	s.logger.Info("Waiting for server to announce its address",
		logging.Duration("timeout", timeout))

	stdout := newOutputReader(s.stdout)
	stderr := newOutputReader(s.stderr)

	var outputLines []string
	var stdoutTail, stderrTail string
	lastActivity := start
	inactivityWarned := false
	stalledWarned := false

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	iteration := 0
	for time.Now().Before(deadline) {
		iteration++

		if iteration%50 == 0 {
			s.logger.Info("Still waiting for server",
				logging.Duration("elapsed", time.Since(start).Round(100*time.Millisecond)),
				logging.Bool("process_alive", !s.exited()))

			silence := time.Since(lastActivity)
			if silence > 10*time.Second && !inactivityWarned {
				inactivityWarned = true
				s.logger.Warn("No output received from the server process",
					logging.Duration("silence", silence.Round(time.Second)))
			}
			if silence > 20*time.Second && !s.exited() && !stalledWarned {
				stalledWarned = true
				s.logger.Warn("Process is running but producing no output; the package may be downloading, logging elsewhere, or waiting for input")
			}
		}

		scan := func(r outputReader, tail *string, stream string) string {
			data, err := r.read()
			if err != nil || data == "" {
				return ""
			}
			lastActivity = time.Now()
			inactivityWarned = false
			stalledWarned = false

			*tail += data
			lines := strings.Split(*tail, "\n")
			*tail = lines[len(lines)-1]

			for _, line := range lines[:len(lines)-1] {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				outputLines = append(outputLines, fmt.Sprintf("%s: %s", stream, line))
				s.logger.Info("Server output",
					logging.String("stream", stream),
					logging.String("line", line))

				if url := ExtractServerAddress(line); url != "" {
					return url
				}
			}
			return ""
		}

		if url := scan(stdout, &stdoutTail, "stdout"); url != "" {
			s.logger.Info("Found server address", logging.String("address", url))
			return url, nil
		}
		if url := scan(stderr, &stderrTail, "stderr"); url != "" {
			s.logger.Info("Found server address in stderr", logging.String("address", url))
			return url, nil
		}

		if s.exited() {
			// Pick up whatever the dying process flushed last.
			scan(stdout, &stdoutTail, "stdout")
			scan(stderr, &stderrTail, "stderr")
			combined := strings.Join(outputLines, "\n")
			return "", errors.ProcessTerminatedError(s.config.Command, s.exitCode(), combined)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}

	s.logger.Warn("Startup timeout reached, probing common ports",
		logging.Duration("timeout", timeout))

	ports := fallbackPorts
	if s.config.Port > 0 {
		ports = append([]int{s.config.Port}, fallbackPorts...)
	}
	if url := probePorts(ctx, ports, s.logger); url != "" {
		s.logger.Info("Fallback detection found a server", logging.String("address", url))
		return url, nil
	}

	combined := strings.Join(outputLines, "\n")
	state := "running"
	if s.exited() {
		state = fmt.Sprintf("terminated (exit code: %d)", s.exitCode())
	}

	return "", errors.AddressDiscoveryError(combined, state, troubleshootingHints(combined, state, s.config.Command), ports)
}

// probePorts checks each port with a TCP dial, then confirms with a quick GET.
func probePorts(ctx context.Context, ports []int, logger logging.Logger) string {
	client := &http.Client{Timeout: 2 * time.Second}

	for _, port := range ports {
		if ctx.Err() != nil {
			return ""
		}

		addr := fmt.Sprintf("localhost:%d", port)
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			logger.Debug("Port probe failed",
				logging.Int("port", port),
				logging.ErrorField(err))
			continue
		}
		conn.Close()

		url := fmt.Sprintf("http://localhost:%d", port)
		resp, err := client.Get(url)
		if err != nil {
			continue
		}
		resp.Body.Close()
		return url
	}
	return ""
}

// troubleshootingHints explains the most likely causes of a discovery failure
// to the operator.
func troubleshootingHints(output, processState, command string) []string {
	var hints []string

	if strings.TrimSpace(output) == "" {
		hints = append(hints,
			"The process produced no output: the package may still be downloading, the package name may be wrong, or it may not start an HTTP server")
	}
	if strings.HasPrefix(processState, "running") {
		hints = append(hints,
			"Process is still running but not responding; check whether the package needs extra configuration or starts an HTTP server by default")
	}
	if strings.HasPrefix(processState, "terminated") {
		hints = append(hints,
			"Process terminated unexpectedly; check that the package exists, is an MCP server, and has its required environment variables set")
	}

	if argv, _, err := SplitCommand(command); err == nil && len(argv) > 1 {
		hints = append(hints, fmt.Sprintf("To debug manually, run: %s", strings.Join(argv, " ")))
		hints = append(hints, fmt.Sprintf("Or check the package exists: npx %s --help", argv[1]))
	}

	return hints
}
