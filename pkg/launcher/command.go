// Package launcher starts MCP server processes from npx-style launch commands
// and discovers the address they serve on by watching their output.
package launcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
)

// envAssignmentPattern matches NAME=VALUE assignments, with or without a
// leading "export", in the prefix of a launch command.
var envAssignmentPattern = regexp.MustCompile(`(?:export\s+)?([A-Z_][A-Z0-9_]*)=([^\s&]+)`)

// IsLaunchCommand reports whether the command describes a server to launch
// via npx rather than a server already running somewhere. Only the final
// "&&"-separated segment counts; earlier segments carry env assignments.
func IsLaunchCommand(command string) bool {
	if strings.Contains(command, "&&") {
		parts := strings.Split(command, "&&")
		command = parts[len(parts)-1]
	}
	return strings.HasPrefix(strings.TrimSpace(command), "npx ")
}

// SplitCommand splits a launch command into the argv to execute and the
// environment assignments found before the final "&&" segment. Shell quoting
// in the argv part is respected.
func SplitCommand(command string) ([]string, map[string]string, error) {
	command = strings.TrimSpace(command)

	run := command
	env := map[string]string{}
	if idx := strings.LastIndex(command, "&&"); idx >= 0 {
		run = strings.TrimSpace(command[idx+2:])
		env = ParseEnvAssignments(command[:idx])
	}

	argv, err := shellquote.Split(run)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse command %q: %w", run, err)
	}
	if len(argv) == 0 {
		return nil, nil, fmt.Errorf("empty command")
	}

	return argv, env, nil
}

// ParseEnvAssignments extracts NAME=VALUE pairs from a command prefix such as
// `export API_KEY=xyz && FOO=bar`. Surrounding quotes on values are stripped.
func ParseEnvAssignments(prefix string) map[string]string {
	env := make(map[string]string)
	for _, m := range envAssignmentPattern.FindAllStringSubmatch(prefix, -1) {
		env[m[1]] = strings.Trim(m[2], `"'`)
	}
	return env
}

// MergeEnviron builds the environment for a launched process. Later sources
// win: assignments embedded in the command override configured variables,
// which override the ambient environment.
func MergeEnviron(ambient []string, configured, fromCommand map[string]string) []string {
	merged := make(map[string]string, len(ambient)+len(configured)+len(fromCommand))
	order := make([]string, 0, len(ambient)+len(configured)+len(fromCommand))

	set := func(key, value string) {
		if _, seen := merged[key]; !seen {
			order = append(order, key)
		}
		merged[key] = value
	}

	for _, kv := range ambient {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			set(kv[:idx], kv[idx+1:])
		}
	}
	for key, value := range configured {
		set(key, value)
	}
	for key, value := range fromCommand {
		set(key, value)
	}

	environ := make([]string, 0, len(order))
	for _, key := range order {
		environ = append(environ, key+"="+merged[key])
	}
	return environ
}

// sensitiveEnvPatterns flags variable names that must never be logged.
var sensitiveEnvPatterns = []string{
	"api_key", "apikey", "key", "secret", "password", "passwd", "pwd",
	"token", "auth", "credential", "cred", "private", "access", "session",
	"cookie", "oauth", "jwt", "bearer", "signature", "database_url",
	"db_url", "connection_string", "dsn",
}

// SafeEnvSummary renders an environment for logging: safe variable names are
// listed (truncated past five), sensitive ones are only counted.
func SafeEnvSummary(environ []string) string {
	var safe []string
	sensitive := 0

	for _, kv := range environ {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}

		lower := strings.ToLower(key)
		flagged := false
		for _, pattern := range sensitiveEnvPatterns {
			if strings.Contains(lower, pattern) {
				flagged = true
				break
			}
		}
		if flagged {
			sensitive++
		} else {
			safe = append(safe, key)
		}
	}

	var parts []string
	if len(safe) > 0 {
		if len(safe) <= 5 {
			parts = append(parts, fmt.Sprintf("safe: %v", safe))
		} else {
			parts = append(parts, fmt.Sprintf("safe: %v + %d more", safe[:3], len(safe)-3))
		}
	}
	if sensitive > 0 {
		parts = append(parts, fmt.Sprintf("sensitive: %d hidden", sensitive))
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
