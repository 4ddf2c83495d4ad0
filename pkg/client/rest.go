package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mcp-doctor/mcp-doctor-go/pkg/logging"
	"github.com/mcp-doctor/mcp-doctor-go/pkg/protocol"
)

// restBodyLimit bounds how much of a REST response is read.
const restBodyLimit = 10 * 1024 * 1024

// snippet trims a response body for error messages.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// restGet fetches a URL and returns the body, converting the usual failure
// modes into messages that tell the operator what to check.
func (c *Client) restGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range c.opts.Headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug("REST request", logging.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MCP server at %s: %w. Make sure the server is running and accessible", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, restBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("MCP server not found at %s (404). Make sure the server is running and MCP is mounted at the correct path", url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server at %s returned status %d. Response: %s", url, resp.StatusCode, snippet(body))
	}

	return body, nil
}

// restServerInfo reads the info document a plain HTTP server exposes at its
// root URL.
func (c *Client) restServerInfo(ctx context.Context) (*protocol.ServerInfo, error) {
	url := c.ServerURL()

	body, err := c.restGet(ctx, url)
	if err != nil {
		return nil, err
	}

	var info protocol.ServerInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("invalid JSON response from server: %w. Response content: %s", err, snippet(body))
	}

	if info.ServerName == "" {
		info.ServerName = "Unknown"
	}
	if info.Capabilities == nil {
		info.Capabilities = map[string]interface{}{}
	}
	return &info, nil
}

// restListTools reads the tool catalog from the same document.
func (c *Client) restListTools(ctx context.Context) ([]protocol.Tool, error) {
	url := c.ServerURL()

	body, err := c.restGet(ctx, url)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON response when fetching tools. Response content: %s", snippet(body))
	}

	return c.parseTools(body), nil
}
