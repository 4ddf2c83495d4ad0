package transport

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mcp-doctor/mcp-doctor-go/pkg/logging"
)

// Kind names the protocol a probed endpoint speaks.
type Kind string

const (
	// KindSSE marks an endpoint serving an event stream.
	KindSSE Kind = "sse"
	// KindHTTP marks a plain HTTP endpoint.
	KindHTTP Kind = "http"
)

// probeTimeout bounds each probe request. SSE endpoints accept the GET and
// then stream forever, so a timeout on the GET is itself a signal.
const probeTimeout = 3 * time.Second

// ProbeEndpoint decides whether a URL serves SSE or plain HTTP. A HEAD
// request is tried first since it cannot hang on a stream; endpoints that
// reject HEAD or answer ambiguously get a short GET. A GET that times out
// while connected is treated as a stream.
func ProbeEndpoint(ctx context.Context, url string, headers map[string]string, logger logging.Logger) Kind {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := &http.Client{Timeout: probeTimeout}

	if kind, decided := probeOnce(ctx, client, http.MethodHead, url, headers); decided {
		logger.Debug("Probe decided from HEAD", logging.String("kind", string(kind)))
		return kind
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return KindHTTP
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			// Connected but never finished: almost certainly a stream.
			logger.Debug("Probe GET timed out, assuming SSE")
			return KindSSE
		}
		logger.Debug("Probe GET failed", logging.ErrorField(err))
		return KindHTTP
	}
	defer resp.Body.Close()

	if looksLikeSSE(resp) {
		logger.Debug("Probe decided from GET", logging.String("kind", string(KindSSE)))
		return KindSSE
	}
	return KindHTTP
}

// probeOnce runs one request and reports whether it was conclusive for SSE.
func probeOnce(ctx context.Context, client *http.Client, method, url string, headers map[string]string) (Kind, bool) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return KindHTTP, false
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return KindHTTP, false
	}
	defer resp.Body.Close()

	if looksLikeSSE(resp) {
		return KindSSE, true
	}
	return KindHTTP, false
}

// looksLikeSSE recognizes the two ways SSE endpoints answer a plain probe:
// 406 Not Acceptable (the request lacked Accept: text/event-stream) or an
// event-stream content type.
func looksLikeSSE(resp *http.Response) bool {
	if resp.StatusCode == http.StatusNotAcceptable {
		return true
	}
	contentType := resp.Header.Get("Content-Type")
	return strings.Contains(strings.ToLower(contentType), "text/event-stream")
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
