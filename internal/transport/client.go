// Package transport moves encoded payloads to display devices over HTTP
// and polls them for liveness. The devices are resource-starved
// microcontrollers: requests are single-shot with a bounded timeout and no
// retry, and a device that just rendered may be asleep and simply time out
// until its next wake.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/pkg/models"
)

// DefaultTimeout bounds a single delivery attempt. E-paper refreshes can
// take tens of seconds on large panels.
const DefaultTimeout = 30 * time.Second

// OutcomeKind classifies a delivery attempt.
type OutcomeKind int

const (
	// Success means the device accepted the payload with HTTP 200.
	Success OutcomeKind = iota
	// HTTPError means the device answered with a non-200 status.
	HTTPError
	// ConnectionFailure means the device could not be reached.
	ConnectionFailure
	// Timeout means the attempt exceeded the client timeout.
	Timeout
)

// String returns a short tag for logs and history messages.
func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case HTTPError:
		return "http_error"
	case ConnectionFailure:
		return "connection_failure"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// Outcome is the classified result of one delivery attempt.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       string
	Err        error
	Latency    time.Duration
}

// OK reports whether the delivery succeeded.
func (o Outcome) OK() bool { return o.Kind == Success }

// Message renders the outcome as a history error message.
func (o Outcome) Message() string {
	switch o.Kind {
	case Success:
		return "ok"
	case HTTPError:
		return fmt.Sprintf("HTTP %d: %s", o.StatusCode, o.Body)
	case Timeout:
		return fmt.Sprintf("timeout: %v", o.Err)
	default:
		return fmt.Sprintf("connection failed: %v", o.Err)
	}
}

// Client delivers encoded payloads to displays.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a delivery client. A zero timeout falls back to
// DefaultTimeout.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Send POSTs the payload to the display's /update endpoint and classifies
// the result. Recording the outcome is the caller's job; this layer has no
// side effects beyond the network call.
func (c *Client) Send(ctx context.Context, display *models.Display, payload []byte) Outcome {
	url := display.URL("/update")
	c.logger.Info("Sending payload",
		zap.String("display", display.Name),
		zap.String("url", url),
		zap.Int("bytes", len(payload)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Outcome{Kind: ConnectionFailure, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(payload))

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Outcome{Kind: classifyError(err), Err: err, Latency: latency}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if resp.StatusCode != http.StatusOK {
		return Outcome{
			Kind:       HTTPError,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
			Latency:    latency,
		}
	}

	c.logger.Info("Delivery successful",
		zap.String("display", display.Name),
		zap.Duration("latency", latency))
	return Outcome{Kind: Success, StatusCode: resp.StatusCode, Latency: latency}
}

// classifyError separates timeouts from other connection failures.
func classifyError(err error) OutcomeKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return Timeout
	}
	return ConnectionFailure
}
