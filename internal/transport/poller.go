package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/pkg/models"
)

// DefaultPollTimeout bounds a single status probe. Probes are meant to be
// cheap; a display that cannot answer a bare GET quickly is offline.
const DefaultPollTimeout = 3 * time.Second

// Poller answers "is this display alive right now" with a bare GET against
// the device root. It never mutates update history and never returns an
// error to the caller: failures are folded into the report.
type Poller struct {
	client *http.Client
	logger *zap.Logger
}

// NewPoller creates a status poller. One client is shared across polls so
// repeated probes of the same panel reuse its connection; the per-poll
// timeout rides on the request context instead of the client.
func NewPoller(logger *zap.Logger) *Poller {
	return &Poller{
		client: &http.Client{},
		logger: logger,
	}
}

// Poll probes one display. An online device replies with a banner of the
// form "EINK {width}x{height} {MODE}"; the reported fields are parsed
// opportunistically and left empty when the banner is absent or malformed,
// without counting that against the device.
func (p *Poller) Poll(ctx context.Context, display *models.Display, timeout time.Duration) models.StatusReport {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	report := models.StatusReport{
		Name:                 display.Name,
		Addr:                 display.Addr(),
		ConfiguredResolution: display.Resolution(),
		ConfiguredMode:       display.Mode.String(),
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, display.URL("/"), nil)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if classifyError(err) == Timeout {
			report.Error = "timeout"
		} else {
			report.Error = fmt.Sprintf("connection failed: %v", err)
		}
		p.logger.Debug("Status poll failed",
			zap.String("display", display.Name),
			zap.String("error", report.Error))
		return report
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		report.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return report
	}

	report.Online = true
	report.LatencyMS = float64(latency.Microseconds()) / 1000.0

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if res, mode, ok := parseBanner(string(body)); ok {
		report.ReportedResolution = res
		report.ReportedMode = mode
	}
	return report
}

// parseBanner extracts resolution and mode from a device banner line like
// "EINK 800x480 BWR".
func parseBanner(body string) (resolution, mode string, ok bool) {
	fields := strings.Fields(strings.TrimSpace(body))
	if len(fields) < 3 || fields[0] != "EINK" {
		return "", "", false
	}
	if !strings.Contains(fields[1], "x") {
		return "", "", false
	}
	if _, known := models.ParseColorMode(fields[2]); !known {
		return "", "", false
	}
	return fields[1], fields[2], true
}
