package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/pkg/models"
)

func init() {
	Register("browser", newBrowser)
}

// Default locations tried when no browser_path is configured.
var browserCandidates = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
}

// Browser renders an HTML file to a raster image by running a headless
// Chromium screenshot. Used for layouts that are easier to build in
// HTML/CSS than with the drawing toolkit, such as weather panels.
type Browser struct {
	logger   *zap.Logger
	htmlPath string
	binary   string
	timeout  time.Duration
	workDir  string
}

func newBrowser(name string, cfg Config, deps Deps) (Source, error) {
	htmlPath := cfg.String("html_path", "")
	if htmlPath == "" {
		return nil, fmt.Errorf("html_path is required")
	}
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("html file: %w", err)
	}

	binary := cfg.String("browser_path", "")
	if binary == "" {
		for _, candidate := range browserCandidates {
			if _, err := os.Stat(candidate); err == nil {
				binary = candidate
				break
			}
		}
	}
	if binary == "" {
		return nil, fmt.Errorf("no chromium binary found (set browser_path)")
	}

	workDir, err := os.MkdirTemp("", "paperframe-browser-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	return &Browser{
		logger:   deps.Logger,
		htmlPath: abs,
		binary:   binary,
		timeout:  time.Duration(cfg.Int("timeout_seconds", 60)) * time.Second,
		workDir:  workDir,
	}, nil
}

func (b *Browser) ShouldUpdate() bool { return true }

// Generate shells out to the browser for a one-shot screenshot. The
// process is bounded by the source timeout so a hung renderer cannot stall
// the scheduling loop past the job boundary.
func (b *Browser) Generate(ctx context.Context, width, height int, mode models.ColorMode) (image.Image, error) {
	shot := filepath.Join(b.workDir, "screenshot.png")
	_ = os.Remove(shot)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := []string{
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--hide-scrollbars",
		fmt.Sprintf("--window-size=%d,%d", width, height),
		"--screenshot=" + shot,
		"file://" + b.htmlPath,
	}
	cmd := exec.CommandContext(ctx, b.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	b.logger.Debug("Rendering HTML snapshot",
		zap.String("binary", b.binary),
		zap.String("html", b.htmlPath))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("browser render: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(shot)
	if err != nil {
		return nil, fmt.Errorf("browser produced no screenshot: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

// Cleanup removes the screenshot scratch directory.
func (b *Browser) Cleanup() error {
	return os.RemoveAll(b.workDir)
}
