package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/codec"
	"github.com/paperframe/paperframe/pkg/models"
)

func init() {
	Register("newspaper", newNewspaper)
}

// Newspaper fetches a daily front-page scan and lays it out for a
// landscape panel. The download is cached by calendar date: once today's
// edition is on disk the source reports no update needed until the date
// changes.
type Newspaper struct {
	logger      *zap.Logger
	urlTemplate string
	cacheDir    string
	client      *http.Client

	lastDate string
	cached   image.Image
	now      func() time.Time
}

func newNewspaper(name string, cfg Config, deps Deps) (Source, error) {
	tmpl := cfg.String("url_template", "")
	if tmpl == "" {
		return nil, fmt.Errorf("url_template is required")
	}
	if !strings.Contains(tmpl, "{date}") {
		return nil, fmt.Errorf("url_template must contain a {date} placeholder")
	}
	cacheDir := cfg.String("cache_dir", filepath.Join("output", "cache"))
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Newspaper{
		logger:      deps.Logger,
		urlTemplate: tmpl,
		cacheDir:    cacheDir,
		client:      &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}, nil
}

// ShouldUpdate reports false while today's edition is already cached.
func (n *Newspaper) ShouldUpdate() bool {
	return n.lastDate != n.today() || n.cached == nil
}

func (n *Newspaper) today() string {
	return n.now().Format("2006-01-02")
}

func (n *Newspaper) cachePath(date string) string {
	return filepath.Join(n.cacheDir, "newspaper_"+date+".jpg")
}

// Generate lays out today's edition. The cached copy is reused when
// generation runs again the same day, for example for a second display on
// the same schedule.
func (n *Newspaper) Generate(ctx context.Context, width, height int, mode models.ColorMode) (image.Image, error) {
	date := n.today()
	if n.lastDate != date || n.cached == nil {
		img, err := n.load(ctx, date)
		if err != nil {
			return nil, err
		}
		n.cached = img
		n.lastDate = date
	}
	return n.layout(n.cached, width, height), nil
}

// load returns today's front page, from the date-keyed disk cache when
// present, downloading otherwise.
func (n *Newspaper) load(ctx context.Context, date string) (image.Image, error) {
	path := n.cachePath(date)
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		img, _, err := image.Decode(f)
		if err == nil {
			n.logger.Info("Using cached newspaper", zap.String("path", path))
			return img, nil
		}
		n.logger.Warn("Cached newspaper unreadable, re-downloading",
			zap.String("path", path), zap.Error(err))
	}

	url := strings.ReplaceAll(n.urlTemplate, "{date}", date)
	n.logger.Info("Downloading newspaper", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download newspaper: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download newspaper: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download newspaper: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		n.logger.Warn("Failed to cache newspaper", zap.Error(err))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode newspaper: %w", err)
	}
	n.logger.Info("Downloaded newspaper", zap.Int("bytes", len(data)))
	return img, nil
}

// layout converts the portrait scan into a landscape image: scale so the
// page width matches the display height, crop the top of the page to the
// display width, then rotate a quarter turn clockwise.
func (n *Newspaper) layout(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	aspect := float64(b.Dy()) / float64(b.Dx())
	scaled := codec.Fit(img, height, int(float64(height)*aspect))

	sb := scaled.Bounds()
	cropH := width
	if sb.Dy() < cropH {
		cropH = sb.Dy()
	}
	cropped := crop(scaled, image.Rect(sb.Min.X, sb.Min.Y, sb.Min.X+height, sb.Min.Y+cropH))

	return rotate90CW(cropped)
}

func crop(img image.Image, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

// rotate90CW rotates a quarter turn clockwise: (x, y) maps to
// (h-1-y, x) in the destination.
func rotate90CW(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(h-1-y, x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// Cleanup drops the in-memory edition; the disk cache stays for the next
// process.
func (n *Newspaper) Cleanup() error {
	n.cached = nil
	return nil
}
