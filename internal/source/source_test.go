package source

import (
	"context"
	"image"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/pkg/models"
)

func testDeps() Deps {
	return Deps{Logger: zap.NewNop()}
}

func TestRegistry(t *testing.T) {
	t.Run("all built-in tags are registered", func(t *testing.T) {
		tags := Tags()
		want := map[string]bool{
			"browser": false, "calendar": false, "dashboard": false,
			"newspaper": false, "photo": false, "stocks": false,
		}
		for _, tag := range tags {
			if _, known := want[tag]; known {
				want[tag] = true
			}
		}
		for tag, seen := range want {
			if !seen {
				t.Errorf("tag %q not registered", tag)
			}
		}
	})

	t.Run("unknown tag is an error", func(t *testing.T) {
		_, err := New("teleprinter", "office", nil, testDeps())
		if err == nil {
			t.Fatal("expected error for unknown tag")
		}
	})

	t.Run("factory errors carry the instance name", func(t *testing.T) {
		// newspaper requires url_template
		_, err := New("newspaper", "frontpage", Config{}, testDeps())
		if err == nil {
			t.Fatal("expected factory error")
		}
	})
}

func TestConfigAccessors(t *testing.T) {
	// Values typed the way yaml.v3 decodes them
	cfg := Config{
		"name":    "desk",
		"count":   7,
		"ratio":   2.5,
		"enabled": true,
		"symbols": []interface{}{"AAPL", "GOOG"},
		"events": []interface{}{
			map[string]interface{}{"in_days": 1, "title": "Review"},
		},
	}

	t.Run("String", func(t *testing.T) {
		if got := cfg.String("name", "x"); got != "desk" {
			t.Errorf("got %q", got)
		}
		if got := cfg.String("missing", "fallback"); got != "fallback" {
			t.Errorf("got %q", got)
		}
		if got := cfg.String("count", "fallback"); got != "fallback" {
			t.Errorf("wrong type should fall back, got %q", got)
		}
	})

	t.Run("Int", func(t *testing.T) {
		if got := cfg.Int("count", 0); got != 7 {
			t.Errorf("got %d", got)
		}
		if got := cfg.Int("ratio", 0); got != 2 {
			t.Errorf("float should truncate, got %d", got)
		}
		if got := cfg.Int("missing", 42); got != 42 {
			t.Errorf("got %d", got)
		}
	})

	t.Run("Bool", func(t *testing.T) {
		if !cfg.Bool("enabled", false) {
			t.Error("got false")
		}
		if cfg.Bool("missing", false) {
			t.Error("got true")
		}
	})

	t.Run("Strings", func(t *testing.T) {
		got := cfg.Strings("symbols")
		if len(got) != 2 || got[0] != "AAPL" || got[1] != "GOOG" {
			t.Errorf("got %v", got)
		}
		if got := cfg.Strings("missing"); got != nil {
			t.Errorf("got %v", got)
		}
	})

	t.Run("Maps", func(t *testing.T) {
		got := cfg.Maps("events")
		if len(got) != 1 {
			t.Fatalf("got %d maps", len(got))
		}
		if got[0].String("title", "") != "Review" {
			t.Errorf("title = %q", got[0].String("title", ""))
		}
		if got[0].Int("in_days", -1) != 1 {
			t.Errorf("in_days = %d", got[0].Int("in_days", -1))
		}
	})
}

// hasRed reports whether the image contains a pixel that the tri-color
// encoder would place on the red plane.
func hasRed(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			r8, g8, b8 := r>>8, g>>8, bl>>8
			if r8 > 150 && 2*r8 > 3*g8 && 2*r8 > 3*b8 {
				return true
			}
		}
	}
	return false
}

func TestCalendar(t *testing.T) {
	cfg := Config{
		"events": []interface{}{
			map[string]interface{}{"in_days": 0, "time": "09:00", "title": "Standup"},
			map[string]interface{}{"in_days": 2, "time": "14:00", "title": "Review"},
		},
	}

	t.Run("renders at the requested dimensions", func(t *testing.T) {
		src, err := New("calendar", "agenda", cfg, testDeps())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		img, err := src.Generate(context.Background(), 648, 480, models.Monochrome)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 648 || b.Dy() != 480 {
			t.Errorf("bounds = %v", b)
		}
	})

	t.Run("highlights today in red on tri-color panels", func(t *testing.T) {
		src, err := New("calendar", "agenda", cfg, testDeps())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		img, err := src.Generate(context.Background(), 400, 300, models.TriColor)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !hasRed(img) {
			t.Error("expected red pixels for today's events")
		}
	})

	t.Run("stays black and white on mono panels", func(t *testing.T) {
		src, err := New("calendar", "agenda", cfg, testDeps())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		img, err := src.Generate(context.Background(), 400, 300, models.Monochrome)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if hasRed(img) {
			t.Error("mono render must not contain red pixels")
		}
	})
}

func TestStocks(t *testing.T) {
	src, err := New("stocks", "ticker", Config{
		"symbols": []interface{}{"AAPL", "GOOG", "MSFT"},
	}, testDeps())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	img, err := src.Generate(context.Background(), 648, 480, models.Monochrome)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 648 || b.Dy() != 480 {
		t.Errorf("bounds = %v", b)
	}
	if !src.ShouldUpdate() {
		t.Error("stocks should always update")
	}
	if err := src.Cleanup(); err != nil {
		t.Errorf("Cleanup: %v", err)
	}
}

type fakeStatus struct {
	reports   map[string]models.StatusReport
	histories map[string]models.UpdateRecord
}

func (f *fakeStatus) History() map[string]models.UpdateRecord { return f.histories }

func (f *fakeStatus) PollAll(ctx context.Context, timeout time.Duration) map[string]models.StatusReport {
	return f.reports
}

func TestDashboard(t *testing.T) {
	t.Run("requires fleet status access", func(t *testing.T) {
		if _, err := New("dashboard", "status", nil, testDeps()); err == nil {
			t.Fatal("expected error without status provider")
		}
	})

	t.Run("renders the fleet", func(t *testing.T) {
		lastSuccess := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)
		lastError := time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)
		deps := testDeps()
		deps.Status = &fakeStatus{
			reports: map[string]models.StatusReport{
				"desk":    {Name: "desk", Addr: "10.0.0.5:80", Online: true, ReportedResolution: "648x480", ReportedMode: "BW"},
				"kitchen": {Name: "kitchen", Addr: "10.0.0.6:80", Online: false, Error: "connection refused"},
			},
			histories: map[string]models.UpdateRecord{
				"desk":    {SuccessCount: 3, LastSuccess: &lastSuccess},
				"kitchen": {ErrorCount: 1, LastError: &lastError, LastErrorMessage: "connection refused"},
			},
		}

		src, err := New("dashboard", "status", Config{"title": "Fleet"}, deps)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		img, err := src.Generate(context.Background(), 648, 480, models.TriColor)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 648 || b.Dy() != 480 {
			t.Errorf("bounds = %v", b)
		}
		// The offline display should be flagged in red on tri-color
		if !hasRed(img) {
			t.Error("expected red offline indicator")
		}
	})

	t.Run("handles an empty fleet", func(t *testing.T) {
		deps := testDeps()
		deps.Status = &fakeStatus{
			reports:   map[string]models.StatusReport{},
			histories: map[string]models.UpdateRecord{},
		}
		src, err := New("dashboard", "status", nil, deps)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := src.Generate(context.Background(), 400, 300, models.Monochrome); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	})
}
