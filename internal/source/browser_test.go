package source

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/paperframe/paperframe/pkg/models"
)

func writeHTML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.html")
	if err := os.WriteFile(path, []byte("<html><body>hi</body></html>"), 0o644); err != nil {
		t.Fatalf("write html: %v", err)
	}
	return path
}

// fakeBrowser is a shell script that mimics chromium's --screenshot flag
// by writing a PNG to the requested path.
func fakeBrowser(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	shotPath := filepath.Join(t.TempDir(), "canned.png")
	f, err := os.Create(shotPath)
	if err != nil {
		t.Fatalf("create canned screenshot: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode canned screenshot: %v", err)
	}
	f.Close()

	script := "#!/bin/sh\nfor arg in \"$@\"; do\n" +
		"  case \"$arg\" in --screenshot=*) cp " + shotPath + " \"${arg#--screenshot=}\" ;; esac\n" +
		"done\n"
	binPath := filepath.Join(t.TempDir(), "chromium")
	if err := os.WriteFile(binPath, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake browser: %v", err)
	}
	return binPath
}

func TestBrowser(t *testing.T) {
	t.Run("html_path is required", func(t *testing.T) {
		if _, err := New("browser", "weather", Config{}, testDeps()); err == nil {
			t.Fatal("expected error without html_path")
		}
	})

	t.Run("missing html file is rejected", func(t *testing.T) {
		_, err := New("browser", "weather", Config{
			"html_path":    filepath.Join(t.TempDir(), "nope.html"),
			"browser_path": fakeBrowser(t),
		}, testDeps())
		if err == nil {
			t.Fatal("expected error for missing html file")
		}
	})

	t.Run("renders via the configured binary", func(t *testing.T) {
		src, err := New("browser", "weather", Config{
			"html_path":    writeHTML(t),
			"browser_path": fakeBrowser(t),
		}, testDeps())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer src.Cleanup()

		img, err := src.Generate(context.Background(), 648, 480, models.Monochrome)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if img.Bounds().Empty() {
			t.Error("empty screenshot")
		}
	})

	t.Run("cleanup removes the scratch directory", func(t *testing.T) {
		src, err := New("browser", "weather", Config{
			"html_path":    writeHTML(t),
			"browser_path": fakeBrowser(t),
		}, testDeps())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		workDir := src.(*Browser).workDir
		if err := src.Cleanup(); err != nil {
			t.Fatalf("Cleanup: %v", err)
		}
		if _, err := os.Stat(workDir); !os.IsNotExist(err) {
			t.Errorf("work dir still present: %v", err)
		}
	})

	t.Run("failing binary surfaces an error", func(t *testing.T) {
		bin := filepath.Join(t.TempDir(), "chromium")
		if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
			t.Fatalf("write failing browser: %v", err)
		}
		src, err := New("browser", "weather", Config{
			"html_path":    writeHTML(t),
			"browser_path": bin,
		}, testDeps())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer src.Cleanup()

		if _, err := src.Generate(context.Background(), 100, 100, models.Monochrome); err == nil {
			t.Fatal("expected error from failing browser")
		}
	})
}
