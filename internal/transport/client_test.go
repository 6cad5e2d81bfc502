package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/pkg/models"
)

// displayAt builds a Display pointing at a test server URL.
func displayAt(t *testing.T, rawURL string, mode models.ColorMode) *models.Display {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return &models.Display{
		Name:   "test",
		Host:   host,
		Port:   port,
		Width:  400,
		Height: 300,
		Mode:   mode,
	}
}

// unreachableDisplay returns a display whose port was just closed.
func unreachableDisplay(t *testing.T) *models.Display {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	return &models.Display{
		Name:   "gone",
		Host:   "127.0.0.1",
		Port:   addr.Port,
		Width:  400,
		Height: 300,
	}
}

func TestClientSend(t *testing.T) {
	logger := zap.NewNop()

	t.Run("success", func(t *testing.T) {
		var gotLen int64
		var gotType string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/update" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			gotLen = r.ContentLength
			gotType = r.Header.Get("Content-Type")
			w.Write([]byte("OK"))
		}))
		defer ts.Close()

		payload := make([]byte, 15000)
		out := NewClient(time.Second, logger).Send(context.Background(), displayAt(t, ts.URL, models.Monochrome), payload)
		if !out.OK() {
			t.Fatalf("outcome = %v, want success (%s)", out.Kind, out.Message())
		}
		if gotLen != int64(len(payload)) {
			t.Errorf("Content-Length = %d, want %d", gotLen, len(payload))
		}
		if gotType != "application/octet-stream" {
			t.Errorf("Content-Type = %q", gotType)
		}
		if out.Latency <= 0 {
			t.Error("latency not measured")
		}
	})

	t.Run("http error carries status and body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "flash write failed", http.StatusInternalServerError)
		}))
		defer ts.Close()

		out := NewClient(time.Second, logger).Send(context.Background(), displayAt(t, ts.URL, models.Monochrome), []byte{1})
		if out.Kind != HTTPError {
			t.Fatalf("kind = %v, want HTTPError", out.Kind)
		}
		if out.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d", out.StatusCode)
		}
		if !strings.Contains(out.Message(), "HTTP 500") || !strings.Contains(out.Message(), "flash write failed") {
			t.Errorf("message = %q", out.Message())
		}
	})

	t.Run("timeout is classified and named", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer ts.Close()

		out := NewClient(50*time.Millisecond, logger).Send(context.Background(), displayAt(t, ts.URL, models.Monochrome), []byte{1})
		if out.Kind != Timeout {
			t.Fatalf("kind = %v, want Timeout", out.Kind)
		}
		if !strings.Contains(out.Message(), "timeout") {
			t.Errorf("message = %q, want a timeout indicator", out.Message())
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		out := NewClient(time.Second, logger).Send(context.Background(), unreachableDisplay(t), []byte{1})
		if out.Kind != ConnectionFailure {
			t.Fatalf("kind = %v, want ConnectionFailure", out.Kind)
		}
		if out.Err == nil {
			t.Error("expected an underlying error")
		}
	})
}
