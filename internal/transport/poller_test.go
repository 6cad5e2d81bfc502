package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/pkg/models"
)

func TestPoll(t *testing.T) {
	logger := zap.NewNop()
	poller := NewPoller(logger)

	t.Run("online device with banner", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("EINK 648x480 BW"))
		}))
		defer ts.Close()

		rep := poller.Poll(context.Background(), displayAt(t, ts.URL, models.Monochrome), time.Second)
		if !rep.Online {
			t.Fatalf("online = false, error = %q", rep.Error)
		}
		if rep.ReportedResolution != "648x480" || rep.ReportedMode != "BW" {
			t.Errorf("reported = %q %q", rep.ReportedResolution, rep.ReportedMode)
		}
		if rep.LatencyMS <= 0 {
			t.Error("latency not measured")
		}
		if rep.Error != "" {
			t.Errorf("error = %q, want empty", rep.Error)
		}
	})

	t.Run("unparseable banner is still online", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("hello from firmware v2"))
		}))
		defer ts.Close()

		rep := poller.Poll(context.Background(), displayAt(t, ts.URL, models.Monochrome), time.Second)
		if !rep.Online {
			t.Fatal("device answering 200 must count as online")
		}
		if rep.ReportedResolution != "" || rep.ReportedMode != "" {
			t.Errorf("reported fields should stay empty, got %q %q", rep.ReportedResolution, rep.ReportedMode)
		}
	})

	t.Run("non-200 is an error but not a crash", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		rep := poller.Poll(context.Background(), displayAt(t, ts.URL, models.Monochrome), time.Second)
		if rep.Online {
			t.Error("online = true on HTTP 503")
		}
		if rep.Error != "HTTP 503" {
			t.Errorf("error = %q, want HTTP 503", rep.Error)
		}
	})

	t.Run("unreachable address reports offline within the timeout", func(t *testing.T) {
		start := time.Now()
		rep := poller.Poll(context.Background(), unreachableDisplay(t), time.Second)
		if time.Since(start) > 2*time.Second {
			t.Error("poll took longer than its timeout allows")
		}
		if rep.Online {
			t.Error("online = true for unreachable display")
		}
		if rep.Error == "" {
			t.Error("error not populated")
		}
		if rep.ConfiguredResolution != "400x300" {
			t.Errorf("configured resolution = %q", rep.ConfiguredResolution)
		}
	})
}

func TestPollReusesConnections(t *testing.T) {
	var conns int32
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("EINK 648x480 BW"))
	}))
	ts.Config.ConnState = func(c net.Conn, state http.ConnState) {
		if state == http.StateNew {
			atomic.AddInt32(&conns, 1)
		}
	}
	ts.Start()
	defer ts.Close()

	poller := NewPoller(zap.NewNop())
	display := displayAt(t, ts.URL, models.Monochrome)
	for i := 0; i < 3; i++ {
		if rep := poller.Poll(context.Background(), display, time.Second); !rep.Online {
			t.Fatalf("poll %d reported offline: %s", i, rep.Error)
		}
	}

	if got := atomic.LoadInt32(&conns); got != 1 {
		t.Errorf("device saw %d connections across 3 polls, want 1", got)
	}
}

func TestParseBanner(t *testing.T) {
	cases := []struct {
		in       string
		res, mod string
		ok       bool
	}{
		{"EINK 800x480 BWR", "800x480", "BWR", true},
		{"EINK 400x300 GRAY\n", "400x300", "GRAY", true},
		{"EINK 400x300 RGB", "", "", false},
		{"EINK 400x300", "", "", false},
		{"hello", "", "", false},
		{"", "", "", false},
	}
	for _, c := range cases {
		res, mod, ok := parseBanner(c.in)
		if res != c.res || mod != c.mod || ok != c.ok {
			t.Errorf("parseBanner(%q) = %q %q %v, want %q %q %v", c.in, res, mod, ok, c.res, c.mod, c.ok)
		}
	}
}
