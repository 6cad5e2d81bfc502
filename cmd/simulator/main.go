// Command simulator emulates an e-paper panel's firmware over HTTP. It
// answers the banner probe on GET /, accepts encoded payloads on POST
// /update, and mimics the real firmware's behavior of acknowledging
// before rendering: the panel replies 200 OK immediately, then "refreshes"
// and sleeps, during which it will not answer further requests.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/paperframe/paperframe/internal/codec"
	"github.com/paperframe/paperframe/pkg/models"
)

type panel struct {
	width  int
	height int
	mode   models.ColorMode
	sleep  time.Duration

	mu     sync.Mutex
	busy   bool
	frames int
}

func (p *panel) banner() string {
	return fmt.Sprintf("EINK %dx%d %s", p.width, p.height, p.mode)
}

func (p *panel) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fmt.Fprint(w, p.banner())
}

func (p *panel) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.ContentLength <= 0 {
		http.Error(w, "Content-Length required", http.StatusLengthRequired)
		return
	}

	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		http.Error(w, "Busy refreshing", http.StatusServiceUnavailable)
		return
	}
	p.busy = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Read failed", http.StatusBadRequest)
		return
	}

	mode, err := codec.DetectMode(len(payload), p.width, p.height)
	if err != nil {
		log.Printf("rejecting payload: %d bytes does not match any format for %dx%d",
			len(payload), p.width, p.height)
	}

	// Real firmware acknowledges before it starts the slow refresh.
	fmt.Fprint(w, "OK")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	p.frames++
	if err != nil {
		log.Printf("frame %d: %d bytes (unrecognized format), refreshing for %s",
			p.frames, len(payload), p.sleep)
	} else {
		log.Printf("frame %d: %d bytes as %s, refreshing for %s",
			p.frames, len(payload), mode, p.sleep)
	}
	time.Sleep(p.sleep)
}

func main() {
	var (
		width  = flag.Int("width", 648, "panel width in pixels")
		height = flag.Int("height", 480, "panel height in pixels")
		mode   = flag.String("mode", "BW", "panel color mode: BW, BWR or GRAY")
		port   = flag.Int("port", 8081, "listen port")
		sleep  = flag.Duration("sleep", 2*time.Second, "simulated refresh duration")
	)
	flag.Parse()

	colorMode, ok := models.ParseColorMode(*mode)
	if !ok {
		log.Fatalf("invalid mode %q, want BW, BWR or GRAY", *mode)
	}

	p := &panel{
		width:  *width,
		height: *height,
		mode:   colorMode,
		sleep:  *sleep,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleRoot)
	mux.HandleFunc("/update", p.handleUpdate)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("simulated panel %s listening on %s", p.banner(), addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
