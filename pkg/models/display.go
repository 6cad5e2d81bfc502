package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ColorMode identifies the pixel format a display accepts.
type ColorMode int

const (
	// Monochrome is 1 bit per pixel, black ink on white.
	Monochrome ColorMode = iota
	// TriColor is two full-size 1-bit planes, black plane followed by red plane.
	TriColor
	// Grayscale4 is 2 bits per pixel, four brightness levels.
	Grayscale4
)

// String returns the wire name the device firmware reports.
func (m ColorMode) String() string {
	switch m {
	case TriColor:
		return "BWR"
	case Grayscale4:
		return "GRAY"
	default:
		return "BW"
	}
}

// ParseColorMode maps a firmware wire name back to a ColorMode.
func ParseColorMode(s string) (ColorMode, bool) {
	switch s {
	case "BW":
		return Monochrome, true
	case "BWR":
		return TriColor, true
	case "GRAY":
		return Grayscale4, true
	}
	return Monochrome, false
}

// MarshalJSON encodes the mode as its wire name.
func (m ColorMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a wire name.
func (m *ColorMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mode, ok := ParseColorMode(s)
	if !ok {
		return fmt.Errorf("unknown color mode %q", s)
	}
	*m = mode
	return nil
}

// Display represents a physical e-paper panel reachable over the network.
// Displays are created at configuration load and are immutable for the
// process lifetime except LastUpdate.
type Display struct {
	Name       string    `json:"name"`
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Mode       ColorMode `json:"mode"`
	LastUpdate time.Time `json:"last_update"`
}

// Addr returns the host:port pair of the display.
func (d *Display) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// URL builds an HTTP URL for the given path on the display.
func (d *Display) URL(path string) string {
	return fmt.Sprintf("http://%s:%d%s", d.Host, d.Port, path)
}

// Resolution returns the configured dimensions as "WxH".
func (d *Display) Resolution() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// ScheduleEntry binds a content source to a display under a recurrence rule.
// Rule is one of "every N minutes", "every N hours" or "daily at HH:MM".
type ScheduleEntry struct {
	Display string
	Source  string
	Rule    string
}
