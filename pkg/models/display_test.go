package models

import (
	"encoding/json"
	"testing"
)

func TestColorModeString(t *testing.T) {
	cases := []struct {
		mode ColorMode
		want string
	}{
		{Monochrome, "BW"},
		{TriColor, "BWR"},
		{Grayscale4, "GRAY"},
	}
	for _, tc := range cases {
		if got := tc.mode.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.mode, got, tc.want)
		}
	}
}

func TestParseColorMode(t *testing.T) {
	t.Run("round trips every mode", func(t *testing.T) {
		for _, mode := range []ColorMode{Monochrome, TriColor, Grayscale4} {
			got, ok := ParseColorMode(mode.String())
			if !ok || got != mode {
				t.Errorf("ParseColorMode(%q) = %v, %v", mode.String(), got, ok)
			}
		}
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		for _, s := range []string{"", "bw", "CMYK", "BWRG"} {
			if _, ok := ParseColorMode(s); ok {
				t.Errorf("ParseColorMode(%q) accepted", s)
			}
		}
	})
}

func TestColorModeJSON(t *testing.T) {
	data, err := json.Marshal(TriColor)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"BWR"` {
		t.Errorf("marshal = %s", data)
	}

	var mode ColorMode
	if err := json.Unmarshal([]byte(`"GRAY"`), &mode); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if mode != Grayscale4 {
		t.Errorf("unmarshal = %v", mode)
	}

	if err := json.Unmarshal([]byte(`"sepia"`), &mode); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestDisplayAddr(t *testing.T) {
	d := &Display{Name: "desk", Host: "10.0.0.5", Port: 8080, Width: 648, Height: 480}

	if got := d.Addr(); got != "10.0.0.5:8080" {
		t.Errorf("Addr() = %q", got)
	}
	if got := d.URL("/update"); got != "http://10.0.0.5:8080/update" {
		t.Errorf("URL() = %q", got)
	}
	if got := d.Resolution(); got != "648x480" {
		t.Errorf("Resolution() = %q", got)
	}
}
