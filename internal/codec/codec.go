// Package codec converts rendered RGB images into the packed binary
// formats accepted by e-paper panels. The payload length alone tells the
// receiving firmware which format it holds, so the encoder and the
// size-based detector must agree exactly.
package codec

import (
	"errors"
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"github.com/paperframe/paperframe/pkg/models"
)

// Pixel classification thresholds, matched to the panel firmware.
const (
	inkThreshold = 60  // all channels below this count as black ink
	redFloor     = 150 // minimum red channel for the red plane
)

// ErrSizeMismatch indicates an encoded payload whose length does not match
// any valid format for the target dimensions. The resize step makes this
// unreachable in normal operation; it is kept as a defensive check.
var ErrSizeMismatch = errors.New("codec: payload size mismatch")

// ExpectedSize returns the payload length in bytes for a display of the
// given dimensions and color mode.
func ExpectedSize(mode models.ColorMode, width, height int) int {
	switch mode {
	case models.TriColor:
		return 2 * bytesPerRow(width, 8) * height
	case models.Grayscale4:
		return bytesPerRow(width, 4) * height
	default:
		return bytesPerRow(width, 8) * height
	}
}

// DetectMode is the receiving-side inverse of Encode: it classifies a
// payload by its byte length against the display's dimensions. Any length
// that matches none of the three formats is a protocol violation.
func DetectMode(n, width, height int) (models.ColorMode, error) {
	bw := bytesPerRow(width, 8) * height
	switch n {
	case bw:
		return models.Monochrome, nil
	case 2 * bw:
		return models.TriColor, nil
	case bytesPerRow(width, 4) * height:
		return models.Grayscale4, nil
	}
	return 0, fmt.Errorf("%w: %d bytes for %dx%d", ErrSizeMismatch, n, width, height)
}

// Encode packs an RGB image into the wire format for the given color mode.
// Images whose bounds differ from the target dimensions are resized with
// Lanczos resampling first; content sources are not required to hit the
// exact resolution.
func Encode(img image.Image, mode models.ColorMode, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("codec: invalid target dimensions %dx%d", width, height)
	}
	img = Fit(img, width, height)

	var buf []byte
	switch mode {
	case models.TriColor:
		buf = encodeTriColor(img, width, height)
	case models.Grayscale4:
		buf = encodeGray4(img, width, height)
	default:
		buf = encodeMono(img, width, height)
	}

	if len(buf) != ExpectedSize(mode, width, height) {
		return nil, fmt.Errorf("%w: encoded %d bytes, want %d",
			ErrSizeMismatch, len(buf), ExpectedSize(mode, width, height))
	}
	return buf, nil
}

// Fit returns img resized to width x height, or img unchanged when it
// already has those dimensions.
func Fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

func bytesPerRow(width, pixelsPerByte int) int {
	return (width + pixelsPerByte - 1) / pixelsPerByte
}

func rgb8(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func isInk(r, g, b uint8) bool {
	return r < inkThreshold && g < inkThreshold && b < inkThreshold
}

// isRed detects dominantly red pixels: bright in the red channel and at
// least 1.5x brighter than both other channels.
func isRed(r, g, b uint8) bool {
	return r > redFloor && 2*uint16(r) > 3*uint16(g) && 2*uint16(r) > 3*uint16(b)
}

// encodeMono packs 1 bit per pixel, MSB first, with byte boundaries
// restarting at each row. Trailing bits in a row's last byte stay zero.
func encodeMono(img image.Image, width, height int) []byte {
	min := img.Bounds().Min
	stride := bytesPerRow(width, 8)
	buf := make([]byte, stride*height)

	for y := 0; y < height; y++ {
		row := y * stride
		for x := 0; x < width; x++ {
			r, g, b := rgb8(img, min.X+x, min.Y+y)
			if isInk(r, g, b) {
				buf[row+x/8] |= 1 << (7 - uint(x%8))
			}
		}
	}
	return buf
}

// encodeTriColor computes both planes in a single pass over the pixels.
// The black test takes priority, so a pixel sets at most one plane bit.
func encodeTriColor(img image.Image, width, height int) []byte {
	min := img.Bounds().Min
	stride := bytesPerRow(width, 8)
	plane := stride * height
	buf := make([]byte, 2*plane)

	for y := 0; y < height; y++ {
		row := y * stride
		for x := 0; x < width; x++ {
			r, g, b := rgb8(img, min.X+x, min.Y+y)
			bit := byte(1) << (7 - uint(x%8))
			switch {
			case isInk(r, g, b):
				buf[row+x/8] |= bit
			case isRed(r, g, b):
				buf[plane+row+x/8] |= bit
			}
		}
	}
	return buf
}

// Grayscale quantization breakpoints: brightness above 192 is white
// (level 0), above 128 light gray, above 64 dark gray, else black.
// Luminance truncates, not rounds, so a pixel sits in the lower band
// until its weighted sum fully clears the breakpoint.
func grayLevel(r, g, b uint8) byte {
	lum := (299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000
	switch {
	case lum > 192:
		return 0
	case lum > 128:
		return 1
	case lum > 64:
		return 2
	default:
		return 3
	}
}

// encodeGray4 packs 4 pixels per byte, 2 bits each, first pixel in the
// most significant position.
func encodeGray4(img image.Image, width, height int) []byte {
	min := img.Bounds().Min
	stride := bytesPerRow(width, 4)
	buf := make([]byte, stride*height)

	for y := 0; y < height; y++ {
		row := y * stride
		for x := 0; x < width; x++ {
			level := grayLevel(rgb8(img, min.X+x, min.Y+y))
			buf[row+x/4] |= level << (6 - uint(x%4)*2)
		}
	}
	return buf
}
