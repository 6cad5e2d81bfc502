// Package render provides the small drawing toolkit shared by the
// drawing-based content sources: a white RGB canvas, TrueType text, lines
// and filled rectangles. The palette is deliberately tiny because the
// target panels only show black, white, red and four grays.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Palette colors for panel content.
var (
	White     = color.RGBA{255, 255, 255, 255}
	Black     = color.RGBA{0, 0, 0, 255}
	Red       = color.RGBA{255, 0, 0, 255}
	LightGray = color.RGBA{160, 160, 160, 255}
	DarkGray  = color.RGBA{96, 96, 96, 255}
)

var (
	regularFont = mustParse(goregular.TTF)
	boldFont    = mustParse(gobold.TTF)
)

func mustParse(ttf []byte) *truetype.Font {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic("render: embedded font failed to parse: " + err.Error())
	}
	return f
}

// Face returns a regular-weight face at the given point size.
func Face(size float64) font.Face {
	return truetype.NewFace(regularFont, &truetype.Options{Size: size})
}

// BoldFace returns a bold face at the given point size.
func BoldFace(size float64) font.Face {
	return truetype.NewFace(boldFont, &truetype.Options{Size: size})
}

// Canvas is an RGB image with drawing helpers.
type Canvas struct {
	*image.RGBA
}

// NewCanvas creates a white canvas of the given dimensions.
func NewCanvas(width, height int) *Canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(White), image.Point{}, draw.Src)
	return &Canvas{img}
}

// Text draws a string with its baseline at (x, y).
func (c *Canvas) Text(x, y int, text string, face font.Face, col color.Color) {
	d := font.Drawer{
		Dst:  c.RGBA,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// TextCentered draws a string horizontally centered around cx with its
// baseline at y.
func (c *Canvas) TextCentered(cx, y int, text string, face font.Face, col color.Color) {
	w := TextWidth(face, text)
	c.Text(cx-w/2, y, text, face, col)
}

// TextRight draws a string ending at x with its baseline at y.
func (c *Canvas) TextRight(x, y int, text string, face font.Face, col color.Color) {
	c.Text(x-TextWidth(face, text), y, text, face, col)
}

// TextWidth measures the advance width of a string in pixels.
func TextWidth(face font.Face, text string) int {
	return font.MeasureString(face, text).Ceil()
}

// HLine draws a horizontal line of the given thickness.
func (c *Canvas) HLine(x0, x1, y, thickness int, col color.Color) {
	c.FillRect(image.Rect(x0, y, x1, y+thickness), col)
}

// FillRect fills a rectangle.
func (c *Canvas) FillRect(r image.Rectangle, col color.Color) {
	draw.Draw(c.RGBA, r, image.NewUniform(col), image.Point{}, draw.Src)
}

// Paste draws src with its top-left corner at (x, y).
func (c *Canvas) Paste(src image.Image, x, y int) {
	b := src.Bounds()
	dst := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.Draw(c.RGBA, dst, src, b.Min, draw.Src)
}
