package source

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/render"
	"github.com/paperframe/paperframe/pkg/models"
)

func init() {
	Register("photo", newPhotoFrame)
}

// PhotoFrame rotates through the images in a directory, either
// sequentially or at random, with contain or cover layout and an optional
// filename caption.
type PhotoFrame struct {
	logger      *zap.Logger
	photos      []string
	mode        string // "sequential" or "random"
	fitMode     string // "contain" or "cover"
	showCaption bool

	index int
	rand  *rand.Rand
}

var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
}

func newPhotoFrame(name string, cfg Config, deps Deps) (Source, error) {
	dir := cfg.String("photo_dir", "photos")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("photo directory: %w", err)
	}

	var photos []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if photoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			photos = append(photos, filepath.Join(dir, e.Name()))
		}
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("no photos found in %s", dir)
	}
	sort.Strings(photos)

	deps.Logger.Info("Loaded photo frame",
		zap.String("dir", dir), zap.Int("photos", len(photos)))

	return &PhotoFrame{
		logger:      deps.Logger,
		photos:      photos,
		mode:        cfg.String("mode", "sequential"),
		fitMode:     cfg.String("fit_mode", "contain"),
		showCaption: cfg.Bool("show_caption", true),
		rand:        rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

func (p *PhotoFrame) ShouldUpdate() bool { return true }

// nextPhoto advances the rotation.
func (p *PhotoFrame) nextPhoto() string {
	if p.mode == "random" {
		return p.photos[p.rand.Intn(len(p.photos))]
	}
	photo := p.photos[p.index]
	p.index = (p.index + 1) % len(p.photos)
	return photo
}

func (p *PhotoFrame) Generate(ctx context.Context, width, height int, mode models.ColorMode) (image.Image, error) {
	path := p.nextPhoto()
	p.logger.Info("Displaying photo", zap.String("photo", filepath.Base(path)))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	photo, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode photo %s: %w", filepath.Base(path), err)
	}

	canvas := p.fit(photo, width, height)

	if p.showCaption {
		caption := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		face := render.Face(20)
		pad := 10
		captionH := 20 + 2*pad
		canvas.FillRect(image.Rect(0, height-captionH, width, height), render.White)
		canvas.TextCentered(width/2, height-pad-4, caption, face, render.Black)
	}
	return canvas.RGBA, nil
}

// fit lays the photo out on a display-sized canvas. Cover scales up and
// center-crops; contain letterboxes on a white background.
func (p *PhotoFrame) fit(photo image.Image, width, height int) *render.Canvas {
	b := photo.Bounds()
	imgW, imgH := float64(b.Dx()), float64(b.Dy())
	canvas := render.NewCanvas(width, height)

	if p.fitMode == "cover" {
		scale := float64(width) / imgW
		if s := float64(height) / imgH; s > scale {
			scale = s
		}
		newW := int(imgW * scale)
		newH := int(imgH * scale)
		scaled := resize.Resize(uint(newW), uint(newH), photo, resize.Lanczos3)
		canvas.Paste(scaled, -(newW-width)/2, -(newH-height)/2)
		return canvas
	}

	scale := float64(width) / imgW
	if s := float64(height) / imgH; s < scale {
		scale = s
	}
	newW := int(imgW * scale)
	newH := int(imgH * scale)
	scaled := resize.Resize(uint(newW), uint(newH), photo, resize.Lanczos3)
	canvas.Paste(scaled, (width-newW)/2, (height-newH)/2)
	return canvas
}

func (p *PhotoFrame) Cleanup() error { return nil }
