package augment

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Caption anchor: the text baseline starts this far from the left and bottom edges.
const (
	CaptionX      = 50
	CaptionBottom = 50
)

// Font is a parsed caption typeface. It is safe to share between jobs.
type Font struct {
	parsed *opentype.Font
}

// LoadFont parses the TTF/OTF at path. An empty path selects the embedded
// Go Regular face.
func LoadFont(path string) (*Font, error) {
	data := goregular.TTF
	if path != "" {
		custom, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", path, err)
		}
		data = custom
	}

	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &Font{parsed: parsed}, nil
}

// Overlay creates a caption renderer at size points (72 DPI, so points equal pixels).
// An Overlay holds glyph caches and must not be shared between goroutines.
func (f *Font) Overlay(size float64) (*Overlay, error) {
	face, err := opentype.NewFace(f.parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return &Overlay{face: face, fill: image.NewUniform(color.White)}, nil
}

// Overlay burns caption text into frames.
type Overlay struct {
	face font.Face
	fill image.Image
}

// Draw renders text with its baseline at (CaptionX, height-CaptionBottom).
// Text is neither wrapped nor truncated; whatever falls outside the frame is
// clipped. Runes the font lacks are drawn as its missing-glyph box.
func (o *Overlay) Draw(dst *image.NRGBA, text string) {
	if text == "" {
		return
	}
	b := dst.Bounds()
	d := &font.Drawer{
		Dst:  dst,
		Src:  o.fill,
		Face: o.face,
		Dot:  fixed.P(b.Min.X+CaptionX, b.Max.Y-CaptionBottom),
	}
	d.DrawString(text)
}

// Close releases the face.
func (o *Overlay) Close() error {
	return o.face.Close()
}
