package augment

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

// Transform is one randomized augmentation. Apply may return img itself or a new image.
type Transform interface {
	Apply(img *image.NRGBA, rng *rand.Rand, rec *Record) *image.NRGBA
}

// Step gates a Transform behind a probability.
type Step struct {
	P         float64
	Transform Transform
}

// Chain applies its steps in order, each independently gated.
type Chain []Step

// DefaultChain is flip, then rotate within ±30°, then brightness/contrast jitter, each at p=0.5.
func DefaultChain() Chain {
	return Chain{
		{P: 0.5, Transform: HorizontalFlip{}},
		{P: 0.5, Transform: Rotate{Limit: 30}},
		{P: 0.5, Transform: BrightnessContrast{BrightnessLimit: 0.2, ContrastLimit: 0.2}},
	}
}

// Record describes which transforms ran on a frame and with what parameters.
type Record struct {
	Flipped  bool
	Rotated  bool
	Angle    float64 // degrees, counter-clockwise
	Jittered bool
	Alpha    float64 // contrast gain
	Beta     float64 // brightness shift in 0..255 units
}

func (r Record) String() string {
	return fmt.Sprintf("flip=%t rotate=%t(%.1f°) jitter=%t(a=%.3f b=%.1f)",
		r.Flipped, r.Rotated, r.Angle, r.Jittered, r.Alpha, r.Beta)
}

// Apply runs the chain on a copy of src. The source image is never modified.
func (c Chain) Apply(src image.Image, rng *rand.Rand) (*image.NRGBA, Record) {
	img := imaging.Clone(src)
	var rec Record
	for _, step := range c {
		if rng.Float64() < step.P {
			img = step.Transform.Apply(img, rng, &rec)
		}
	}
	return img, rec
}

// HorizontalFlip mirrors the image left to right.
type HorizontalFlip struct{}

// Apply implements Transform.
func (HorizontalFlip) Apply(img *image.NRGBA, _ *rand.Rand, rec *Record) *image.NRGBA {
	rec.Flipped = true
	return imaging.FlipH(img)
}

// Rotate turns the image about its centre by an angle drawn uniformly from
// [-Limit, +Limit] degrees. The result keeps the source size; uncovered
// corners are black.
type Rotate struct {
	Limit float64
}

// Apply implements Transform.
func (t Rotate) Apply(img *image.NRGBA, rng *rand.Rand, rec *Record) *image.NRGBA {
	angle := (rng.Float64()*2 - 1) * t.Limit
	rec.Rotated = true
	rec.Angle = angle

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	rotated := imaging.Rotate(img, angle, color.Black)
	out := imaging.CropCenter(rotated, w, h)
	if b := out.Bounds(); b.Dx() != w || b.Dy() != h {
		// Very thin images can rotate into a box smaller than the source.
		out = imaging.PasteCenter(imaging.New(w, h, color.Black), out)
	}
	return out
}

// BrightnessContrast scales every colour channel by a contrast gain in
// 1±ContrastLimit and shifts it by a brightness offset in ±BrightnessLimit of
// full scale. Alpha is left alone.
type BrightnessContrast struct {
	BrightnessLimit float64
	ContrastLimit   float64
}

// Apply implements Transform.
func (t BrightnessContrast) Apply(img *image.NRGBA, rng *rand.Rand, rec *Record) *image.NRGBA {
	alpha := 1 + (rng.Float64()*2-1)*t.ContrastLimit
	beta := (rng.Float64()*2 - 1) * t.BrightnessLimit * 255
	rec.Jittered = true
	rec.Alpha = alpha
	rec.Beta = beta

	lut := levelTable(alpha, beta)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

// levelTable precomputes clamp(alpha*v + beta) for every 8-bit value.
func levelTable(alpha, beta float64) [256]uint8 {
	var lut [256]uint8
	for v := range lut {
		x := alpha*float64(v) + beta
		switch {
		case x <= 0:
			lut[v] = 0
		case x >= 255:
			lut[v] = 255
		default:
			lut[v] = uint8(x + 0.5)
		}
	}
	return lut
}
