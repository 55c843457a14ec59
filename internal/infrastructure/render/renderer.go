// Package render draws frames through CSS-style display filters and encodes
// them for stills and the live preview.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"camcapture/internal/core/domain"
	"camcapture/pkg/optimize"

	"github.com/disintegration/imaging"
)

type Renderer struct {
	format imaging.Format
	mime   string
	bufs   *optimize.BufferPool
}

// NewPNGRenderer returns the renderer used for stills.
func NewPNGRenderer() *Renderer {
	return &Renderer{
		format: imaging.PNG,
		mime:   domain.MimePNG,
		bufs:   optimize.NewBufferPool(256<<10, 8<<20),
	}
}

func (r *Renderer) MimeType() string { return r.mime }

// Apply runs the filter chain left to right. A "none" filter returns img
// untouched.
func (r *Renderer) Apply(img image.Image, filter domain.DisplayFilter) image.Image {
	if filter.IsNone() {
		return img
	}
	out := imaging.Clone(img)
	for _, op := range filter.Ops {
		out = applyOp(out, op)
	}
	return out
}

func (r *Renderer) Render(img image.Image, filter domain.DisplayFilter) ([]byte, error) {
	buf := r.bufs.Get()
	defer r.bufs.Put(buf)
	if err := imaging.Encode(buf, r.Apply(img, filter), r.format); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", r.mime, err)
	}
	return optimize.Detach(buf), nil
}

// RenderPreview filters img, shrinks it to at most maxWidth pixels wide and
// encodes it as JPEG.
func (r *Renderer) RenderPreview(img image.Image, filter domain.DisplayFilter, maxWidth, quality int) ([]byte, error) {
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Box)
	}
	buf := r.bufs.Get()
	defer r.bufs.Put(buf)
	if err := imaging.Encode(buf, r.Apply(img, filter), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return optimize.Detach(buf), nil
}

func applyOp(img *image.NRGBA, op domain.FilterOp) *image.NRGBA {
	switch op.Func {
	case domain.FilterGrayscale:
		if op.Amount >= 1 {
			return imaging.Grayscale(img)
		}
		return imaging.AdjustFunc(img, mixWith(op.Amount, grayscale))
	case domain.FilterSepia:
		return imaging.AdjustFunc(img, mixWith(op.Amount, sepia))
	case domain.FilterInvert:
		if op.Amount >= 1 {
			return imaging.Invert(img)
		}
		return imaging.AdjustFunc(img, mixWith(op.Amount, invert))
	case domain.FilterBlur:
		if !(op.Amount > 0) {
			return img
		}
		return imaging.Blur(img, math.Min(op.Amount, domain.MaxBlurRadius))
	case domain.FilterBrightness:
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{R: scale(c.R, op.Amount), G: scale(c.G, op.Amount), B: scale(c.B, op.Amount), A: c.A}
		})
	case domain.FilterContrast:
		return imaging.AdjustContrast(img, (op.Amount-1)*100)
	case domain.FilterSaturate:
		return imaging.AdjustSaturation(img, (op.Amount-1)*100)
	}
	return img
}

// Luma weights match the CSS Filter Effects grayscale and sepia matrices.
func grayscale(c color.NRGBA) color.NRGBA {
	y := 0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)
	v := clamp(y)
	return color.NRGBA{R: v, G: v, B: v, A: c.A}
}

func sepia(c color.NRGBA) color.NRGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return color.NRGBA{
		R: clamp(0.393*r + 0.769*g + 0.189*b),
		G: clamp(0.349*r + 0.686*g + 0.168*b),
		B: clamp(0.272*r + 0.534*g + 0.131*b),
		A: c.A,
	}
}

func invert(c color.NRGBA) color.NRGBA {
	return color.NRGBA{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B, A: c.A}
}

// mixWith blends fn's output with the original pixel by amount.
func mixWith(amount float64, fn func(color.NRGBA) color.NRGBA) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		t := fn(c)
		return color.NRGBA{
			R: lerp(c.R, t.R, amount),
			G: lerp(c.G, t.G, amount),
			B: lerp(c.B, t.B, amount),
			A: c.A,
		}
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return clamp(float64(a) + (float64(b)-float64(a))*t)
}

func scale(v uint8, f float64) uint8 {
	return clamp(float64(v) * f)
}

func clamp(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
