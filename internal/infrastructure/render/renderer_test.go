package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"camcapture/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func colourful(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 60), B: 200, A: 255})
		}
	}
	return img
}

func mustFilter(t *testing.T, s string) domain.DisplayFilter {
	t.Helper()
	f, err := domain.ParseFilter(s)
	require.NoError(t, err)
	return f
}

func TestRender_GrayscaleStillIsNeutral(t *testing.T) {
	r := NewPNGRenderer()

	data, err := r.Render(colourful(6, 4), mustFilter(t, "grayscale(100%)"))
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), decoded.Bounds())

	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			c := color.NRGBAModel.Convert(decoded.At(x, y)).(color.NRGBA)
			assert.Equal(t, c.R, c.G, "pixel %d,%d", x, y)
			assert.Equal(t, c.G, c.B, "pixel %d,%d", x, y)
		}
	}
}

func TestApply_NoneReturnsSameImage(t *testing.T) {
	img := colourful(2, 2)
	out := NewPNGRenderer().Apply(img, domain.DisplayFilter{})
	assert.Same(t, img, out)
}

func TestApply_Filters(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 50, B: 200, A: 255})
	r := NewPNGRenderer()

	pixel := func(f string) color.NRGBA {
		return r.Apply(src, mustFilter(t, f)).(*image.NRGBA).NRGBAAt(0, 0)
	}

	assert.Equal(t, color.NRGBA{R: 155, G: 205, B: 55, A: 255}, pixel("invert"))
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 255, A: 255}, pixel("brightness(2)"))
	assert.Equal(t, color.NRGBA{R: 100, G: 50, B: 200, A: 255}, pixel("grayscale(0)"))

	half := pixel("invert(50%)")
	assert.InDelta(t, 128, int(half.R), 1)
	assert.InDelta(t, 128, int(half.G), 1)

	sep := pixel("sepia")
	assert.True(t, sep.R >= sep.G && sep.G >= sep.B)

	// the source image is never modified
	assert.Equal(t, color.NRGBA{R: 100, G: 50, B: 200, A: 255}, src.NRGBAAt(0, 0))
}

func TestApply_ChainKeepsBounds(t *testing.T) {
	out := NewPNGRenderer().Apply(colourful(10, 8), mustFilter(t, "blur(2px) contrast(150%) saturate(0.5)"))
	assert.Equal(t, image.Rect(0, 0, 10, 8), out.Bounds())
}

func TestRenderPreview_Downscales(t *testing.T) {
	data, err := NewPNGRenderer().RenderPreview(colourful(64, 32), domain.DisplayFilter{}, 16, 70)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 8, cfg.Height)
}

func TestApply_BlurAmountsOutsideParserRange(t *testing.T) {
	r := NewPNGRenderer()
	img := colourful(8, 8)

	for _, amount := range []float64{math.NaN(), math.Inf(1), 1e12, -3} {
		f := domain.DisplayFilter{Ops: []domain.FilterOp{{Func: domain.FilterBlur, Amount: amount}}}
		assert.NotPanics(t, func() {
			out := r.Apply(img, f)
			assert.Equal(t, img.Bounds(), out.Bounds())
		}, "blur(%v)", amount)
	}
}
