package kjbimage

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledRaster(t *testing.T, rows, cols int, v float32) *Raster {
	t.Helper()
	r, err := NewRaster(rows, cols)
	require.NoError(t, err)
	for i := range r.Pix {
		r.Pix[i].R, r.Pix[i].G, r.Pix[i].B = v, v, v
	}
	return r
}

func assertSettled(t *testing.T, r *Raster) {
	t.Helper()
	for i, p := range r.Pix {
		if p.Valid.Pixel != p.Valid.R|p.Valid.G|p.Valid.B {
			t.Fatalf("pixel %d: aggregate %v, channels %v %v %v", i, p.Valid.Pixel, p.Valid.R, p.Valid.G, p.Valid.B)
		}
	}
}

func TestMarkClipped(t *testing.T) {
	r := filledRaster(t, 3, 2, 100)

	assert.Equal(t, 6, MarkClipped(r, 99.5))
	for _, p := range r.Pix {
		assert.Equal(t, Clipped, p.Valid.R&Clipped)
		assert.Equal(t, Clipped, p.Valid.G&Clipped)
		assert.Equal(t, Clipped, p.Valid.B&Clipped)
		assert.NotEqual(t, Valid, p.Valid.Pixel)
	}
	assert.Equal(t, 6, CountInvalid(r))
	assertSettled(t, r)

	assert.Equal(t, 0, MarkClipped(r, 100.5))
	assert.Equal(t, 0, CountInvalid(r))
	assertSettled(t, r)
}

func TestMarkClipped_disabled(t *testing.T) {
	r := filledRaster(t, 2, 2, 300)
	r.Pix[0].Valid.G = Clipped
	r.Pix[0].Settle()

	assert.Equal(t, 0, MarkClipped(r, math.MaxFloat32))
	assert.Equal(t, Clipped, r.Pix[0].Valid.G)
	assert.Equal(t, 1, CountInvalid(r))
}

func TestMarkClipped_keepsOtherFlags(t *testing.T) {
	r := filledRaster(t, 1, 1, 10)
	r.Pix[0].Valid.R = Invalid | Clipped
	r.Pix[0].Settle()

	MarkClipped(r, 50)
	assert.Equal(t, Invalid, r.Pix[0].Valid.R)
	assert.Equal(t, Invalid, r.Pix[0].Valid.Pixel)
}

func TestMarkDark(t *testing.T) {
	r := filledRaster(t, 1, 3, 0)
	*r.At(0, 0) = Pixel{R: 1, G: 20, B: 20}
	*r.At(0, 1) = Pixel{R: 20, G: 20, B: 20}
	*r.At(0, 2) = Pixel{R: 6, G: 6, B: 6}

	n := MarkDark(r, 5, 5, 5, 20)
	assert.Equal(t, 2, n)
	assert.Equal(t, PixelValidity{R: Dark, Pixel: Dark}, r.At(0, 0).Valid)
	assert.Equal(t, PixelValidity{}, r.At(0, 1).Valid)
	// The sum rule marks every channel.
	assert.Equal(t, PixelValidity{R: Dark, G: Dark, B: Dark, Pixel: Dark}, r.At(0, 2).Valid)
	assertSettled(t, r)
}

func TestMarkIdempotent(t *testing.T) {
	r := filledRaster(t, 4, 4, 0)
	for i := range r.Pix {
		v := float32(i * 17)
		r.Pix[i].R, r.Pix[i].G, r.Pix[i].B = v, 255-v, v/2
	}

	MarkClipped(r, 120)
	MarkDark(r, 10, 10, 10, 40)
	once := r.Clone()

	MarkClipped(r, 120)
	MarkDark(r, 10, 10, 10, 40)
	if diff := cmp.Diff(once, r); diff != "" {
		t.Fatalf("second pass changed the raster (-once +twice):\n%s", diff)
	}

	UnmarkDark(r)
	unmarked := r.Clone()
	UnmarkDark(r)
	assert.Empty(t, cmp.Diff(unmarked, r))
	assertSettled(t, r)
}

func TestMarkClipped_monotonic(t *testing.T) {
	r := filledRaster(t, 1, 4, 0)
	for i := range r.Pix {
		v := float32(100 + 50*i)
		r.Pix[i].R, r.Pix[i].G, r.Pix[i].B = v, v, v
	}

	prev := r.Cols + 1
	for _, clip := range []float32{90, 140, 190, 240, 300} {
		n := MarkClipped(r, clip)
		assert.LessOrEqual(t, n, prev, "clip %v", clip)
		prev = n
	}
	assert.Equal(t, 0, prev)
}

func TestUnmarkDark(t *testing.T) {
	r := filledRaster(t, 1, 1, 0)
	r.Pix[0].Valid = PixelValidity{R: Dark | Clipped, G: Dark, B: Invalid}
	r.Pix[0].Settle()

	UnmarkDark(r)
	assert.Equal(t, PixelValidity{R: Clipped, B: Invalid, Pixel: Clipped | Invalid}, r.Pix[0].Valid)
}

func TestMarkBloomingCandidates(t *testing.T) {
	r := filledRaster(t, 3, 3, 50)
	r.At(1, 1).Valid.R = Clipped
	r.At(1, 1).Settle()

	out := MarkBloomingCandidates(r)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			p := out.At(i, j)
			assert.Equal(t, Clipped, p.Valid.R, "R at %d,%d", i, j)
			assert.Equal(t, Valid, p.Valid.G, "G at %d,%d", i, j)
			assert.Equal(t, Valid, p.Valid.B, "B at %d,%d", i, j)
		}
	}
	assertSettled(t, out)

	// The input is left alone.
	assert.Equal(t, 1, CountInvalid(r))
}

func TestMarkBloomingCandidates_grows(t *testing.T) {
	r := filledRaster(t, 1, 7, 50)
	r.At(0, 3).Valid.B = Clipped
	r.At(0, 3).Settle()

	once := MarkBloomingCandidates(r)
	assert.Equal(t, 3, CountInvalid(once))

	twice := MarkBloomingCandidates(once)
	assert.Equal(t, 5, CountInvalid(twice))
	assert.Equal(t, Valid, twice.At(0, 0).Valid.Pixel)
	assert.Equal(t, Clipped, twice.At(0, 1).Valid.B)
}

func TestMarkPixelsThreshold(t *testing.T) {
	r := filledRaster(t, 1, 3, 0)
	*r.At(0, 0) = Pixel{R: 10, G: 10, B: 10}
	*r.At(0, 1) = Pixel{R: 200, G: 10, B: 10}
	*r.At(0, 2) = Pixel{R: 200, G: 200, B: 200}

	assert.Equal(t, 2, MarkPixelsAboveThreshold(r, 100))
	assert.Equal(t, PixelValidity{R: Clipped, Pixel: Clipped}, r.At(0, 1).Valid)

	// Already invalid pixels are not counted again.
	assert.Equal(t, 1, MarkPixelsBelowThreshold(r, 50))
	assert.Equal(t, PixelValidity{R: Dark, G: Dark, B: Dark, Pixel: Dark}, r.At(0, 0).Valid)
	assert.Equal(t, PixelValidity{R: Clipped, G: Dark, B: Dark, Pixel: Clipped | Dark}, r.At(0, 1).Valid)

	// A higher limit clears the flag it owns.
	assert.Equal(t, 0, MarkPixelsAboveThreshold(r, 250))
	assert.Equal(t, PixelValidity{G: Dark, B: Dark, Pixel: Dark}, r.At(0, 1).Valid)
	assertSettled(t, r)
}

func TestResetValidity(t *testing.T) {
	r := filledRaster(t, 2, 2, 300)
	MarkClipped(r, 10)
	require.Equal(t, 4, CountInvalid(r))

	ResetValidity(r)
	assert.Equal(t, 0, CountInvalid(r))
}

func TestValidity_String(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "invalid|dark", (Invalid | Dark).String())
	assert.Equal(t, "clipped|0x10", (Clipped | 0x10).String())
}
