package kjbimage

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteRaster holds whole channel values in 0..255, which every 8 bit codec
// stores exactly.
func byteRaster(rows, cols int) *Raster {
	r := newRaster(rows, cols)
	for k := range r.Pix {
		p := &r.Pix[k]
		p.R = float32((k * 37) % 256)
		p.G = float32((k*11 + 100) % 256)
		p.B = float32(255 - (k*5)%256)
	}
	return r
}

func encodeWith(t *testing.T, c *codec, r *Raster, o Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.encode(&buf, r, o))
	return buf.Bytes()
}

func TestCodecs_roundTrip(t *testing.T) {
	o16 := DefaultOptions()
	o16.TIFFWriteBPS = 16

	for _, tc := range []struct {
		name   string
		codec  *codec
		opts   Options
		format Format
		raster *Raster
	}{
		{"sun", sunCodec, DefaultOptions(), FormatSunRaster, byteRaster(5, 7)},
		{"sun odd width", sunCodec, DefaultOptions(), FormatSunRaster, byteRaster(3, 1)},
		{"bmp", bmpCodec, DefaultOptions(), FormatBMP, byteRaster(4, 5)},
		{"bmp aligned", bmpCodec, DefaultOptions(), FormatBMP, byteRaster(2, 4)},
		{"pnm", pnmCodec, DefaultOptions(), FormatPNM, byteRaster(6, 3)},
		{"tiff 8", tiffCodec, DefaultOptions(), FormatTIFF, byteRaster(4, 4)},
		{"tiff 16", tiffCodec, o16, FormatTIFF, byteRaster(3, 5)},
		{"mid", midCodec, DefaultOptions(), FormatMID, gradientRaster(4, 3)},
		{"kiff", kiffCodec, DefaultOptions(), FormatKiff, gradientRaster(2, 6)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data := encodeWith(t, tc.codec, tc.raster, tc.opts)
			require.Equal(t, tc.format, SniffBytes(data, int64(len(data))))

			got, dec, err := decoders[tc.format].decode(data, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.format, dec.Format)
			if diff := cmp.Diff(tc.raster, got); diff != "" {
				t.Fatalf("round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTIFF_alpha(t *testing.T) {
	r := byteRaster(3, 3)
	r.AddAlpha(255)
	r.Alpha[4] = 128

	data := encodeWith(t, tiffCodec, r, DefaultOptions())
	got, _, err := decodeTIFF(data, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(r, got))

	// Fully opaque alpha is not kept.
	r.Alpha[4] = 255
	data = encodeWith(t, tiffCodec, r, DefaultOptions())
	got, _, err = decodeTIFF(data, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, got.HasAlpha())
}

func TestTIFF_writeBPS(t *testing.T) {
	o := DefaultOptions()
	o.TIFFWriteBPS = 12
	var buf bytes.Buffer
	assert.ErrorIs(t, encodeTIFF(&buf, byteRaster(1, 1), o), ErrInvalidArgument)

	for _, bps := range []int{8, 16} {
		o.TIFFWriteBPS = bps
		l, err := scanTIFFLayout(encodeWith(t, tiffCodec, byteRaster(2, 2), o))
		require.NoError(t, err)
		assert.Equal(t, bps, l.bitsPerSample)
		assert.Equal(t, 3, l.colourSamples())
	}
}

func TestTIFF_sixteenBitPrecision(t *testing.T) {
	r := newRaster(1, 2)
	*r.At(0, 0) = Pixel{R: 10.25, G: 100.5, B: 0.125}
	*r.At(0, 1) = Pixel{R: 255, G: 17.75, B: 3}

	o := DefaultOptions()
	o.TIFFWriteBPS = 16
	got, _, err := decodeTIFF(encodeWith(t, tiffCodec, r, o), o)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(r, got))
}

func TestJPEG_roundTrip(t *testing.T) {
	r := newRaster(16, 16)
	for i := range r.Pix {
		r.Pix[i] = Pixel{R: 200, G: 120, B: 40}
	}
	o := DefaultOptions()
	o.JPEGQuality = 100

	data := encodeWith(t, jpegCodec, r, o)
	require.Equal(t, FormatJPEG, SniffBytes(data, int64(len(data))))
	got, _, err := decodeJPEG(data, o)
	require.NoError(t, err)

	approx := cmpopts.EquateApprox(0, 4)
	if diff := cmp.Diff(r, got, approx); diff != "" {
		t.Fatalf("JPEG round trip (-want +got):\n%s", diff)
	}
}

func TestEightBitCodecs_rounding(t *testing.T) {
	r := newRaster(1, 3)
	*r.At(0, 0) = Pixel{R: -20, G: 0.49, B: 0.5}
	*r.At(0, 1) = Pixel{R: 254.6, G: 300, B: 127.4}
	*r.At(0, 2) = Pixel{R: float32(math.Inf(1)), G: 1, B: 2}

	want := newRaster(1, 3)
	*want.At(0, 0) = Pixel{R: 0, G: 0, B: 1}
	*want.At(0, 1) = Pixel{R: 255, G: 255, B: 127}
	*want.At(0, 2) = Pixel{R: 255, G: 1, B: 2}

	for _, c := range []*codec{sunCodec, pnmCodec, bmpCodec} {
		got, _, err := c.decode(encodeWith(t, c, r, DefaultOptions()), DefaultOptions())
		require.NoError(t, err, c.name)
		assert.Empty(t, cmp.Diff(want, got), c.name)
	}
}

func TestSunRaster_invalidPixelColour(t *testing.T) {
	r := byteRaster(1, 2)
	r.At(0, 1).Valid.G = Dark
	r.settle()

	o := DefaultOptions()
	o.InvalidPixelColour = &Colour{R: 255, G: 0, B: 255}
	got, _, err := decodeSunRaster(encodeWith(t, sunCodec, r, o), o)
	require.NoError(t, err)
	assert.Equal(t, Pixel{R: r.At(0, 0).R, G: r.At(0, 0).G, B: r.At(0, 0).B}, *got.At(0, 0))
	assert.Equal(t, Pixel{R: 255, G: 0, B: 255}, *got.At(0, 1))
}

func TestSunRaster_colourMap(t *testing.T) {
	var buf bytes.Buffer
	hdr := []int32{sunMagic, 2, 1, 8, 2, sunTypeStd, sunMapEqualRGB, sunEqualRGBLen}
	require.NoError(t, binary.Write(&buf, binary.BigEndian, hdr))
	cmap := make([]byte, sunEqualRGBLen)
	cmap[3], cmap[256+3], cmap[512+3] = 10, 20, 30
	cmap[7], cmap[256+7], cmap[512+7] = 40, 50, 60
	buf.Write(cmap)
	buf.Write([]byte{3, 7})

	r, _, err := decodeSunRaster(buf.Bytes(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Pixel{R: 10, G: 20, B: 30}, *r.At(0, 0))
	assert.Equal(t, Pixel{R: 40, G: 50, B: 60}, *r.At(0, 1))
}

func TestSunRaster_size(t *testing.T) {
	data := encodeWith(t, sunCodec, byteRaster(2, 2), DefaultOptions())

	_, _, err := decodeSunRaster(data[:len(data)-1], DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorContains(t, err, "too little")

	_, _, err = decodeSunRaster(append(data, 0, 0), DefaultOptions())
	assert.ErrorContains(t, err, "too much")
}

func TestSunRaster_notHandled(t *testing.T) {
	var buf bytes.Buffer
	// Run length encoded rasters are left to the converter.
	hdr := []int32{sunMagic, 1, 1, 24, 3, 2, sunMapNone, 0}
	require.NoError(t, binary.Write(&buf, binary.BigEndian, hdr))
	buf.Write([]byte{1, 2, 3})

	_, _, err := decodeSunRaster(buf.Bytes(), DefaultOptions())
	assert.ErrorIs(t, err, ErrNotHandled)
}

func TestPNM_header(t *testing.T) {
	data := []byte("P6\n# written by hand\n2 1 # width height\n255\n\x01\x02\x03\x04\x05\x06")
	r, _, err := decodePNM(data, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Pixel{R: 4, G: 5, B: 6}, *r.At(0, 1))

	_, _, err = decodePNM([]byte("P6\n2 1\n65535\n\x00\x00"), DefaultOptions())
	assert.ErrorIs(t, err, ErrNotHandled)

	_, _, err = decodePNM([]byte("P6\n2 1\n255\n\x01\x02"), DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrupt)

	_, _, err = decodePNM([]byte("P6\n2 1"), DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestBMP_topDown(t *testing.T) {
	data := encodeWith(t, bmpCodec, byteRaster(2, 3), DefaultOptions())
	want, _, err := decodeBMP(data, DefaultOptions())
	require.NoError(t, err)

	// Negative height stores rows top to bottom.
	flipped := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(flipped[22:], 0xFFFFFFFE) // height -2
	stride := (3*3 + 3) &^ 3
	copy(flipped[bmpHeaderLen:], data[bmpHeaderLen+stride:])
	copy(flipped[bmpHeaderLen+stride:], data[bmpHeaderLen:bmpHeaderLen+stride])

	got, _, err := decodeBMP(flipped, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))
}

func TestBMP_notHandled(t *testing.T) {
	data := encodeWith(t, bmpCodec, byteRaster(2, 2), DefaultOptions())

	paletted := append([]byte(nil), data...)
	binary.LittleEndian.PutUint16(paletted[28:], 8)
	_, _, err := decodeBMP(paletted, DefaultOptions())
	assert.ErrorIs(t, err, ErrNotHandled)

	_, _, err = decodeBMP(append(data, 0), DefaultOptions())
	assert.ErrorIs(t, err, ErrNotHandled)
}

func TestMID_size(t *testing.T) {
	data := encodeWith(t, midCodec, gradientRaster(2, 2), DefaultOptions())
	_, _, err := decodeMID(data[:len(data)-4], DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecoders_hugeDimensions(t *testing.T) {
	_, _, err := decodePNM([]byte("P6\n4294967296 4294967296\n255\n\x01\x02\x03"), DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrupt)

	var mid bytes.Buffer
	require.NoError(t, binary.Write(&mid, binary.BigEndian, []int32{midMagic, math.MaxInt32, math.MaxInt32}))
	mid.Write(make([]byte, 12))
	_, _, err = decodeMID(mid.Bytes(), DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrupt)

	var sun bytes.Buffer
	require.NoError(t, binary.Write(&sun, binary.BigEndian,
		[]int32{sunMagic, math.MaxInt32, math.MaxInt32, 32, 0, sunTypeStd, sunMapNone, 0}))
	sun.Write(make([]byte, 4))
	_, _, err = decodeSunRaster(sun.Bytes(), DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrupt)

	bmp := encodeWith(t, bmpCodec, byteRaster(2, 3), DefaultOptions())
	binary.LittleEndian.PutUint32(bmp[18:], math.MaxInt32)
	binary.LittleEndian.PutUint32(bmp[22:], math.MaxInt32)
	_, _, err = decodeBMP(bmp, DefaultOptions())
	assert.ErrorIs(t, err, ErrNotHandled)
}

func TestStrip_negativeMargin(t *testing.T) {
	r := byteRaster(4, 4)
	for _, c := range []*codec{sunCodec, pnmCodec, bmpCodec, midCodec, kiffCodec, tiffCodec} {
		for _, set := range []func(o *Options){
			func(o *Options) { o.StripTop = -2 },
			func(o *Options) { o.StripBottom = -1 },
			func(o *Options) { o.StripLeft = -3 },
			func(o *Options) { o.StripRight = -1 },
		} {
			o := DefaultOptions()
			set(&o)
			_, _, err := c.decode(encodeWith(t, c, r, DefaultOptions()), o)
			assert.ErrorIs(t, err, ErrInvalidArgument, c.name)
		}
	}
}

func TestRaw16(t *testing.T) {
	r := newRaster(1, 2)
	*r.At(0, 0) = Pixel{R: 1, G: 2, B: 255}
	*r.At(0, 1) = Pixel{R: 300, G: -1, B: 0.5}

	data := encodeWith(t, raw16Codec, r, DefaultOptions())
	require.Len(t, data, 12)

	order := nativeOrder()
	var got []uint16
	for i := 0; i < len(data); i += 2 {
		got = append(got, order.Uint16(data[i:]))
	}
	assert.Equal(t, []uint16{256, 512, 65280, 65535, 0, 128}, got)
}

func TestRawSensorDumps(t *testing.T) {
	hdrc := make([]byte, hdrcSize)
	binary.LittleEndian.PutUint16(hdrc[2:], 0xfc05) // high bits are noise
	require.Equal(t, FormatHDRCRaw, SniffBytes(hdrc, int64(len(hdrc))))

	r, _, err := decodeHDRC(hdrc, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, hdrcRows, r.Rows)
	assert.Equal(t, hdrcCols, r.Cols)
	assert.Equal(t, Pixel{R: 5, G: 5, B: 5}, *r.At(0, 1))

	_, _, err = decodeDCS460(hdrc, DefaultOptions())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStrip(t *testing.T) {
	r := byteRaster(10, 10)
	o := DefaultOptions()
	o.StripTop, o.StripBottom = 2, 2

	for _, c := range []*codec{sunCodec, pnmCodec, bmpCodec, midCodec, kiffCodec} {
		got, _, err := c.decode(encodeWith(t, c, r, DefaultOptions()), o)
		require.NoError(t, err, c.name)
		assert.Equal(t, 6, got.Rows, c.name)
		assert.Equal(t, 10, got.Cols, c.name)
		assert.Equal(t, r.Pix[20:30], got.Pix[:10], c.name)
	}

	o.StripLeft, o.StripRight = 3, 1
	got, _, err := decodeTIFF(encodeWith(t, tiffCodec, r, DefaultOptions()), o)
	require.NoError(t, err)
	want, err := r.Window(2, 3, 6, 6)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))

	o.StripLeft, o.StripRight = 5, 5
	_, _, err = decodeSunRaster(encodeWith(t, sunCodec, r, DefaultOptions()), o)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCheckAlpha(t *testing.T) {
	r := byteRaster(2, 2)
	r.AddAlpha(0)

	err := sunCodec.checkAlpha(r)
	require.ErrorIs(t, err, ErrAlphaUnsupported)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.NoError(t, tiffCodec.checkAlpha(r))
	assert.NoError(t, sunCodec.checkAlpha(byteRaster(2, 2)))
}
