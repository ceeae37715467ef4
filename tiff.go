package kjbimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"io"

	"golang.org/x/image/tiff"
)

const (
	tiffTagBitsPerSample   = 258
	tiffTagSamplesPerPixel = 277
	tiffTagExtraSamples    = 338

	tiffTypeShort = 3
	tiffTypeLong  = 4
)

// tiffLayout is the subset of the first IFD needed to decide whether the
// native decoder takes the file.
type tiffLayout struct {
	bitsPerSample   int
	samplesPerPixel int
	extraSamples    int
}

func scanTIFFLayout(data []byte) (tiffLayout, error) {
	l := tiffLayout{bitsPerSample: 1, samplesPerPixel: 1}
	if len(data) < 8 {
		return l, corruptf("TIFF header is truncated")
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return l, corruptf("TIFF byte order mark %q", data[:2])
	}
	off := int64(order.Uint32(data[4:]))
	if off < 8 || off+2 > int64(len(data)) {
		return l, corruptf("TIFF IFD offset %d is outside the file", off)
	}
	n := int64(order.Uint16(data[off:]))
	if off+2+12*n > int64(len(data)) {
		return l, corruptf("TIFF IFD with %d entries runs past the end of the file", n)
	}
	for i := int64(0); i < n; i++ {
		e := data[off+2+12*i:]
		tag := order.Uint16(e)
		typ := order.Uint16(e[2:])
		count := order.Uint32(e[4:])
		first := func() int {
			if typ == tiffTypeLong {
				return int(order.Uint32(e[8:]))
			}
			if typ == tiffTypeShort && count > 2 {
				// Values that do not fit the entry are stored at an offset.
				p := int64(order.Uint32(e[8:]))
				if p+2 > int64(len(data)) {
					return -1
				}
				return int(order.Uint16(data[p:]))
			}
			return int(order.Uint16(e[8:]))
		}
		switch tag {
		case tiffTagBitsPerSample:
			l.bitsPerSample = first()
		case tiffTagSamplesPerPixel:
			l.samplesPerPixel = first()
		case tiffTagExtraSamples:
			l.extraSamples = int(count)
		}
	}
	return l, nil
}

func (l tiffLayout) colourSamples() int {
	return l.samplesPerPixel - l.extraSamples
}

func decodeTIFF(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatTIFF}
	l, err := scanTIFFLayout(data)
	if err != nil {
		return nil, dec, err
	}
	if cs := l.colourSamples(); (cs != 1 && cs != 3) || l.extraSamples > 1 {
		return nil, dec, notHandledf("TIFF with %d samples per pixel (%d extra)", l.samplesPerPixel, l.extraSamples)
	}
	if l.bitsPerSample != 8 && l.bitsPerSample != 16 {
		return nil, dec, notHandledf("TIFF with %d bits per sample", l.bitsPerSample)
	}

	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		var unsupported tiff.UnsupportedError
		if errors.As(err, &unsupported) {
			return nil, dec, notHandledf("TIFF: %v", err)
		}
		return nil, dec, corruptf("TIFF: %v", err)
	}
	b := img.Bounds()
	w, err := stripWindow(b.Dy(), b.Dx(), o)
	if err != nil {
		return nil, dec, err
	}
	out := rasterFromImage(img, w, l.extraSamples == 1)
	return out, dec, nil
}

// encodeTIFF writes an uncompressed RGBA TIFF at the configured bit depth.
// The alpha sample is opaque when the raster has no alpha plane.
func encodeTIFF(w io.Writer, r *Raster, o Options) error {
	var img image.Image
	switch o.TIFFWriteBPS {
	case 16:
		img = r.Image()
	case 8:
		img = r.image8()
	default:
		return invalidArgf("TIFF write bits per sample %d", o.TIFFWriteBPS)
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Uncompressed})
}
