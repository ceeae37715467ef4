package kjbimage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type kiffKind int

const (
	kiffFloat kiffKind = iota
	kiffFloatWithValidity
	kiffByte
)

var kiffKindNames = map[string]kiffKind{
	"float":               kiffFloat,
	"float_with_validity": kiffFloatWithValidity,
	"Byte":                kiffByte,
}

func (k kiffKind) stride() int {
	switch k {
	case kiffFloatWithValidity:
		return 16
	case kiffByte:
		return 3
	default:
		return 12
	}
}

const kiffAnnotation = "\n\n:\n"

type kiffHeader struct {
	kind       kiffKind
	order      binary.ByteOrder
	rows, cols int
	dataOffset int
}

// lineCursor walks newline-terminated header lines of a byte slice.
type lineCursor struct {
	data []byte
	pos  int
}

func (c *lineCursor) line() (string, bool) {
	if c.pos >= len(c.data) {
		return "", false
	}
	rest := c.data[c.pos:]
	i := bytes.IndexByte(rest, '\n')
	if i < 0 {
		c.pos = len(c.data)
		return string(rest), true
	}
	c.pos += i + 1
	return string(rest[:i]), true
}

func kiffFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == ',' || r == '\r' })
}

func parseKiffHeader(data []byte) (kiffHeader, error) {
	var h kiffHeader
	order, ok := magicOrder(data, kiffMagic, kiffLegacyMagic)
	if !ok {
		return h, corruptf("kiff magic number is wrong")
	}
	h.order = order

	c := lineCursor{data: data, pos: 4}
	c.line() // remainder of the magic line

	line, _ := c.line()
	f := kiffFields(line)
	if len(f) < 1 || f[0] != "kformat:" {
		return h, corruptf("missing or misplaced kiff \"kformat:\" field")
	}
	if len(f) < 2 {
		return h, corruptf("missing kiff format")
	}
	kind, ok := kiffKindNames[f[1]]
	if !ok {
		return h, corruptf("invalid kiff format %q", f[1])
	}
	h.kind = kind

	line, _ = c.line()
	f = kiffFields(line)
	if len(f) < 2 || f[0] != "rows:" {
		return h, corruptf("missing or misplaced kiff \"rows:\" field")
	}
	rows, err := strconv.Atoi(f[1])
	if err != nil {
		return h, corruptf("kiff rows %q", f[1])
	}
	f = f[2:]
	if len(f) == 0 {
		// Newer headers put cols on a line of its own.
		line, _ = c.line()
		f = kiffFields(line)
	}
	if len(f) < 2 || f[0] != "cols:" {
		return h, corruptf("missing or misplaced kiff \"cols:\" field")
	}
	cols, err := strconv.Atoi(f[1])
	if err != nil {
		return h, corruptf("kiff cols %q", f[1])
	}

	line, _ = c.line()
	f = kiffFields(line)
	if len(f) < 3 || f[0] != "annotation" || f[1] != "length:" {
		return h, corruptf("missing or misplaced kiff \"annotation length:\" field")
	}
	n, err := strconv.Atoi(f[2])
	if err != nil || n < 0 {
		return h, corruptf("kiff annotation length %q", f[2])
	}
	if c.pos+n > len(data) {
		return h, corruptf("kiff annotation runs past the end of the file")
	}
	if rows < 1 || cols < 1 {
		return h, corruptf("kiff dimensions %dx%d are invalid", rows, cols)
	}
	h.rows, h.cols = rows, cols
	h.dataOffset = c.pos + n
	return h, nil
}

func decodeKiff(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatKiff}
	h, err := parseKiffHeader(data)
	if err != nil {
		return nil, dec, err
	}
	w, err := stripWindow(h.rows, h.cols, o)
	if err != nil {
		return nil, dec, err
	}

	stride := h.kind.stride()
	payload := data[h.dataOffset:]
	if !fitsPayload(h.rows, h.cols, stride, len(payload)) {
		return nil, dec, corruptf("kiff payload has %d bytes, too few for a %dx%d image", len(payload), h.rows, h.cols)
	}
	need := h.rows * h.cols * stride
	switch {
	case len(payload) > need && h.kind == kiffByte:
		return nil, dec, corruptf("Byte kiff payload has %d bytes, expected %d", len(payload), need)
	case len(payload) > need:
		o.logger().Warn("kiff payload longer than expected, ignoring the rest",
			"have", len(payload), "need", need)
	}

	out := newRaster(w.rows, w.cols)
	for i := 0; i < w.rows; i++ {
		for j := 0; j < w.cols; j++ {
			off := ((w.row+i)*h.cols + w.col + j) * stride
			b := payload[off : off+stride]
			p := out.At(i, j)
			switch h.kind {
			case kiffByte:
				p.R, p.G, p.B = float32(b[0]), float32(b[1]), float32(b[2])
			case kiffFloatWithValidity:
				p.R = getF32(b[0:], h.order)
				p.G = getF32(b[4:], h.order)
				p.B = getF32(b[8:], h.order)
				if !o.ForceValidKiffOnRead {
					p.Valid.R = Validity(b[12])
					p.Valid.G = Validity(b[13])
					p.Valid.B = Validity(b[14])
				}
			case kiffFloat:
				p.R = getF32(b[0:], h.order)
				p.G = getF32(b[4:], h.order)
				p.B = getF32(b[8:], h.order)
				if o.InvalidateNegativePixels {
					p.R, p.Valid.R = negativeInvalid(p.R)
					p.G, p.Valid.G = negativeInvalid(p.G)
					p.B, p.Valid.B = negativeInvalid(p.B)
				}
			}
			p.Settle()
		}
	}

	switch h.kind {
	case kiffFloatWithValidity:
		// Still embedded when the stored flags were discarded, so the read
		// pipeline does not re-mark the image.
		dec.EmbeddedValidity = true
	case kiffFloat:
		dec.EmbeddedValidity = o.InvalidateNegativePixels
	}
	return out, dec, nil
}

// negativeInvalid decodes the float kiff convention: a negative value is the
// magnitude of an invalid channel.
func negativeInvalid(v float32) (float32, Validity) {
	if v < 0 {
		return -v, Invalid
	}
	return v, Valid
}

func encodeKiff(w io.Writer, r *Raster, o Options) error {
	order := nativeOrder()
	bw := bufio.NewWriter(w)

	var magic [4]byte
	order.PutUint32(magic[:], kiffMagic)
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	kind := "float"
	if o.WriteValidityKiff {
		kind = "float_with_validity"
	}
	if _, err := fmt.Fprintf(bw, "\nkformat: %s\nrows: %d, cols: %d\nannotation length: %d\n%s",
		kind, r.Rows, r.Cols, len(kiffAnnotation), kiffAnnotation); err != nil {
		return err
	}

	var buf [16]byte
	for i := range r.Pix {
		p := &r.Pix[i]
		if o.WriteValidityKiff {
			putF32(buf[0:], order, p.R)
			putF32(buf[4:], order, p.G)
			putF32(buf[8:], order, p.B)
			buf[12] = byte(p.Valid.R)
			buf[13] = byte(p.Valid.G)
			buf[14] = byte(p.Valid.B)
			buf[15] = byte(p.Valid.Pixel)
			if _, err := bw.Write(buf[:16]); err != nil {
				return err
			}
			continue
		}
		rv, gv, bv := p.R, p.G, p.B
		if o.InvalidateNegativePixels {
			if p.Valid.R != Valid || p.Valid.Pixel != Valid {
				rv = -rv
			}
			if p.Valid.G != Valid || p.Valid.Pixel != Valid {
				gv = -gv
			}
			if p.Valid.B != Valid || p.Valid.Pixel != Valid {
				bv = -bv
			}
		}
		putF32(buf[0:], order, rv)
		putF32(buf[4:], order, gv)
		putF32(buf[8:], order, bv)
		if _, err := bw.Write(buf[:12]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
