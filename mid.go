package kjbimage

import (
	"bufio"
	"bytes"
	"io"
)

const midHeaderLen = 12

func decodeMID(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatMID}
	order, ok := magicOrder(data, midMagic)
	if !ok {
		return nil, dec, corruptf("invalid MID image, magic number is wrong")
	}
	r := bytes.NewReader(data[4:])
	rows, err := readI32(r, order)
	if err != nil {
		return nil, dec, corruptf("MID header: %v", err)
	}
	cols, err := readI32(r, order)
	if err != nil {
		return nil, dec, corruptf("MID header: %v", err)
	}
	w, err := stripWindow(int(rows), int(cols), o)
	if err != nil {
		return nil, dec, err
	}
	if !fitsPayload(int(rows), int(cols), 12, len(data)-midHeaderLen) {
		return nil, dec, corruptf("MID file has %d bytes, too few for a %dx%d image", len(data), rows, cols)
	}
	plane := int(rows) * int(cols) * 4
	if want := midHeaderLen + 3*plane; len(data) != want {
		return nil, dec, corruptf("MID file has %d bytes, %dx%d image needs %d", len(data), rows, cols, want)
	}

	out := newRaster(w.rows, w.cols)
	for ch := 0; ch < 3; ch++ {
		base := data[midHeaderLen+ch*plane:]
		for i := 0; i < w.rows; i++ {
			for j := 0; j < w.cols; j++ {
				off := ((w.row+i)*int(cols) + w.col + j) * 4
				v := getF32(base[off:], order)
				p := out.At(i, j)
				switch ch {
				case 0:
					p.R = v
				case 1:
					p.G = v
				default:
					p.B = v
				}
			}
		}
	}
	return out, dec, nil
}

func encodeMID(w io.Writer, r *Raster, _ Options) error {
	order := nativeOrder()
	bw := bufio.NewWriter(w)
	var hdr [midHeaderLen]byte
	order.PutUint32(hdr[0:], midMagic)
	order.PutUint32(hdr[4:], uint32(int32(r.Rows)))
	order.PutUint32(hdr[8:], uint32(int32(r.Cols)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	var buf [4]byte
	channels := []func(p *Pixel) float32{
		func(p *Pixel) float32 { return p.R },
		func(p *Pixel) float32 { return p.G },
		func(p *Pixel) float32 { return p.B },
	}
	for _, get := range channels {
		for i := range r.Pix {
			putF32(buf[:], order, get(&r.Pix[i]))
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
