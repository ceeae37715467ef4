package kjbimage

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// pnmTokens reads the whitespace separated header fields of a PNM file,
// skipping # comments. It returns the offset just past the single whitespace
// byte that ends the last token.
func pnmTokens(data []byte, n int) ([]string, int, error) {
	var tokens []string
	i := 0
	for len(tokens) < n {
		for i < len(data) {
			c := data[i]
			if c == '#' {
				for i < len(data) && data[i] != '\n' {
					i++
				}
				continue
			}
			if !isSpace(c) {
				break
			}
			i++
		}
		start := i
		for i < len(data) && !isSpace(data[i]) && data[i] != '#' {
			i++
		}
		if start == i {
			return nil, 0, corruptf("PNM header is truncated")
		}
		tokens = append(tokens, string(data[start:i]))
	}
	if i >= len(data) || !isSpace(data[i]) {
		return nil, 0, corruptf("PNM header is not followed by whitespace")
	}
	return tokens, i + 1, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func decodePNM(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatPNM}
	tok, off, err := pnmTokens(data, 4)
	if err != nil {
		return nil, dec, err
	}
	if tok[0] != "P6" {
		return nil, dec, corruptf("PNM magic %q is not P6", tok[0])
	}
	cols, err1 := strconv.Atoi(tok[1])
	rows, err2 := strconv.Atoi(tok[2])
	maxval, err3 := strconv.Atoi(tok[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, dec, corruptf("PNM header fields %q", tok[1:])
	}
	if maxval != 255 {
		return nil, dec, notHandledf("PNM maxval %d, only 255 is read natively", maxval)
	}
	w, err := stripWindow(rows, cols, o)
	if err != nil {
		return nil, dec, err
	}
	pixels := data[off:]
	if !fitsPayload(rows, cols, 3, len(pixels)) {
		return nil, dec, corruptf("PNM data has %d bytes, too few for a %dx%d image", len(pixels), rows, cols)
	}
	if need := 3 * rows * cols; len(pixels) > need {
		o.logger().Warn("PNM file longer than expected, ignoring the rest", "have", len(pixels), "need", need)
	}

	out := newRaster(w.rows, w.cols)
	for i := 0; i < w.rows; i++ {
		row := pixels[3*(w.row+i)*cols:]
		for j := 0; j < w.cols; j++ {
			s := row[3*(w.col+j):]
			p := out.At(i, j)
			p.R, p.G, p.B = float32(s[0]), float32(s[1]), float32(s[2])
		}
	}
	return out, dec, nil
}

func encodePNM(w io.Writer, r *Raster, _ Options) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", r.Cols, r.Rows); err != nil {
		return err
	}
	var buf [3]byte
	for i := range r.Pix {
		p := &r.Pix[i]
		buf[0], buf[1], buf[2] = to8(p.R), to8(p.G), to8(p.B)
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
