package kjbimage

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ivilab/kjbimage/internal/lut"
)

// Photo-CD knots for data beyond 100% white at gamma 2.2.
var (
	pcdKnotX = []float64{0, 11, 22, 46, 72, 91, 107, 134, 156, 175, 192, 207, 221, 235, 247, 255,
		271, 292, 311, 330, 347}
	pcdKnotY = []float64{0, 13, 23, 47, 71, 88, 102, 126, 145, 161, 176, 188, 201, 213, 223, 229,
		240, 249, 253, 254, 255}
)

const (
	pcdSplineTop = 347
	pcdTableTop  = 350

	// pcdLegacyKnot is the misplaced x knot of shape 0, kept to reproduce old
	// results.
	pcdLegacyKnot = 211

	pcdGammaWhite  = 247.0
	pcdLinearWhite = 127.5
)

var pcdTable = [pcdTableTop + 1]float64{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18,
	19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 32, 33, 34, 35,
	36, 37, 38, 39, 40, 41, 42, 43, 45, 46, 47, 48, 49, 50, 51, 52,
	53, 54, 56, 57, 58, 59, 60, 61, 62, 63, 64, 66, 67, 68, 69, 70,
	71, 72, 73, 74, 76, 77, 78, 79, 80, 81, 82, 83, 84, 86, 87, 88,
	89, 90, 91, 92, 93, 94, 95, 97, 98, 99, 100, 101, 102, 103, 104,
	105, 106, 107, 108, 110, 111, 112, 113, 114, 115, 116, 117, 118,
	119, 120, 121, 122, 123, 124, 125, 126, 127, 129, 130, 131, 132,
	133, 134, 135, 136, 137, 138, 139, 140, 141, 142, 143, 144, 145,
	146, 147, 148, 149, 150, 151, 152, 153, 154, 155, 156, 157, 158,
	159, 160, 161, 162, 163, 164, 165, 166, 167, 168, 169, 170, 171,
	172, 173, 174, 175, 176, 176, 177, 178, 179, 180, 181, 182, 183,
	184, 185, 186, 187, 188, 189, 190, 191, 192, 193, 193, 194, 195,
	196, 197, 198, 199, 200, 201, 201, 202, 203, 204, 205, 206, 207,
	207, 208, 209, 210, 211, 211, 212, 213, 214, 215, 215, 216, 217,
	218, 218, 219, 220, 221, 221, 222, 223, 224, 224, 225, 226, 226,
	227, 228, 228, 229, 230, 230, 231, 232, 232, 233, 234, 234, 235,
	236, 236, 237, 237, 238, 238, 239, 240, 240, 241, 241, 242, 242,
	243, 243, 244, 244, 245, 245, 245, 246, 246, 247, 247, 247, 248,
	248, 248, 249, 249, 249, 249, 250, 250, 250, 250, 251, 251, 251,
	251, 251, 252, 252, 252, 252, 252, 253, 253, 253, 253, 253, 253,
	253, 253, 253, 253, 253, 253, 253, 254, 254, 254, 254, 254, 254,
	254, 254, 254, 254, 254, 254, 254, 254, 254, 254, 254, 254, 254,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255,
}

var pcdSplineTables = [2]func() []float64{
	sync.OnceValue(func() []float64 { return pcdSplineTable(true) }),
	sync.OnceValue(func() []float64 { return pcdSplineTable(false) }),
}

func pcdSplineTable(legacy bool) []float64 {
	xs := append([]float64(nil), pcdKnotX...)
	if legacy {
		xs[18] = pcdLegacyKnot
	}
	s, err := lut.NewSpline(xs, pcdKnotY)
	if err != nil {
		// The knots are constant and never repeat an x value.
		panic(err)
	}
	return s.Table(pcdSplineTop + 1).Values
}

// ApplyPCDOutputLUT maps channel values through the Photo-CD output shaping
// table selected by shape: 0 and 1 are the spline tables (0 with the legacy
// knot), 2 is the fixed table. Negative values become 0 and are marked Dark,
// values past the table become 255 and are marked Clipped. NaN channels are
// marked Invalid and left as they are. It returns the number of pixels with a
// channel out of range.
func ApplyPCDOutputLUT(r *Raster, shape int) (int, error) {
	var table []float64
	switch shape {
	case 0, 1:
		table = pcdSplineTables[shape]()
	case 2:
		table = pcdTable[:]
	default:
		return 0, invalidArgf("PCD shape function %d, want 0, 1 or 2", shape)
	}
	top := len(table) - 1

	shapeChannel := func(v float32, flag *Validity) (float32, bool) {
		switch {
		case math.IsNaN(float64(v)):
			*flag |= Invalid
			return v, true
		case v < 0:
			*flag |= Dark
			return 0, true
		case v > float32(top):
			*flag |= Clipped
			return 255, true
		}
		lo := int(v)
		hi := min(lo+1, top)
		d := float64(v) - float64(lo)
		return float32((1-d)*table[lo] + d*table[hi]), false
	}

	count := 0
	for i := range r.Pix {
		p := &r.Pix[i]
		var out [3]bool
		p.R, out[0] = shapeChannel(p.R, &p.Valid.R)
		p.G, out[1] = shapeChannel(p.G, &p.Valid.G)
		p.B, out[2] = shapeChannel(p.B, &p.Valid.B)
		if out[0] || out[1] || out[2] {
			count++
		}
		p.Settle()
	}
	return count, nil
}

// LinearizePCD undoes the Photo-CD transfer function. Gamma encoded white at
// 247 maps to 127.5. Validity is not touched.
func LinearizePCD(r *Raster) {
	f := func(v float32) float32 {
		return float32(pcdLinearWhite * pcdInverse(float64(v)/pcdGammaWhite))
	}
	for i := range r.Pix {
		p := &r.Pix[i]
		p.R, p.G, p.B = f(p.R), f(p.G), f(p.B)
	}
}

// YCCToRGB converts Photo-CD YCC held in the R, G and B slots to RGB. The
// forward flag selects the forward equations over the inverted backward
// ones. Any problem with the YCC pixel affects every RGB channel, so each
// channel starts from the aggregate validity. Negative results are clamped
// to 0 and marked Dark. It returns the number of pixels with a negative
// channel.
func YCCToRGB(r *Raster, forward bool) int {
	kl, k1, k2 := float32(1.402), float32(2.289), float32(1.880)
	if forward {
		kl, k1, k2 = 1.3584, 2.2179, 1.8215
	}
	count := 0
	for i := range r.Pix {
		p := &r.Pix[i]
		l := kl * p.R
		c1 := k1 * (p.G - 156)
		c2 := k2 * (p.B - 137)

		v := p.Valid.Pixel
		p.Valid.R, p.Valid.G, p.Valid.B = v, v, v

		neg := false
		p.R, neg = darkIfNegative(l+c2, &p.Valid.R, neg)
		p.G, neg = darkIfNegative(l-0.194*c1-0.509*c2, &p.Valid.G, neg)
		p.B, neg = darkIfNegative(l+c1, &p.Valid.B, neg)
		if neg {
			count++
		}
		p.Settle()
	}
	return count
}

func darkIfNegative(v float32, flag *Validity, neg bool) (float32, bool) {
	if v < 0 {
		*flag |= Dark
		return 0, true
	}
	return v, neg
}

// pcdSubImage parses the "[n]" resolution suffix of a Photo-CD file name.
func pcdSubImage(sub string) (int, error) {
	if sub == "" {
		return defaultPCDSubImage, nil
	}
	n, err := strconv.Atoi(sub)
	if err != nil {
		return 0, invalidArgf("unable to determine PCD sub-image number from %q", sub)
	}
	if n < 1 || n > 5 {
		return 0, invalidArgf("%d is an invalid PCD sub-image number", n)
	}
	return n, nil
}

// readPCD extracts the YCC planes of a Photo-CD image with the external
// hpcdtoppm tool and reads them back as a raster still in YCC. The quarter
// turn stored in the header is undone. Saturated luma and chroma are marked
// Clipped. Any failure of the tool is reported as not handled.
func readPCD(ctx context.Context, path, sub string, rotation int, o Options) (*Raster, error) {
	n, err := pcdSubImage(sub)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(o.TempDir, "kjbimage-pcd-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	ppm := filepath.Join(dir, "ycc.ppm")

	args := []string{"-ycc", "-rep"}
	if n < 5 {
		args = append(args, "-x")
	}
	args = append(args, "-"+strconv.Itoa(n), path, ppm)
	if err := runTool(ctx, o, o.PCDProgram, args...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotHandled, err)
	}
	data, err := os.ReadFile(ppm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s produced no image: %w", ErrNotHandled, o.PCDProgram, err)
	}
	ycc, _, err := decodePNM(data, o)
	if err != nil {
		return nil, err
	}

	switch rotation {
	case 1:
		ycc = RotateLeft(ycc)
	case 3:
		ycc = RotateRight(ycc)
	}

	MarkPixelsAboveThreshold(ycc, pcdClipThreshold)
	chroma := 0
	for i := range ycc.Pix {
		p := &ycc.Pix[i]
		hit := false
		if p.G < pcdChromaClipLimit {
			p.Valid.G |= Clipped
			hit = true
		}
		if p.B < pcdChromaClipLimit {
			p.Valid.B |= Clipped
			hit = true
		}
		if hit {
			chroma++
			p.Settle()
		}
	}
	o.logger().Debug("PCD chroma saturated", "pixels", chroma)
	return ycc, nil
}
