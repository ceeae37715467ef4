package kjbimage

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/ivilab/kjbimage/internal/lut"
)

// Gamma tables cover [0, 3] times the white point at five samples per 8 bit
// step.
const (
	gammaLUTPrecision = 5 * 255
	gammaLUTSize      = 1 + 3*gammaLUTPrecision
)

var channelNames = [3]string{"red", "green", "blue"}

type gammaKey struct {
	dir     string
	gamma   [3]float64
	user    bool
	inverse bool
}

var gammaTables = struct {
	sync.Mutex
	m map[gammaKey][3]*lut.LUT
}{m: map[gammaKey][3]*lut.LUT{}}

// gammaLUTs returns the three channel tables for key, building them on first
// use.
func gammaLUTs(key gammaKey, o Options) [3]*lut.LUT {
	gammaTables.Lock()
	defer gammaTables.Unlock()
	if t, ok := gammaTables.m[key]; ok {
		return t
	}
	var t [3]*lut.LUT
	switch {
	case key.user:
		for c := range t {
			e := key.gamma[c]
			if !key.inverse {
				e = 1 / e
			}
			t[c] = sampleGamma(func(x float64) float64 { return math.Pow(x, e) })
		}
	default:
		var err error
		if key.dir != "" {
			t, err = readGammaLUTs(key.dir, key.inverse)
			if err != nil {
				o.logger().Warn("gamma lookup tables unavailable, using PCD transfer function",
					"dir", key.dir, "error", err)
			}
		}
		if key.dir == "" || err != nil {
			f := pcdForward
			if key.inverse {
				f = pcdInverse
			}
			for c := range t {
				t[c] = sampleGamma(f)
			}
		}
	}
	gammaTables.m[key] = t
	return t
}

func sampleGamma(f func(float64) float64) *lut.LUT {
	l := lut.Sample(f, gammaLUTSize, 0, 1.0/gammaLUTPrecision)
	l.Values[0] = 0
	return l
}

func readGammaLUTs(dir string, inverse bool) ([3]*lut.LUT, error) {
	var t [3]*lut.LUT
	prefix := "gamma_"
	if inverse {
		prefix = "gamma_inversion_"
	}
	for c, name := range channelNames {
		path := filepath.Join(dir, prefix+name+".lut")
		f, err := os.Open(path)
		if err != nil {
			return t, err
		}
		t[c], err = lut.Read(f)
		f.Close()
		if err != nil {
			return t, fmt.Errorf("%s: %w", path, err)
		}
	}
	return t, nil
}

func gammaKeyFor(gamma []float64, inverse bool, o Options) (gammaKey, error) {
	key := gammaKey{dir: o.GammaLUTDir, inverse: inverse}
	if gamma == nil {
		return key, nil
	}
	if len(gamma) != 3 {
		return key, invalidArgf("gamma vector has %d elements, want 3", len(gamma))
	}
	for c, g := range gamma {
		if g <= 0 || math.IsNaN(g) {
			return key, invalidArgf("%s gamma %g is not positive", channelNames[c], g)
		}
	}
	key.dir = ""
	key.user = true
	copy(key.gamma[:], gamma)
	return key, nil
}

// GammaCorrect applies the gamma transfer function to r in place. Values are
// divided by the linear white point, looked up and scaled by the gamma white
// point. A nil gamma selects the default tables; otherwise it must hold one
// exponent per channel and the tables apply x^(1/g).
func GammaCorrect(r *Raster, gamma []float64, o Options) error {
	if err := checkWhitePoints(o); err != nil {
		return err
	}
	key, err := gammaKeyFor(gamma, false, o)
	if err != nil {
		return err
	}
	applyGamma(r, gammaLUTs(key, o), o.LinearWhitePoint, o.GammaWhitePoint)
	return nil
}

// InvertGamma is the inverse of GammaCorrect.
func InvertGamma(r *Raster, gamma []float64, o Options) error {
	if err := checkWhitePoints(o); err != nil {
		return err
	}
	key, err := gammaKeyFor(gamma, true, o)
	if err != nil {
		return err
	}
	applyGamma(r, gammaLUTs(key, o), o.GammaWhitePoint, o.LinearWhitePoint)
	return nil
}

func applyGamma(r *Raster, t [3]*lut.LUT, inWhite, outWhite float64) {
	for i := range r.Pix {
		p := &r.Pix[i]
		p.R = float32(t[0].Eval(float64(p.R)/inWhite) * outWhite)
		p.G = float32(t[1].Eval(float64(p.G)/inWhite) * outWhite)
		p.B = float32(t[2].Eval(float64(p.B)/inWhite) * outWhite)
	}
}

// gammaVector turns a single gamma offset option into the per-channel
// exponent vector used by the read pipeline.
func gammaVector(g float64) []float64 {
	return []float64{1 / g, 1 / g, 1 / g}
}

var errNoWhitePoint = errors.New("white point must be positive")

func checkWhitePoints(o Options) error {
	if o.LinearWhitePoint <= 0 || o.GammaWhitePoint <= 0 {
		return fmt.Errorf("%w: %w (linear %g, gamma %g)", ErrInvalidArgument, errNoWhitePoint,
			o.LinearWhitePoint, o.GammaWhitePoint)
	}
	return nil
}
