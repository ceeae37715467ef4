package kjbimage

import "math"

// pcdForward is the Photo-CD transfer function, linear to gamma encoded, on
// the unit scale.
func pcdForward(x float64) float64 {
	if x > 0.018 {
		return 1.099*math.Pow(x, 0.45) - 0.099
	}
	return 4.5 * x
}

// pcdInverse undoes pcdForward.
func pcdInverse(x float64) float64 {
	if x < 0.081 {
		return x / 4.5
	}
	return math.Pow((x+0.099)/1.099, 20.0/9.0)
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
