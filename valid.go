package kjbimage

import "math"

// MarkClipped sets Clipped on every channel above clip and clears it on the
// others. It returns the number of pixels with at least one clipped channel.
// A clip point at or beyond half of math.MaxFloat32 leaves r untouched.
func MarkClipped(r *Raster, clip float32) int {
	if clip >= math.MaxFloat32/2 {
		return 0
	}
	count := 0
	for i := range r.Pix {
		p := &r.Pix[i]
		p.Valid.R = flagIf(p.Valid.R, Clipped, p.R > clip)
		p.Valid.G = flagIf(p.Valid.G, Clipped, p.G > clip)
		p.Valid.B = flagIf(p.Valid.B, Clipped, p.B > clip)
		p.Settle()
		if (p.Valid.Pixel & Clipped) != 0 {
			count++
		}
	}
	return count
}

// MarkDark sets Dark on channels below their minimum and clears it elsewhere.
// All three channels are set when the channel sum is below minSum. It
// returns the number of dark pixels.
func MarkDark(r *Raster, minR, minG, minB, minSum float32) int {
	count := 0
	for i := range r.Pix {
		p := &r.Pix[i]
		p.Valid.R = flagIf(p.Valid.R, Dark, p.R < minR)
		p.Valid.G = flagIf(p.Valid.G, Dark, p.G < minG)
		p.Valid.B = flagIf(p.Valid.B, Dark, p.B < minB)
		if p.R+p.G+p.B < minSum {
			p.Valid.R |= Dark
			p.Valid.G |= Dark
			p.Valid.B |= Dark
		}
		p.Settle()
		if (p.Valid.Pixel & Dark) != 0 {
			count++
		}
	}
	return count
}

// UnmarkDark clears Dark everywhere.
func UnmarkDark(r *Raster) {
	for i := range r.Pix {
		p := &r.Pix[i]
		p.Valid.R &^= Dark
		p.Valid.G &^= Dark
		p.Valid.B &^= Dark
		p.Settle()
	}
}

// MarkBloomingCandidates returns a copy of r in which every clipped channel
// also marks the same channel of its eight neighbours as clipped. Each call
// grows clipped regions by one pixel.
func MarkBloomingCandidates(r *Raster) *Raster {
	out := r.Clone()
	for i := 0; i < r.Rows; i++ {
		for j := 0; j < r.Cols; j++ {
			v := r.At(i, j).Valid
			spread := PixelValidity{R: v.R & Clipped, G: v.G & Clipped, B: v.B & Clipped}
			if spread.R|spread.G|spread.B == 0 {
				continue
			}
			for di := -1; di <= 1; di++ {
				ni := i + di
				if ni < 0 || ni >= r.Rows {
					continue
				}
				for dj := -1; dj <= 1; dj++ {
					nj := j + dj
					if nj < 0 || nj >= r.Cols {
						continue
					}
					q := out.At(ni, nj)
					q.Valid.R |= spread.R
					q.Valid.G |= spread.G
					q.Valid.B |= spread.B
				}
			}
		}
	}
	out.settle()
	return out
}

// MarkPixelsAboveThreshold is MarkClipped with a caller supplied threshold
// and no fast path. It returns the number of pixels that became invalid.
func MarkPixelsAboveThreshold(r *Raster, max float64) int {
	limit := float32(max)
	return markBy(r, Clipped, func(v float32) bool { return v > limit })
}

// MarkPixelsBelowThreshold sets Dark on channels below min and clears it on
// the others. It returns the number of pixels that became invalid.
func MarkPixelsBelowThreshold(r *Raster, min float64) int {
	limit := float32(min)
	return markBy(r, Dark, func(v float32) bool { return v < limit })
}

func markBy(r *Raster, flag Validity, hit func(float32) bool) int {
	count := 0
	for i := range r.Pix {
		p := &r.Pix[i]
		was := p.Valid.Pixel
		p.Valid.R = flagIf(p.Valid.R, flag, hit(p.R))
		p.Valid.G = flagIf(p.Valid.G, flag, hit(p.G))
		p.Valid.B = flagIf(p.Valid.B, flag, hit(p.B))
		p.Settle()
		if was == Valid && p.Valid.Pixel != Valid {
			count++
		}
	}
	return count
}

// CountInvalid returns the number of pixels with any validity flag set.
func CountInvalid(r *Raster) int {
	n := 0
	for i := range r.Pix {
		if r.Pix[i].Valid.Pixel != Valid {
			n++
		}
	}
	return n
}

// ResetValidity marks every pixel valid.
func ResetValidity(r *Raster) {
	for i := range r.Pix {
		r.Pix[i].Valid = PixelValidity{}
	}
}

func flagIf(v, flag Validity, set bool) Validity {
	if set {
		return v | flag
	}
	return v &^ flag
}
