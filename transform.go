package kjbimage

// RotateLeft returns r turned a quarter counter-clockwise.
func RotateLeft(r *Raster) *Raster {
	return remap(r, r.Cols, r.Rows, func(i, j int) (int, int) { return j, r.Cols - 1 - i })
}

// RotateRight returns r turned a quarter clockwise.
func RotateRight(r *Raster) *Raster {
	return remap(r, r.Cols, r.Rows, func(i, j int) (int, int) { return r.Rows - 1 - j, i })
}

// FlipHorizontal mirrors r left to right.
func FlipHorizontal(r *Raster) *Raster {
	return remap(r, r.Rows, r.Cols, func(i, j int) (int, int) { return i, r.Cols - 1 - j })
}

// FlipVertical mirrors r top to bottom.
func FlipVertical(r *Raster) *Raster {
	return remap(r, r.Rows, r.Cols, func(i, j int) (int, int) { return r.Rows - 1 - i, j })
}

// remap builds a rows x cols raster whose pixel (i, j) is the source pixel
// at src(i, j). Validity and alpha travel with the pixel.
func remap(r *Raster, rows, cols int, src func(i, j int) (int, int)) *Raster {
	out := newRaster(rows, cols)
	if r.Alpha != nil {
		out.Alpha = make([]float32, rows*cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			si, sj := src(i, j)
			k := si*r.Cols + sj
			out.Pix[i*cols+j] = r.Pix[k]
			if r.Alpha != nil {
				out.Alpha[i*cols+j] = r.Alpha[k]
			}
		}
	}
	return out
}
