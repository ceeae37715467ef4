package lut

import (
	"errors"
	"sort"
)

// Spline is a natural cubic spline through a set of knots.
type Spline struct {
	x, a, b, c, d []float64
	sorted        bool
}

// NewSpline fits a natural cubic spline through (xs[i], ys[i]). At least two
// knots are needed and neighbouring knots must differ in x. Knots out of
// order are accepted: Eval then uses the first piece whose right knot is not
// below x.
func NewSpline(xs, ys []float64) (*Spline, error) {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return nil, errors.New("spline needs at least two knots with matching x and y")
	}
	sorted := true
	for i := 1; i < n; i++ {
		if xs[i] == xs[i-1] {
			return nil, errors.New("neighbouring spline knots share an x value")
		}
		sorted = sorted && xs[i] > xs[i-1]
	}

	s := &Spline{
		x: append([]float64(nil), xs...),
		a: append([]float64(nil), ys...),
		b: make([]float64, n),
		c: make([]float64, n),
		d: make([]float64, n),

		sorted: sorted,
	}
	m := n - 1
	h := make([]float64, m)
	for i := 0; i < m; i++ {
		h[i] = xs[i+1] - xs[i]
	}
	alpha := make([]float64, n)
	for i := 1; i < m; i++ {
		alpha[i] = 3 * (ys[i+1]*h[i-1] - ys[i]*(xs[i+1]-xs[i-1]) + ys[i-1]*h[i]) / (h[i-1] * h[i])
	}

	// Tridiagonal solve with natural end conditions.
	l := make([]float64, n)
	u := make([]float64, n)
	z := make([]float64, n)
	l[0] = 1
	for i := 1; i < m; i++ {
		l[i] = 2*(xs[i+1]-xs[i-1]) - h[i-1]*u[i-1]
		u[i] = h[i] / l[i]
		z[i] = (alpha[i] - h[i-1]*z[i-1]) / l[i]
	}
	for j := m - 1; j >= 0; j-- {
		s.c[j] = z[j] - u[j]*s.c[j+1]
		s.b[j] = (ys[j+1]-ys[j])/h[j] - h[j]*(s.c[j+1]+2*s.c[j])/3
		s.d[j] = (s.c[j+1] - s.c[j]) / (3 * h[j])
	}
	return s, nil
}

// Eval returns the spline value at x. Outside the knots the end pieces are
// extrapolated.
func (s *Spline) Eval(x float64) float64 {
	last := len(s.x) - 2
	var i int
	if s.sorted {
		i = min(max(sort.SearchFloat64s(s.x, x)-1, 0), last)
	} else {
		for i < last && x > s.x[i+1] {
			i++
		}
	}
	dx := x - s.x[i]
	return ((s.d[i]*dx+s.c[i])*dx+s.b[i])*dx + s.a[i]
}

// Table samples the spline at 0, 1, ..., n-1.
func (s *Spline) Table(n int) *LUT {
	return Sample(s.Eval, n, 0, 1)
}
