// Package lut holds evenly sampled lookup tables and the cubic spline used to
// build shaping tables from a few knots.
package lut

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// LUT maps x to Values[i] at x = Offset + i*Step.
type LUT struct {
	Offset float64
	Step   float64
	Values []float64
}

// Sample tabulates f at n points starting at offset.
func Sample(f func(float64) float64, n int, offset, step float64) *LUT {
	l := &LUT{Offset: offset, Step: step, Values: make([]float64, n)}
	for i := range l.Values {
		l.Values[i] = f(offset + float64(i)*step)
	}
	return l
}

// Eval interpolates linearly between the two samples around x. Inputs outside
// the table get the first or last sample. NaN maps to NaN.
func (l *LUT) Eval(x float64) float64 {
	n := len(l.Values)
	d := (x - l.Offset) / l.Step
	if n == 0 || math.IsNaN(d) {
		return math.NaN()
	}
	lb := math.Floor(d)
	switch {
	case lb < 0:
		return l.Values[0]
	case lb+1 >= float64(n):
		return l.Values[n-1]
	}
	i := int(lb)
	w := d - lb
	return (1-w)*l.Values[i] + w*l.Values[i+1]
}

// Len returns the number of samples.
func (l *LUT) Len() int { return len(l.Values) }

// ErrHeader is returned by Read when the n, o and s header options are
// missing or malformed.
var ErrHeader = errors.New("incomplete or missing LUT header")

// Read parses the text LUT format: comment lines starting with '#', of which
// those starting with "#!" carry "n=<count> o=<offset> s=<step>", followed by
// one value per line.
func Read(r io.Reader) (*LUT, error) {
	var (
		l         LUT
		n         = -1
		hasOffset bool
		hasStep   bool
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			if n <= 0 || !hasOffset || !hasStep {
				return nil, ErrHeader
			}
			if l.Values == nil {
				l.Values = make([]float64, 0, n)
			}
			for _, f := range strings.Fields(line) {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, fmt.Errorf("LUT value %q: %w", f, err)
				}
				l.Values = append(l.Values, v)
			}
			continue
		}
		line = strings.TrimSpace(line[1:])
		if !strings.HasPrefix(line, "!") {
			continue
		}
		for _, opt := range strings.Fields(line[1:]) {
			key, val, ok := strings.Cut(opt, "=")
			if !ok {
				return nil, fmt.Errorf("%w: option %q has no value", ErrHeader, opt)
			}
			var err error
			switch strings.ToLower(key) {
			case "n":
				n, err = strconv.Atoi(val)
			case "o":
				l.Offset, err = strconv.ParseFloat(val, 64)
				hasOffset = true
			case "s":
				l.Step, err = strconv.ParseFloat(val, 64)
				hasStep = true
			default:
				return nil, fmt.Errorf("%w: %q is an invalid LUT header option", ErrHeader, key)
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrHeader, key, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n <= 0 || !hasOffset || !hasStep {
		return nil, ErrHeader
	}
	if len(l.Values) != n {
		return nil, fmt.Errorf("LUT header says %d values, found %d", n, len(l.Values))
	}
	if l.Step <= 0 {
		return nil, fmt.Errorf("%w: step %g is not positive", ErrHeader, l.Step)
	}
	return &l, nil
}

// Write emits l in the format Read accepts.
func Write(w io.Writer, l *LUT) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\n#! n=%d o=%s s=%s\n\n", len(l.Values),
		strconv.FormatFloat(l.Offset, 'g', -1, 64), strconv.FormatFloat(l.Step, 'g', -1, 64))
	for _, v := range l.Values {
		bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
