package dsp

import "math"

// HannWindow returns the symmetric Hann window of length n:
// w[i] = 0.5 * (1 - cos(2*pi*i/(n-1))).
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
