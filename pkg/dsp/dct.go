package dsp

import "math"

// NewDCTMatrix returns the coeffs x bands type-II DCT basis:
// D[k][n] = s(k) * cos(pi/M * (n + 0.5) * k) with M = bands.
//
// s(k) = sqrt(2/M) for k > 0. Row 0 uses sqrt(1/M) under DCTOrtho and
// sqrt(1/2) under DCTLegacy.
func NewDCTMatrix(coeffs, bands int, norm DCTNorm) [][]float64 {
	m := float64(bands)
	scale := math.Sqrt(2 / m)
	d := make([][]float64, coeffs)
	for k := range d {
		row := make([]float64, bands)
		s := scale
		if k == 0 {
			if norm == DCTLegacy {
				s = math.Sqrt(0.5)
			} else {
				s = math.Sqrt(1 / m)
			}
		}
		for n := range row {
			row[n] = s * math.Cos(math.Pi/m*(float64(n)+0.5)*float64(k))
		}
		d[k] = row
	}
	return d
}
