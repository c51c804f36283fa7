package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectrum computes one-sided power spectra with a reused real FFT plan.
// It is not safe for concurrent use.
type spectrum struct {
	fft    *fourier.FFT
	coeffs []complex128
}

func newSpectrum(n int) *spectrum {
	return &spectrum{
		fft:    fourier.NewFFT(n),
		coeffs: make([]complex128, n/2+1),
	}
}

// power writes |X[k]|^2 for k in [0, n/2] into dst.
func (s *spectrum) power(frame, dst []float64) {
	s.coeffs = s.fft.Coefficients(s.coeffs, frame)
	for k, c := range s.coeffs {
		re, im := real(c), imag(c)
		dst[k] = re*re + im*im
	}
}

// DirectPowerSpectrum evaluates the one-sided power spectrum of frame by
// the O(n^2) DFT sum. It is the reference the FFT path is checked against.
func DirectPowerSpectrum(frame []float64) []float64 {
	n := len(frame)
	out := make([]float64, n/2+1)
	for k := range out {
		var re, im float64
		for t, x := range frame {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += x * math.Cos(angle)
			im += x * math.Sin(angle)
		}
		out[k] = re*re + im*im
	}
	return out
}
