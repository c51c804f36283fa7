package dsp

import "math"

// HzToMel converts a frequency in Hz to the HTK mel scale.
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz is the inverse of HzToMel.
func MelToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// Filterbank is a set of triangular filters over the one-sided spectrum.
// Only the non-zero span of each filter is stored.
type Filterbank struct {
	bands   int
	bins    int
	start   []int
	weights [][]float64
}

// NewMelFilterbank builds bands triangular filters spanning 0 Hz to the
// Nyquist frequency for an fftSize-point transform at sampleRate.
//
// Band edges are bands+2 points equally spaced in mel. Each point maps to
// bin floor((fftSize+1)*hz/sampleRate). Filter b rises over
// [edge[b], edge[b+1]) and falls over [edge[b+1], edge[b+2]).
func NewMelFilterbank(sampleRate, fftSize, bands int) *Filterbank {
	bins := fftSize/2 + 1
	maxMel := HzToMel(float64(sampleRate) / 2)

	edges := make([]int, bands+2)
	for i := range edges {
		mel := maxMel * float64(i) / float64(bands+1)
		bin := int(math.Floor(float64(fftSize+1) * MelToHz(mel) / float64(sampleRate)))
		if bin >= bins {
			bin = bins - 1
		}
		edges[i] = bin
	}

	fb := &Filterbank{
		bands:   bands,
		bins:    bins,
		start:   make([]int, bands),
		weights: make([][]float64, bands),
	}
	for b := 0; b < bands; b++ {
		lo, center, hi := edges[b], edges[b+1], edges[b+2]
		w := make([]float64, hi-lo)
		for j := lo; j < center; j++ {
			w[j-lo] = float64(j-lo) / float64(center-lo)
		}
		for j := center; j < hi; j++ {
			w[j-lo] = float64(hi-j) / float64(hi-center)
		}
		fb.start[b] = lo
		fb.weights[b] = w
	}
	return fb
}

// Bands returns the number of filters.
func (fb *Filterbank) Bands() int { return fb.bands }

// Bins returns the spectrum length the filters apply to.
func (fb *Filterbank) Bins() int { return fb.bins }

// Weight returns the coefficient of filter band at spectral bin.
func (fb *Filterbank) Weight(band, bin int) float64 {
	off := bin - fb.start[band]
	if off < 0 || off >= len(fb.weights[band]) {
		return 0
	}
	return fb.weights[band][off]
}

// Matrix returns the dense bands x bins weight matrix.
func (fb *Filterbank) Matrix() [][]float64 {
	m := make([][]float64, fb.bands)
	for b := range m {
		m[b] = make([]float64, fb.bins)
		copy(m[b][fb.start[b]:], fb.weights[b])
	}
	return m
}

// Apply writes the filtered energy of power into dst (len Bands()).
func (fb *Filterbank) Apply(power, dst []float64) {
	for b, w := range fb.weights {
		var sum float64
		p := power[fb.start[b]:]
		for j, c := range w {
			sum += c * p[j]
		}
		dst[b] = sum
	}
}
