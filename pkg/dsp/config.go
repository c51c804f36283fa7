// Package dsp turns a one second window of 16 kHz audio into the two
// feature matrices the wake-word model was trained on: 40 cepstral
// coefficients and 64 log mel-band energies, each over 101 frames.
//
// Pipeline per frame: Hann window (400) -> power spectrum (201 bins) ->
// triangular mel filterbank -> 10*log10(e + 1e-10) -> DCT-II (cepstral only).
//
// Usage:
//
//	ext, err := dsp.NewExtractor(dsp.DefaultConfig())
//	feats, err := ext.Compute(window) // len(window) == 16000
//	norm := feats.Standardized()
package dsp

import (
	"errors"
	"fmt"
)

const (
	// SampleRate is the only supported input rate.
	SampleRate = 16000
	// WindowLength is one second of audio at SampleRate.
	WindowLength = 16000
	// FrameLength is the analysis frame and FFT size (25 ms).
	FrameLength = 400
	// HopLength is the stride between frames (10 ms).
	HopLength = 160
	// NumFrames is the frame count for a padded WindowLength window.
	NumFrames = 1 + WindowLength/HopLength
	// NumBins is the number of one-sided spectral bins for FrameLength.
	NumBins = FrameLength/2 + 1

	// CepstralBands is the mel band count projected through the DCT.
	CepstralBands = 40
	// Coefficients is the number of cepstral coefficients kept.
	Coefficients = 40
	// MelBands is the band count of the mel-energy matrix.
	MelBands = 64

	logEpsilon = 1e-10
	stdEpsilon = 1e-9
)

var (
	// ErrWindowLength is returned when Compute gets a window of the wrong size.
	ErrWindowLength = errors.New("dsp: unexpected window length")
	// ErrInvalidConfig is returned by NewExtractor for unusable parameters.
	ErrInvalidConfig = errors.New("dsp: invalid config")
)

// Padding selects how frames near the window edges are filled.
type Padding int

const (
	// PaddingZero centers frames by padding FrameLength/2 zeros on each side.
	PaddingZero Padding = iota
	// PaddingReflect centers frames using reflection of the edge samples.
	PaddingReflect
	// PaddingNone slices frames directly from the raw window; samples past
	// the end read as zero.
	PaddingNone
)

func (p Padding) String() string {
	switch p {
	case PaddingZero:
		return "zero"
	case PaddingReflect:
		return "reflect"
	case PaddingNone:
		return "none"
	default:
		return fmt.Sprintf("Padding(%d)", int(p))
	}
}

// ParsePadding maps "zero", "reflect" or "none" to a Padding.
func ParsePadding(s string) (Padding, error) {
	switch s {
	case "zero", "":
		return PaddingZero, nil
	case "reflect":
		return PaddingReflect, nil
	case "none", "direct":
		return PaddingNone, nil
	}
	return PaddingZero, fmt.Errorf("%w: unknown padding %q", ErrInvalidConfig, s)
}

// DCTNorm selects the scaling of the first DCT basis row.
type DCTNorm int

const (
	// DCTOrtho is the orthonormal type-II DCT: row 0 scaled by sqrt(1/M).
	DCTOrtho DCTNorm = iota
	// DCTLegacy reproduces the browser build, where row 0 is scaled by
	// sqrt(1/2) regardless of M.
	DCTLegacy
)

func (n DCTNorm) String() string {
	switch n {
	case DCTOrtho:
		return "ortho"
	case DCTLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("DCTNorm(%d)", int(n))
	}
}

// ParseDCTNorm maps "ortho" or "legacy" to a DCTNorm.
func ParseDCTNorm(s string) (DCTNorm, error) {
	switch s {
	case "ortho", "":
		return DCTOrtho, nil
	case "legacy":
		return DCTLegacy, nil
	}
	return DCTOrtho, fmt.Errorf("%w: unknown dct norm %q", ErrInvalidConfig, s)
}

// Config holds the feature extraction parameters.
type Config struct {
	SampleRate    int
	WindowLength  int
	FrameLength   int
	HopLength     int
	CepstralBands int
	Coefficients  int
	MelBands      int
	Padding       Padding
	DCTNorm       DCTNorm
}

// DefaultConfig returns the parameters the model was trained with.
func DefaultConfig() Config {
	return Config{
		SampleRate:    SampleRate,
		WindowLength:  WindowLength,
		FrameLength:   FrameLength,
		HopLength:     HopLength,
		CepstralBands: CepstralBands,
		Coefficients:  Coefficients,
		MelBands:      MelBands,
		Padding:       PaddingZero,
		DCTNorm:       DCTOrtho,
	}
}

// NumFrames returns the number of frames produced per window.
func (c Config) NumFrames() int {
	return 1 + c.WindowLength/c.HopLength
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate != SampleRate {
		return fmt.Errorf("%w: sample rate %d, only %d is supported", ErrInvalidConfig, c.SampleRate, SampleRate)
	}
	if c.FrameLength <= 1 || c.HopLength <= 0 || c.WindowLength < c.FrameLength {
		return fmt.Errorf("%w: frame=%d hop=%d window=%d", ErrInvalidConfig, c.FrameLength, c.HopLength, c.WindowLength)
	}
	if c.CepstralBands <= 0 || c.MelBands <= 0 {
		return fmt.Errorf("%w: band counts must be positive", ErrInvalidConfig)
	}
	if c.Coefficients <= 0 || c.Coefficients > c.CepstralBands {
		return fmt.Errorf("%w: %d coefficients from %d bands", ErrInvalidConfig, c.Coefficients, c.CepstralBands)
	}
	if c.Padding < PaddingZero || c.Padding > PaddingNone {
		return fmt.Errorf("%w: padding %v", ErrInvalidConfig, c.Padding)
	}
	if c.DCTNorm < DCTOrtho || c.DCTNorm > DCTLegacy {
		return fmt.Errorf("%w: dct norm %v", ErrInvalidConfig, c.DCTNorm)
	}
	return nil
}
