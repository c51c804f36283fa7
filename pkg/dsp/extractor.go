package dsp

import (
	"fmt"
	"math"
)

// Features holds the two feature matrices for one window. Both are laid
// out channel-major: value (c, f) is at index c*Frames + f.
type Features struct {
	Cepstral     []float32
	MelEnergy    []float32
	Coefficients int
	MelBands     int
	Frames       int
}

// Standardized returns a copy with each matrix standardized independently.
func (f *Features) Standardized() *Features {
	return &Features{
		Cepstral:     Standardize(f.Cepstral),
		MelEnergy:    Standardize(f.MelEnergy),
		Coefficients: f.Coefficients,
		MelBands:     f.MelBands,
		Frames:       f.Frames,
	}
}

// CepstralAt returns coefficient c of frame i.
func (f *Features) CepstralAt(c, i int) float32 { return f.Cepstral[c*f.Frames+i] }

// MelAt returns log energy of band b in frame i.
func (f *Features) MelAt(b, i int) float32 { return f.MelEnergy[b*f.Frames+i] }

// Extractor computes Features. Filterbanks, window and DCT basis are built
// once in NewExtractor and never change. An Extractor reuses scratch
// buffers and is not safe for concurrent use; create one per goroutine.
type Extractor struct {
	cfg      Config
	frames   int
	window   []float64
	cepstral *Filterbank
	mel      *Filterbank
	dct      [][]float64
	spec     *spectrum
	frame    []float64
	power    []float64
	cepBands []float64
	melBands []float64
}

// NewExtractor validates cfg and precomputes all constant tables.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bins := cfg.FrameLength/2 + 1
	return &Extractor{
		cfg:      cfg,
		frames:   cfg.NumFrames(),
		window:   HannWindow(cfg.FrameLength),
		cepstral: NewMelFilterbank(cfg.SampleRate, cfg.FrameLength, cfg.CepstralBands),
		mel:      NewMelFilterbank(cfg.SampleRate, cfg.FrameLength, cfg.MelBands),
		dct:      NewDCTMatrix(cfg.Coefficients, cfg.CepstralBands, cfg.DCTNorm),
		spec:     newSpectrum(cfg.FrameLength),
		frame:    make([]float64, cfg.FrameLength),
		power:    make([]float64, bins),
		cepBands: make([]float64, cfg.CepstralBands),
		melBands: make([]float64, cfg.MelBands),
	}, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config { return e.cfg }

// NumFrames returns the frame count of every Features produced.
func (e *Extractor) NumFrames() int { return e.frames }

// Window returns a copy of the analysis window.
func (e *Extractor) Window() []float64 {
	return append([]float64(nil), e.window...)
}

// CepstralFilterbank returns the filterbank feeding the DCT.
func (e *Extractor) CepstralFilterbank() *Filterbank { return e.cepstral }

// MelFilterbank returns the filterbank of the mel-energy matrix.
func (e *Extractor) MelFilterbank() *Filterbank { return e.mel }

// DCT returns a copy of the DCT basis.
func (e *Extractor) DCT() [][]float64 {
	out := make([][]float64, len(e.dct))
	for i, row := range e.dct {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Compute extracts Features from exactly WindowLength samples.
func (e *Extractor) Compute(samples []float32) (*Features, error) {
	if len(samples) != e.cfg.WindowLength {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWindowLength, len(samples), e.cfg.WindowLength)
	}

	nc, nm, nf := e.cfg.Coefficients, e.cfg.MelBands, e.frames
	feats := &Features{
		Cepstral:     make([]float32, nc*nf),
		MelEnergy:    make([]float32, nm*nf),
		Coefficients: nc,
		MelBands:     nm,
		Frames:       nf,
	}

	for i := 0; i < nf; i++ {
		e.fillFrame(samples, i)
		e.spec.power(e.frame, e.power)

		e.cepstral.Apply(e.power, e.cepBands)
		logEnergy(e.cepBands)
		for k, row := range e.dct {
			var sum float64
			for n, c := range row {
				sum += c * e.cepBands[n]
			}
			feats.Cepstral[k*nf+i] = float32(sum)
		}

		e.mel.Apply(e.power, e.melBands)
		logEnergy(e.melBands)
		for b, v := range e.melBands {
			feats.MelEnergy[b*nf+i] = float32(v)
		}
	}
	return feats, nil
}

// fillFrame copies frame i into e.frame and applies the window.
func (e *Extractor) fillFrame(x []float32, i int) {
	n := len(x)
	pad := e.cfg.FrameLength / 2
	begin := i * e.cfg.HopLength
	for t := range e.frame {
		var idx int
		switch e.cfg.Padding {
		case PaddingNone:
			idx = begin + t
		default:
			idx = begin + t - pad
		}

		var v float64
		switch {
		case idx >= 0 && idx < n:
			v = float64(x[idx])
		case e.cfg.Padding == PaddingReflect:
			v = float64(x[reflectIndex(idx, n)])
		}
		e.frame[t] = v * e.window[t]
	}
}

// reflectIndex mirrors idx into [0, n) without repeating the edge sample.
func reflectIndex(idx, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	idx %= period
	if idx < 0 {
		idx += period
	}
	if idx >= n {
		idx = period - idx
	}
	return idx
}

func logEnergy(v []float64) {
	for i, e := range v {
		v[i] = 10 * math.Log10(e+logEpsilon)
	}
}
