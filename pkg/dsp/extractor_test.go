package dsp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
	}
	return out
}

func newTestExtractor(t *testing.T, mutate func(*Config)) *Extractor {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	ext, err := NewExtractor(cfg)
	require.NoError(t, err)
	return ext
}

func assertFinite(t *testing.T, data []float32) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("non-finite value %v at index %d", v, i)
		}
	}
}

func TestExtractorShapes(t *testing.T) {
	ext := newTestExtractor(t, nil)
	feats, err := ext.Compute(sine(440, WindowLength))
	require.NoError(t, err)

	assert.Equal(t, NumFrames, feats.Frames)
	assert.Equal(t, 101, feats.Frames)
	assert.Len(t, feats.Cepstral, Coefficients*NumFrames)
	assert.Len(t, feats.MelEnergy, MelBands*NumFrames)
	assert.Equal(t, 40*101, len(feats.Cepstral))
	assert.Equal(t, 64*101, len(feats.MelEnergy))
}

func TestExtractorRejectsWrongLength(t *testing.T) {
	ext := newTestExtractor(t, nil)

	for _, n := range []int{0, 1, WindowLength - 1, WindowLength + 1} {
		_, err := ext.Compute(make([]float32, n))
		assert.ErrorIs(t, err, ErrWindowLength, "length %d", n)
	}
}

func TestExtractorZeroInput(t *testing.T) {
	for _, padding := range []Padding{PaddingZero, PaddingReflect, PaddingNone} {
		t.Run(padding.String(), func(t *testing.T) {
			ext := newTestExtractor(t, func(c *Config) { c.Padding = padding })
			feats, err := ext.Compute(make([]float32, WindowLength))
			require.NoError(t, err)

			assertFinite(t, feats.Cepstral)
			assertFinite(t, feats.MelEnergy)

			floor := float32(10 * math.Log10(logEpsilon))
			for _, v := range feats.MelEnergy {
				assert.InDelta(t, floor, v, 1e-4)
			}

			std := feats.Standardized()
			assertFinite(t, std.Cepstral)
			assertFinite(t, std.MelEnergy)
			for _, v := range std.MelEnergy {
				assert.InDelta(t, 0, v, 1e-6)
			}
		})
	}
}

func TestExtractorDeterministic(t *testing.T) {
	a := newTestExtractor(t, nil)
	b := newTestExtractor(t, nil)

	assert.Equal(t, a.Window(), b.Window())
	assert.Equal(t, a.DCT(), b.DCT())
	assert.Equal(t, a.CepstralFilterbank().Matrix(), b.CepstralFilterbank().Matrix())
	assert.Equal(t, a.MelFilterbank().Matrix(), b.MelFilterbank().Matrix())

	rng := rand.New(rand.NewSource(7))
	x := make([]float32, WindowLength)
	for i := range x {
		x[i] = float32(rng.Float64()*2 - 1)
	}

	fa, err := a.Compute(x)
	require.NoError(t, err)
	fb, err := b.Compute(x)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	// scratch buffers must not leak state between calls
	again, err := a.Compute(x)
	require.NoError(t, err)
	assert.Equal(t, fa, again)
}

func TestExtractorToneLandsInMatchingBand(t *testing.T) {
	const freq = 1000.0
	ext := newTestExtractor(t, nil)
	feats, err := ext.Compute(sine(freq, WindowLength))
	require.NoError(t, err)

	frame := NumFrames / 2
	best := 0
	for b := 1; b < feats.MelBands; b++ {
		if feats.MelAt(b, frame) > feats.MelAt(best, frame) {
			best = b
		}
	}

	bin := int(freq * FrameLength / SampleRate)
	fb := ext.MelFilterbank()
	covers := fb.Weight(best, bin-1) > 0 || fb.Weight(best, bin) > 0 || fb.Weight(best, bin+1) > 0
	assert.True(t, covers, "band %d does not cover bin %d", best, bin)
}

func TestExtractorPaddingModes(t *testing.T) {
	x := sine(300, WindowLength)
	for i := range x {
		x[i] += 0.25
	}

	zero := newTestExtractor(t, func(c *Config) { c.Padding = PaddingZero })
	reflect := newTestExtractor(t, func(c *Config) { c.Padding = PaddingReflect })
	none := newTestExtractor(t, func(c *Config) { c.Padding = PaddingNone })

	fz, err := zero.Compute(x)
	require.NoError(t, err)
	fr, err := reflect.Compute(x)
	require.NoError(t, err)
	fn, err := none.Compute(x)
	require.NoError(t, err)

	assert.Equal(t, NumFrames, fn.Frames)
	assert.NotEqual(t, fz.MelAt(0, 0), fr.MelAt(0, 0))

	// interior frames only see real samples in both centered modes
	mid := NumFrames / 2
	for b := 0; b < MelBands; b++ {
		assert.Equal(t, fz.MelAt(b, mid), fr.MelAt(b, mid))
	}

	// the final direct frame starts at the end of the window
	floor := float32(10 * math.Log10(logEpsilon))
	for b := 0; b < MelBands; b++ {
		assert.InDelta(t, floor, fn.MelAt(b, NumFrames-1), 1e-4)
	}
}

func TestExtractorZeroPaddingShiftsByHalfFrame(t *testing.T) {
	x := sine(440, WindowLength)
	half := FrameLength / 2

	// Direct slicing of the window shifted right by half a frame sees the
	// same samples as centered zero padding.
	shifted := make([]float32, WindowLength)
	copy(shifted[half:], x)

	zero := newTestExtractor(t, func(c *Config) { c.Padding = PaddingZero })
	none := newTestExtractor(t, func(c *Config) { c.Padding = PaddingNone })

	fz, err := zero.Compute(x)
	require.NoError(t, err)
	fn, err := none.Compute(shifted)
	require.NoError(t, err)

	for _, i := range []int{0, 1, 50} {
		for b := 0; b < fz.MelBands; b++ {
			assert.InDelta(t, fz.MelAt(b, i), fn.MelAt(b, i), 1e-4, "band %d frame %d", b, i)
		}
	}
}

func TestExtractorDCTNormAffectsOnlyFirstCoefficient(t *testing.T) {
	x := sine(700, WindowLength)
	ortho := newTestExtractor(t, nil)
	legacy := newTestExtractor(t, func(c *Config) { c.DCTNorm = DCTLegacy })

	fo, err := ortho.Compute(x)
	require.NoError(t, err)
	fl, err := legacy.Compute(x)
	require.NoError(t, err)

	assert.NotEqual(t, fo.CepstralAt(0, 10), fl.CepstralAt(0, 10))
	for c := 1; c < Coefficients; c++ {
		assert.Equal(t, fo.CepstralAt(c, 10), fl.CepstralAt(c, 10))
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate", func(c *Config) { c.SampleRate = 8000 }},
		{"hop", func(c *Config) { c.HopLength = 0 }},
		{"short window", func(c *Config) { c.WindowLength = 100 }},
		{"too many coefficients", func(c *Config) { c.Coefficients = 41 }},
		{"no mel bands", func(c *Config) { c.MelBands = 0 }},
		{"padding", func(c *Config) { c.Padding = Padding(9) }},
		{"dct", func(c *Config) { c.DCTNorm = DCTNorm(9) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

			_, err := NewExtractor(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseOptions(t *testing.T) {
	p, err := ParsePadding("reflect")
	require.NoError(t, err)
	assert.Equal(t, PaddingReflect, p)

	p, err = ParsePadding("none")
	require.NoError(t, err)
	assert.Equal(t, PaddingNone, p)

	_, err = ParsePadding("mirror")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	n, err := ParseDCTNorm("legacy")
	require.NoError(t, err)
	assert.Equal(t, DCTLegacy, n)

	_, err = ParseDCTNorm("dct3")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReflectIndex(t *testing.T) {
	assert.Equal(t, 1, reflectIndex(-1, 5))
	assert.Equal(t, 4, reflectIndex(-4, 5))
	assert.Equal(t, 3, reflectIndex(5, 5))
	assert.Equal(t, 0, reflectIndex(8, 5))
	assert.Equal(t, 0, reflectIndex(3, 1))
}
