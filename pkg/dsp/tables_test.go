package dsp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHannWindow(t *testing.T) {
	w := HannWindow(FrameLength)

	assert.Len(t, w, FrameLength)
	assert.InDelta(t, 0, w[0], 1e-12)
	assert.InDelta(t, 0, w[FrameLength-1], 1e-12)
	for i := 0; i < FrameLength/2; i++ {
		assert.InDelta(t, w[i], w[FrameLength-1-i], 1e-12)
	}
	for _, v := range w {
		assert.True(t, v >= 0 && v <= 1)
	}

	assert.Equal(t, []float64{1}, HannWindow(1))
}

func TestMelScaleRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 100, 700, 1000, 4000, 8000} {
		assert.InDelta(t, hz, MelToHz(HzToMel(hz)), 1e-6)
	}
	assert.InDelta(t, 1000, HzToMel(1000), 0.5)
}

func TestMelFilterbank(t *testing.T) {
	for _, bands := range []int{CepstralBands, MelBands} {
		fb := NewMelFilterbank(SampleRate, FrameLength, bands)
		assert.Equal(t, bands, fb.Bands())
		assert.Equal(t, NumBins, fb.Bins())

		m := fb.Matrix()
		assert.Len(t, m, bands)
		var total float64
		for b, row := range m {
			assert.Len(t, row, NumBins)
			for j, v := range row {
				assert.True(t, v >= 0 && v <= 1, "band %d bin %d = %v", b, j, v)
				assert.Equal(t, v, fb.Weight(b, j))
				total += v
			}
		}
		assert.Greater(t, total, 0.0)

		// last band ends at the nyquist bin, which its falling edge never reaches
		assert.Equal(t, 0.0, fb.Weight(bands-1, NumBins-1))
	}
}

func TestFilterbankApply(t *testing.T) {
	fb := NewMelFilterbank(SampleRate, FrameLength, MelBands)
	power := make([]float64, NumBins)
	for i := range power {
		power[i] = float64(i%7) + 0.5
	}

	got := make([]float64, MelBands)
	fb.Apply(power, got)

	m := fb.Matrix()
	for b := range m {
		var want float64
		for j, w := range m[b] {
			want += w * power[j]
		}
		assert.InDelta(t, want, got[b], 1e-9)
	}
}

func TestDCTOrthonormal(t *testing.T) {
	d := NewDCTMatrix(CepstralBands, CepstralBands, DCTOrtho)
	for i := range d {
		for j := range d {
			var dot float64
			for n := range d[i] {
				dot += d[i][n] * d[j][n]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-9, "row %d . row %d", i, j)
		}
	}
}

func TestDCTLegacyFirstRow(t *testing.T) {
	legacy := NewDCTMatrix(Coefficients, CepstralBands, DCTLegacy)
	ortho := NewDCTMatrix(Coefficients, CepstralBands, DCTOrtho)

	for n := 0; n < CepstralBands; n++ {
		assert.InDelta(t, math.Sqrt(0.5), legacy[0][n], 1e-12)
		assert.InDelta(t, math.Sqrt(1.0/CepstralBands), ortho[0][n], 1e-12)
	}
	assert.Equal(t, ortho[1:], legacy[1:])
}

func TestFFTMatchesDirectDFT(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	frame := make([]float64, FrameLength)
	for i := range frame {
		frame[i] = rng.Float64()*2 - 1
	}

	want := DirectPowerSpectrum(frame)
	got := make([]float64, NumBins)
	newSpectrum(FrameLength).power(frame, got)

	var peak float64
	for _, v := range want {
		peak = math.Max(peak, v)
	}
	assert.Len(t, want, NumBins)
	for k := range want {
		assert.InDelta(t, want[k], got[k], peak*1e-9, "bin %d", k)
	}
}

func TestStandardize(t *testing.T) {
	assert.Equal(t, []float32{}, Standardize(nil))

	in := []float32{1, 2, 3, 4}
	out := Standardize(in)
	assert.Equal(t, []float32{1, 2, 3, 4}, in)

	var mean, sq float64
	for _, v := range out {
		mean += float64(v)
	}
	mean /= float64(len(out))
	for _, v := range out {
		sq += (float64(v) - mean) * (float64(v) - mean)
	}
	assert.InDelta(t, 0, mean, 1e-6)
	assert.InDelta(t, 1, math.Sqrt(sq/float64(len(out))), 1e-6)

	flat := Standardize([]float32{3, 3, 3})
	assert.Equal(t, []float32{0, 0, 0}, flat)
}
