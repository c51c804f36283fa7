package audio

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuLawDecodeTable(t *testing.T) {
	assert.Equal(t, int16(0), MuLawDecode(0xFF))
	assert.Equal(t, int16(0), MuLawDecode(0x7F))
	assert.Equal(t, int16(-32124), MuLawDecode(0x00))
	assert.Equal(t, int16(32124), MuLawDecode(0x80))
	assert.Equal(t, int16(-8316), MuLawDecode(0x1F))
}

func TestMuLawRoundTrip(t *testing.T) {
	for _, sample := range []int16{0, 100, 1000, 10000, 32000, -100, -1000, -10000, -32000, math.MinInt16} {
		decoded := MuLawDecode(MuLawEncode(sample))
		maxErr := max(200, math.Abs(float64(sample))*0.05)
		assert.InDelta(t, float64(sample), float64(decoded), maxErr, "sample %d", sample)
	}
	assert.Equal(t, byte(0xFF), MuLawEncode(0))
}

func TestReadWAVMuLaw(t *testing.T) {
	samples := make([]float32, 800)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*300*float64(i)/8000))
	}

	w, err := ReadWAV(bytes.NewReader(buildWAV(wavFormatMuLaw, 1, 8, 8000, Float32ToMuLaw(samples))))
	require.NoError(t, err)
	assert.Equal(t, 8000, w.SampleRate)
	assert.Equal(t, 100, w.DurationMs())
	require.Len(t, w.Samples, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], w.Samples[i], 0.02)
	}
}
