package audio

import (
	"encoding/binary"
	"math"
)

// S16LEToFloat32 converts little-endian 16-bit PCM to samples in [-1, 1).
// A trailing odd byte is ignored.
func S16LEToFloat32(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// Float32ToS16LE converts samples to little-endian 16-bit PCM, clipping
// values outside [-1, 1].
func Float32ToS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToS16(s)))
	}
	return out
}

func floatToS16(s float32) int16 {
	v := float64(s) * 32767
	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	return int16(v)
}

// F32LEToFloat32 decodes little-endian IEEE 754 float samples.
// Trailing bytes that do not form a whole sample are ignored.
func F32LEToFloat32(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

// Float32ToF32LE encodes samples as little-endian IEEE 754 floats.
func Float32ToF32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// Downmix averages interleaved frames of the given channel count to mono.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[f*channels+c]
		}
		mono[f] = sum / float32(channels)
	}
	return mono
}
