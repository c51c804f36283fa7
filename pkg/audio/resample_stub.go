//go:build !ffmpeg

package audio

import "fmt"

// Resample converts a whole clip from fromRate to toRate without ffmpeg.
// Integer downsampling ratios average each group of input samples; any
// other ratio picks the nearest preceding input sample. Build with
// -tags ffmpeg for band-limited resampling.
func Resample(samples []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", fromRate, toRate)
	}
	if fromRate == toRate {
		return samples, nil
	}

	if fromRate > toRate && fromRate%toRate == 0 {
		ratio := fromRate / toRate
		out := make([]float32, len(samples)/ratio)
		for i := range out {
			var sum float32
			for _, s := range samples[i*ratio : (i+1)*ratio] {
				sum += s
			}
			out[i] = sum / float32(ratio)
		}
		return out, nil
	}

	n := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	out := make([]float32, n)
	for i := range out {
		idx := int(int64(i) * int64(fromRate) / int64(toRate))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		out[i] = samples[idx]
	}
	return out, nil
}
