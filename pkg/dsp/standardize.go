package dsp

import "gonum.org/v1/gonum/stat"

// Standardize returns (x - mean) / (std + 1e-9) over the whole slice,
// using the population standard deviation. The input is not modified.
func Standardize(data []float32) []float32 {
	if len(data) == 0 {
		return []float32{}
	}
	x := make([]float64, len(data))
	for i, v := range data {
		x[i] = float64(v)
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	out := make([]float32, len(data))
	denom := std + stdEpsilon
	for i, v := range x {
		out[i] = float32((v - mean) / denom)
	}
	return out
}
