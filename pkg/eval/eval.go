// Package eval streams a recording through a detector and scores the
// detections against labelled word onsets.
package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/wakeword"
)

// GroundTruth is one labelled word in the recording.
type GroundTruth struct {
	Word    string  `json:"word"`
	StartMs float64 `json:"start_ms"`
}

// LoadGroundTruth reads a JSON array of GroundTruth.
func LoadGroundTruth(path string) ([]GroundTruth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading ground truth: %w", err)
	}
	var truth []GroundTruth
	if err := json.Unmarshal(data, &truth); err != nil {
		return nil, fmt.Errorf("error parsing ground truth: %w", err)
	}
	return truth, nil
}

// Processor is the part of wakeword.Detector the runner drives.
type Processor interface {
	Prime(chunk []float32)
	Process(ctx context.Context, chunk []float32) (wakeword.Result, error)
}

// RunConfig controls streaming.
type RunConfig struct {
	SampleRate int
	// ChunkMs is the duration of each chunk fed to the detector.
	ChunkMs int
	// WarmupMs of audio is absorbed before the first cycle runs.
	WarmupMs int
	// OffsetMs is subtracted from the stream position of a detection to
	// estimate where the utterance started.
	OffsetMs float64
}

// DefaultRunConfig streams 100 ms chunks after a one second warmup.
func DefaultRunConfig() RunConfig {
	return RunConfig{SampleRate: 16000, ChunkMs: 100, WarmupMs: 1000, OffsetMs: 400}
}

// Detection is a detection at a stream position.
type Detection struct {
	Cycle      uint64
	AtMs       float64
	StartMs    float64
	Confidence float64
}

// Report summarizes a run.
type Report struct {
	Detections []Detection
	Cycles     int
	Skipped    int
	Errors     int
	// Inference is the summed extraction and inference time.
	Inference time.Duration
	Audio     time.Duration
}

// MeanLatency is the mean time per inferred cycle.
func (r *Report) MeanLatency() time.Duration {
	inferred := r.Cycles - r.Skipped - r.Errors
	if inferred <= 0 {
		return 0
	}
	return r.Inference / time.Duration(inferred)
}

// RTF is the real-time factor: inference time over audio duration.
func (r *Report) RTF() float64 {
	if r.Audio <= 0 {
		return 0
	}
	return r.Inference.Seconds() / r.Audio.Seconds()
}

// StartTimes returns the estimated utterance starts in milliseconds.
func (r *Report) StartTimes() []float64 {
	out := make([]float64, len(r.Detections))
	for i, d := range r.Detections {
		out[i] = d.StartMs
	}
	return out
}

// Run feeds samples to p chunk by chunk. Per-cycle inference errors are
// counted and skipped; any other error stops the run.
func Run(ctx context.Context, p Processor, samples []float32, cfg RunConfig) (*Report, error) {
	if cfg.SampleRate <= 0 || cfg.ChunkMs <= 0 {
		return nil, fmt.Errorf("invalid run config: rate=%d chunk=%dms", cfg.SampleRate, cfg.ChunkMs)
	}
	chunkSize := cfg.SampleRate * cfg.ChunkMs / 1000
	warmup := cfg.SampleRate * cfg.WarmupMs / 1000
	logger := log.With().Str("component", "eval").Logger()

	report := &Report{
		Audio: time.Duration(len(samples)) * time.Second / time.Duration(cfg.SampleRate),
	}
	for off := 0; off < len(samples); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(off+chunkSize, len(samples))
		chunk := samples[off:end]
		if end < warmup {
			p.Prime(chunk)
			continue
		}

		res, err := p.Process(ctx, chunk)
		report.Cycles++
		if err != nil {
			if errors.Is(err, wakeword.ErrInference) {
				report.Errors++
				continue
			}
			return report, err
		}
		if res.Skipped {
			report.Skipped++
			continue
		}
		report.Inference += res.Latency

		if res.Detected {
			atMs := float64(end) * 1000 / float64(cfg.SampleRate)
			det := Detection{
				Cycle:      res.Cycle,
				AtMs:       atMs,
				StartMs:    atMs - cfg.OffsetMs,
				Confidence: res.Smoothed,
			}
			report.Detections = append(report.Detections, det)
			logger.Info().
				Str("time", FormatMs(det.AtMs)).
				Float64("confidence", det.Confidence).
				Dur("latency", res.Latency).
				Msg("detected")
		}
	}
	return report, nil
}

// Metrics is the confusion matrix and derived scores.
type Metrics struct {
	TP, TN, FP, FN int

	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// Score matches each detection to the nearest target onset within
// tolerance. A detection whose nearest onset was already matched counts as
// a false positive. Labels other than target count as negatives.
func Score(detectionsMs []float64, truth []GroundTruth, target string, toleranceMs float64) Metrics {
	var targets []float64
	others := 0
	for _, gt := range truth {
		if gt.Word == target {
			targets = append(targets, gt.StartMs)
		} else {
			others++
		}
	}

	used := make(map[int]bool)
	tp := 0
	for _, det := range detectionsMs {
		best, bestDiff := -1, math.Inf(1)
		for i, start := range targets {
			diff := math.Abs(det - start)
			if diff <= toleranceMs && diff < bestDiff {
				best, bestDiff = i, diff
			}
		}
		if best >= 0 && !used[best] {
			used[best] = true
			tp++
		}
	}

	m := Metrics{
		TP: tp,
		FP: len(detectionsMs) - tp,
		FN: len(targets) - tp,
	}
	m.TN = max(0, others-m.FP)

	m.Accuracy = ratio(m.TP+m.TN, m.TP+m.TN+m.FP+m.FN)
	m.Precision = ratio(m.TP, m.TP+m.FP)
	m.Recall = ratio(m.TP, m.TP+m.FN)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// FormatMs renders milliseconds as mm:ss.mmm.
func FormatMs(ms float64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	m := int(total / 60)
	return fmt.Sprintf("%02d:%06.3f", m, total-float64(m*60))
}
