// Package trigger turns per-cycle class probabilities into confirmed
// wake-word detections.
//
// Each cycle the probability vector is pushed into a short history, the
// wake-word score is averaged across that history, and a small state
// machine decides:
//
//	IDLE     --avg >= threshold-->  ARMED
//	ARMED    --ConfirmCycles more--> DETECTED, history cleared, COOLDOWN
//	COOLDOWN --CooldownCycles ticks--> IDLE
//
// Cooldown is counted in cycles, not wall-clock time.
package trigger

import (
	"errors"
	"fmt"
)

var (
	// ErrShortVector is returned when a probability vector lacks the class
	// the policy reads.
	ErrShortVector = errors.New("trigger: probability vector too short")
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("trigger: invalid config")
)

// Policy selects how the wake-word score is read from a class vector.
// Index 0 is always background.
type Policy int

const (
	// PolicyCenterClass tracks the probability of a single class index.
	PolicyCenterClass Policy = iota
	// PolicySumNonBackground sums every class except index 0.
	PolicySumNonBackground
)

func (p Policy) String() string {
	switch p {
	case PolicyCenterClass:
		return "center"
	case PolicySumNonBackground:
		return "sum"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps "center" or "sum" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "center", "center-class", "":
		return PolicyCenterClass, nil
	case "sum", "sum-of-non-background":
		return PolicySumNonBackground, nil
	}
	return PolicyCenterClass, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, s)
}

// Score reads the wake-word score of probs under the policy.
func (p Policy) Score(probs []float64, targetClass int) (float64, error) {
	switch p {
	case PolicySumNonBackground:
		if len(probs) < 2 {
			return 0, fmt.Errorf("%w: %d classes", ErrShortVector, len(probs))
		}
		var sum float64
		for _, v := range probs[1:] {
			sum += v
		}
		return sum, nil
	default:
		if targetClass < 0 || targetClass >= len(probs) {
			return 0, fmt.Errorf("%w: class %d of %d", ErrShortVector, targetClass, len(probs))
		}
		return probs[targetClass], nil
	}
}

// Config holds the trigger parameters.
type Config struct {
	Policy Policy
	// TargetClass is the class index read by PolicyCenterClass.
	TargetClass int
	// Threshold is compared (>=) against the smoothed score.
	Threshold float64
	// HistorySize is the moving-average window in cycles.
	HistorySize int
	// ConfirmCycles is the number of cycles spent ARMED before detecting.
	ConfirmCycles int
	// CooldownCycles is the number of cycles skipped after a detection.
	CooldownCycles int
}

// DefaultConfig is the center-class layout: class 1, threshold 0.75.
func DefaultConfig() Config {
	return Config{
		Policy:         PolicyCenterClass,
		TargetClass:    1,
		Threshold:      0.75,
		HistorySize:    3,
		ConfirmCycles:  1,
		CooldownCycles: 10,
	}
}

// SumConfig is the sum-of-non-background layout with threshold 0.50.
func SumConfig() Config {
	cfg := DefaultConfig()
	cfg.Policy = PolicySumNonBackground
	cfg.Threshold = 0.50
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Policy != PolicyCenterClass && c.Policy != PolicySumNonBackground {
		return fmt.Errorf("%w: policy %v", ErrInvalidConfig, c.Policy)
	}
	if c.Policy == PolicyCenterClass && c.TargetClass < 1 {
		return fmt.Errorf("%w: target class %d is background", ErrInvalidConfig, c.TargetClass)
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside (0, 1]", ErrInvalidConfig, c.Threshold)
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("%w: history size %d", ErrInvalidConfig, c.HistorySize)
	}
	if c.ConfirmCycles < 1 {
		return fmt.Errorf("%w: confirm cycles %d", ErrInvalidConfig, c.ConfirmCycles)
	}
	if c.CooldownCycles < 0 {
		return fmt.Errorf("%w: cooldown cycles %d", ErrInvalidConfig, c.CooldownCycles)
	}
	return nil
}
