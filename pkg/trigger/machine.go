package trigger

import "fmt"

// State is the trigger state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateArmed:
		return "ARMED"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result describes one cycle.
type Result struct {
	State State
	// Skipped is set when the cycle only consumed cooldown.
	Skipped bool
	// Score is this cycle's raw wake-word score.
	Score float64
	// Smoothed is the moving average the threshold is compared to.
	Smoothed float64
	// Armed is set on the cycle that moved IDLE to ARMED.
	Armed bool
	// Detected is set on the confirming cycle.
	Detected bool
	// Cooldown is the number of cycles still to skip.
	Cooldown int
}

// Machine is the trigger state machine. It is not safe for concurrent use;
// the detector drives it from a single goroutine.
type Machine struct {
	cfg       Config
	history   *History
	state     State
	confirmed int
	cooldown  int
}

// NewMachine validates cfg and returns an IDLE machine.
func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		cfg:     cfg,
		history: NewHistory(cfg.HistorySize),
	}, nil
}

// Config returns the machine configuration.
func (m *Machine) Config() Config { return m.cfg }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Cooling reports whether the next cycle will be skipped.
func (m *Machine) Cooling() bool { return m.cooldown > 0 }

// Cooldown returns the remaining cooldown cycles.
func (m *Machine) Cooldown() int { return m.cooldown }

// HistoryLen returns the number of vectors in the moving average.
func (m *Machine) HistoryLen() int { return m.history.Len() }

// Tick consumes one cooldown cycle without looking at probabilities.
// It is a no-op outside cooldown.
func (m *Machine) Tick() Result {
	if m.cooldown > 0 {
		m.cooldown--
		if m.cooldown == 0 {
			m.state = StateIdle
		}
	}
	return Result{State: m.state, Skipped: true, Cooldown: m.cooldown}
}

// Update runs one cycle with the class distribution probs. During cooldown
// probs is ignored and the cycle only decrements the counter. A vector
// the policy cannot read leaves the machine untouched.
func (m *Machine) Update(probs []float64) (Result, error) {
	if m.cooldown > 0 {
		return m.Tick(), nil
	}

	score, err := m.score(probs)
	if err != nil {
		return Result{State: m.state}, err
	}

	m.history.Push(probs)
	smoothed := m.history.Mean(func(p []float64) float64 {
		s, _ := m.score(p)
		return s
	})

	res := Result{Score: score, Smoothed: smoothed}
	switch m.state {
	case StateIdle:
		if smoothed >= m.cfg.Threshold {
			m.state = StateArmed
			m.confirmed = 0
			res.Armed = true
		}
	case StateArmed:
		m.confirmed++
		if m.confirmed >= m.cfg.ConfirmCycles {
			res.Detected = true
			m.history.Clear()
			m.confirmed = 0
			m.cooldown = m.cfg.CooldownCycles
			m.state = StateIdle
			if m.cooldown > 0 {
				m.state = StateCooldown
			}
		}
	}

	res.State = m.state
	res.Cooldown = m.cooldown
	return res, nil
}

// Reset returns the machine to IDLE with an empty history and no cooldown.
func (m *Machine) Reset() {
	m.history.Clear()
	m.state = StateIdle
	m.confirmed = 0
	m.cooldown = 0
}

func (m *Machine) score(probs []float64) (float64, error) {
	return m.cfg.Policy.Score(probs, m.cfg.TargetClass)
}
