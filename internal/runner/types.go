package runner

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrEmptyScript   = errors.New("script has no requests")
	ErrRunning       = errors.New("run in progress")
	ErrInvalidScript = errors.New("invalid script")
)

// PacingMode selects where an agent sleeps for the pacing interval.
type PacingMode string

const (
	// PacePerPass sleeps once after every full pass through the script.
	PacePerPass PacingMode = "pass"
	// PacePerRequest sleeps after every individual request.
	PacePerRequest PacingMode = "request"
)

// ParsePacingMode accepts "pass", "request" or the empty string.
func ParsePacingMode(s string) (PacingMode, error) {
	switch PacingMode(s) {
	case "", PacePerPass:
		return PacePerPass, nil
	case PacePerRequest:
		return PacePerRequest, nil
	}
	return "", fmt.Errorf("%w: unknown pacing mode %q", ErrInvalidConfig, s)
}

type Config struct {
	Agents     int
	Pacing     time.Duration
	PacingMode PacingMode
	RampUp     time.Duration

	// Duration is advisory. The manager never stops itself; front ends use
	// it to schedule Stop.
	Duration time.Duration

	LogResponses bool
	ResultsDir   string
	Timeout      time.Duration

	// Verbatim sends URLs, bodies and header values exactly as scripted,
	// with no placeholder expansion.
	Verbatim bool
}

func (c Config) Validate() error {
	if c.Agents < 1 {
		return fmt.Errorf("%w: agents must be >= 1, got %d", ErrInvalidConfig, c.Agents)
	}
	if c.Pacing < 0 {
		return fmt.Errorf("%w: pacing must be >= 0", ErrInvalidConfig)
	}
	if c.RampUp < 0 {
		return fmt.Errorf("%w: rampup must be >= 0", ErrInvalidConfig)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: duration must be >= 0", ErrInvalidConfig)
	}
	if _, err := ParsePacingMode(string(c.PacingMode)); err != nil {
		return err
	}
	if c.LogResponses && c.ResultsDir == "" {
		return fmt.Errorf("%w: results dir required when logging responses", ErrInvalidConfig)
	}
	return nil
}

// StartDelay is how long agent i waits before its first request. Starts are
// spread evenly over the ramp-up.
func (c Config) StartDelay(i int) time.Duration {
	if c.RampUp <= 0 || c.Agents <= 0 {
		return 0
	}
	return time.Duration(float64(c.RampUp) * float64(i) / float64(c.Agents))
}

// State is the manager lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}
