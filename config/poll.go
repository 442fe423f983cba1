package config

import "time"

// PollConfig controls the server-side status polling loop that follows a
// submitted case until the backend reports a terminal state.
type PollConfig struct {
	// Interval is the fixed cadence between status requests. The cadence is
	// a tunable, not a contract; ticks are serialized so a slow backend
	// response stretches the effective interval rather than stacking
	// concurrent requests.
	Interval time.Duration `env:"INTERVAL" envDefault:"1500ms"`

	// MaxDuration is a safety bound on a single polling loop. A job that
	// never reaches a terminal state within this window is abandoned and
	// surfaced to the user as unavailable.
	MaxDuration time.Duration `env:"MAX_DURATION" envDefault:"15m"`
}

// Sanitize applies guardrails to polling configuration values.
func (p *PollConfig) Sanitize() {
	if p.Interval < 250*time.Millisecond {
		p.Interval = 250 * time.Millisecond
	}
	if p.MaxDuration <= 0 {
		p.MaxDuration = 15 * time.Minute
	}
}
