package config

import (
	"strings"
	"time"
)

// RedisConfig contains Redis configuration for the case-session store.
// Redis is optional: when disabled, sessions are held in process memory,
// which is fine for a single replica but loses state on restart.
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	// SessionTTL bounds how long a case session (inputs, latest status,
	// fetched result) is retained after its last write.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`
}

// Sanitize applies guardrails to Redis configuration values.
func (r *RedisConfig) Sanitize() {
	r.Addr = strings.TrimSpace(r.Addr)
	if r.Addr == "" {
		r.Enabled = false
	}
	if r.SessionTTL <= 0 {
		r.SessionTTL = 12 * time.Hour
	}
}
