// Package config loads engine configuration from the environment, with an
// optional yaml policy file for workflow tunables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the engine's environment configuration.
type Config struct {
	HTTPPort    int    `env:"HTTP_PORT,default=8080"`
	DatabaseURL string `env:"DATABASE_URL,default=postgres://localhost:5432/internlink?sslmode=disable"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// Workflow policy; overridable via config/workflow.yaml.
	AcceptanceBonus    int64         `env:"ACCEPTANCE_BONUS,default=50"`
	SideEffectAttempts int           `env:"SIDE_EFFECT_ATTEMPTS,default=3"`
	SideEffectBackoff  time.Duration `env:"SIDE_EFFECT_BACKOFF,default=50ms"`

	ReconcileSchedule string `env:"RECONCILE_SCHEDULE,default=@every 5m"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=100"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode env config: %w", err)
	}
	return &cfg, nil
}

// Policy holds workflow tunables that operators may override per deployment.
type Policy struct {
	AcceptanceBonus    int64  `yaml:"acceptance_bonus"`
	SideEffectAttempts int    `yaml:"side_effect_attempts"`
	SideEffectBackoff  string `yaml:"side_effect_backoff"` // duration string, e.g. "50ms"
	ReconcileSchedule  string `yaml:"reconcile_schedule"`
}

// LoadPolicy loads the policy file from the given path.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return &p, nil
}

// ApplyPolicyOverrides merges config/workflow.yaml into the config if the
// file exists; missing files leave the env-derived values untouched.
func (c *Config) ApplyPolicyOverrides() {
	p, err := LoadPolicy(filepath.Join("config", "workflow.yaml"))
	if err != nil {
		return
	}
	if p.AcceptanceBonus > 0 {
		c.AcceptanceBonus = p.AcceptanceBonus
	}
	if p.SideEffectAttempts > 0 {
		c.SideEffectAttempts = p.SideEffectAttempts
	}
	if p.SideEffectBackoff != "" {
		if d, err := time.ParseDuration(p.SideEffectBackoff); err == nil && d > 0 {
			c.SideEffectBackoff = d
		}
	}
	if p.ReconcileSchedule != "" {
		c.ReconcileSchedule = p.ReconcileSchedule
	}
}
