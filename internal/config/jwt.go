package config

import (
	"github.com/rotisserie/eris"
)

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig builds a validated JWT configuration from the jwt settings section.
// The secret is required; expiration defaults to 24 hours.
func NewJWTConfig(s JWTSettings) (*JWTConfig, error) {
	cfg := &JWTConfig{
		Secret:          s.Secret,
		ExpirationHours: s.ExpirationHours,
	}
	if cfg.ExpirationHours == 0 {
		cfg.ExpirationHours = 24
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return eris.New("jwt.secret is required but not set")
	}
	if len(c.Secret) < 16 {
		return eris.Errorf("jwt.secret must be at least 16 characters, got: %d", len(c.Secret))
	}
	if c.ExpirationHours < 1 {
		return eris.Errorf("jwt.expiration_hours must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
