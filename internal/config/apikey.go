package config

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyPrefix starts every issued key: kmk_<prefix>_<secret>.
const APIKeyPrefix = "kmk"

// APIKeyConfig holds configuration for API key hashing and verification.
type APIKeyConfig struct {
	BcryptCost int
	Pepper     string // optional global secret mixed into every hash
}

// NewAPIKeyConfig builds a validated API key configuration. Cost defaults to 12.
func NewAPIKeyConfig(s APIKeySettings) (*APIKeyConfig, error) {
	cfg := &APIKeyConfig{
		BcryptCost: s.BcryptCost,
		Pepper:     s.Pepper,
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize validates the configuration.
func (c *APIKeyConfig) normalize() error {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > 14 {
		return eris.Errorf("bcrypt cost out of range: %d (must be %d-14)", c.BcryptCost, bcrypt.MinCost)
	}
	return nil
}

// HashSecret hashes the secret part of an API key (with optional pepper).
func (c *APIKeyConfig) HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret+c.Pepper), c.BcryptCost)
	if err != nil {
		return "", eris.Wrap(err, "failed to hash api key")
	}
	return string(hash), nil
}

// VerifySecret compares a presented secret with a stored hash.
func (c *APIKeyConfig) VerifySecret(secret, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret+c.Pepper)) == nil
}

// GenerateAPIKey returns a new full key and its lookup prefix.
func GenerateAPIKey() (key string, prefix string, secret string, err error) {
	prefixBytes := make([]byte, 6)
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(prefixBytes); err != nil {
		return "", "", "", eris.Wrap(err, "failed to generate api key prefix")
	}
	if _, err := rand.Read(secretBytes); err != nil {
		return "", "", "", eris.Wrap(err, "failed to generate api key secret")
	}
	prefix = hex.EncodeToString(prefixBytes)
	secret = hex.EncodeToString(secretBytes)
	return APIKeyPrefix + "_" + prefix + "_" + secret, prefix, secret, nil
}

// SplitAPIKey parses kmk_<prefix>_<secret>.
func SplitAPIKey(key string) (prefix string, secret string, ok bool) {
	parts := strings.Split(strings.TrimSpace(key), "_")
	if len(parts) != 3 || parts[0] != APIKeyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
