package config

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// AccessEnabled reports whether the console API requires a key.
func (s ServerConfig) AccessEnabled() bool {
	return s.AccessKey != "" || s.AccessKeyHash != ""
}

// CheckAccessKey verifies candidate against the plain key or the bcrypt hash.
func CheckAccessKey(s ServerConfig, candidate string) bool {
	if candidate == "" {
		return false
	}
	if s.AccessKey != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(s.AccessKey)) == 1 {
		return true
	}
	if s.AccessKeyHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(s.AccessKeyHash), []byte(candidate)); err == nil {
			return true
		}
	}
	return false
}

// AccessKeyValidator returns a closure over the live configuration, so a
// reloaded key takes effect without rebuilding the router.
func AccessKeyValidator(current func() *Config) func(string) bool {
	return func(candidate string) bool {
		cfg := current()
		if cfg == nil {
			return false
		}
		return CheckAccessKey(cfg.Server, candidate)
	}
}

// HashAccessKey produces the value for server.access_key_hash.
func HashAccessKey(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
