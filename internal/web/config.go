package web

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultAddr           = "127.0.0.1:8080"
	DefaultMaxUploadBytes = 200 << 20
	DefaultMaxWindow      = 60 * time.Second
	minSessionKeyLen      = 32
)

type Config struct {
	Addr           string
	MaxUploadBytes int64
	MaxWindow      time.Duration

	// SessionKey signs the browser cookie. Empty means a random key per
	// process, so cookies do not survive restarts.
	SessionKey    []byte
	SessionTTL    time.Duration
	SweepInterval time.Duration
	SecureCookie  bool
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be > 0, got %d", c.MaxUploadBytes)
	}
	if c.MaxWindow < 0 {
		return fmt.Errorf("max window must be >= 0, got %s", c.MaxWindow)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session ttl must be >= 0, got %s", c.SessionTTL)
	}
	if len(c.SessionKey) > 0 && len(c.SessionKey) < minSessionKeyLen {
		return fmt.Errorf("session key must be at least %d bytes", minSessionKeyLen)
	}
	return nil
}
