package authkit

import (
	"errors"
	"fmt"
	"time"
)

// DefaultIssuer is the iss claim on access tokens when none is configured.
const DefaultIssuer = "taxpilot-devapi"

var errInvalidServerConfig = errors.New("authkit.invalid_config")

// ServerConfig configures token signing and lifetimes.
type ServerConfig struct {
	SigningKey []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Validate reports the first unusable setting.
func (configuration ServerConfig) Validate() error {
	switch {
	case len(configuration.SigningKey) == 0:
		return fmt.Errorf("%w: signing key must be provided", errInvalidServerConfig)
	case configuration.Issuer == "":
		return fmt.Errorf("%w: issuer must be provided", errInvalidServerConfig)
	case configuration.AccessTTL <= 0:
		return fmt.Errorf("%w: access ttl must be greater than zero", errInvalidServerConfig)
	case configuration.RefreshTTL <= 0:
		return fmt.Errorf("%w: refresh ttl must be greater than zero", errInvalidServerConfig)
	}
	return nil
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a Clock reading the wall clock in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
