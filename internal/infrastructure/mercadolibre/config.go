package mercadolibre

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates missing or inconsistent client configuration
var ErrInvalidConfig = errors.New("mercadolibre: invalid configuration")

// Config holds the MercadoLibre client configuration
type Config struct {
	// ClientID and ClientSecret identify the application for OAuth calls.
	ClientID     string
	ClientSecret string
	// RedirectURI must match the URI registered for the application.
	RedirectURI string
	// APIBaseURL is the REST API root, without trailing slash.
	APIBaseURL string
	// AuthBaseURL is the authorization site root; country-specific.
	AuthBaseURL string
	// Timeout applies to every upstream call.
	Timeout time.Duration
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w: api base URL is required", ErrInvalidConfig)
	}
	if c.AuthBaseURL == "" {
		return fmt.Errorf("%w: auth base URL is required", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
