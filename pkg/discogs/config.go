package discogs

import "time"

// Config represents the configuration for the Discogs client
type Config struct {
	// Token is a Discogs personal access token; optional for search, required for price suggestions
	Token string

	// BaseURL is the Discogs API base URL
	BaseURL string

	// UserAgent is required by Discogs on every request
	UserAgent string

	// Timeout bounds a single HTTP attempt
	Timeout time.Duration

	// SearchTTL and ReleaseTTL are how long responses count as fresh
	SearchTTL  time.Duration
	ReleaseTTL time.Duration

	// MaxAttempts is the total number of tries for a request
	MaxAttempts uint

	// InitialBackoff is the first retry delay; it doubles on each retry
	InitialBackoff time.Duration
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	if c.UserAgent == "" {
		return ErrInvalidConfig
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.SearchTTL <= 0 {
		c.SearchTTL = time.Hour
	}
	if c.ReleaseTTL <= 0 {
		c.ReleaseTTL = 24 * time.Hour
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 4
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	return nil
}
