// Package config loads and validates the daemon configuration from the
// environment. Precedence is ENV > defaults; there is no config file.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Defaults for the Prima provider endpoints. All of them can be overridden,
// which the tests use to point the client at local mock servers.
const (
	DefaultAuthBase  = "https://ucet.iprima.cz"
	DefaultAPIBase   = "https://gateway-api.prod.iprima.cz"
	DefaultPlayBase  = "https://api.play-backend.iprima.cz"
	DefaultRelayBase = "http://p.6f.sk"
)

// Config holds the full daemon configuration.
type Config struct {
	// HTTP surface
	Listen           string
	RateLimitEnabled bool
	RateLimitRPM     int // requests per minute per client IP

	// Credentials for the Prima+ account. Both empty means catchup is
	// unavailable; live relay channels still work.
	Email    string
	Password string

	// Data directory holding the cached token file.
	DataDir string

	// Token lifetime. The provider does not announce an expiry, so this is
	// an empirical window and deliberately configurable.
	TokenTTL time.Duration

	// Provider endpoints.
	AuthBase  string
	APIBase   string
	PlayBase  string
	RelayBase string

	// Outbound HTTP behaviour.
	Timeout    time.Duration
	DeviceName string

	// EPG search behaviour.
	EPGTimezone string
	CatchupDays int           // how many days back the archive scan goes
	EPGPace     time.Duration // minimum spacing between per-day guide fetches

	// Logging
	LogLevel string
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Listen:           ParseString("PRIMA2G_LISTEN", ":8686"),
		RateLimitEnabled: ParseBool("PRIMA2G_RATE_LIMIT", true),
		RateLimitRPM:     ParseInt("PRIMA2G_RATE_LIMIT_RPM", 600),
		Email:            ParseString("PRIMA2G_EMAIL", ""),
		Password:         ParseString("PRIMA2G_PASSWORD", ""),
		DataDir:          ParseString("PRIMA2G_DATA", "/var/lib/prima2g"),
		TokenTTL:         ParseDuration("PRIMA2G_TOKEN_TTL", 7*time.Hour),
		AuthBase:         ParseString("PRIMA2G_AUTH_BASE", DefaultAuthBase),
		APIBase:          ParseString("PRIMA2G_API_BASE", DefaultAPIBase),
		PlayBase:         ParseString("PRIMA2G_PLAY_BASE", DefaultPlayBase),
		RelayBase:        ParseString("PRIMA2G_RELAY_BASE", DefaultRelayBase),
		Timeout:          ParseDuration("PRIMA2G_HTTP_TIMEOUT", 15*time.Second),
		DeviceName:       ParseString("PRIMA2G_DEVICE_NAME", "prima2g"),
		EPGTimezone:      ParseString("PRIMA2G_EPG_TIMEZONE", "Europe/Prague"),
		CatchupDays:      ParseInt("PRIMA2G_CATCHUP_DAYS", 7),
		EPGPace:          ParseDuration("PRIMA2G_EPG_PACE", 200*time.Millisecond),
		LogLevel:         ParseString("PRIMA2G_LOG_LEVEL", "info"),
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive, got %s", c.TokenTTL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive, got %s", c.Timeout)
	}
	if c.CatchupDays < 0 || c.CatchupDays > 31 {
		return fmt.Errorf("catchup days must be within [0,31], got %d", c.CatchupDays)
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimitRPM)
	}
	if c.EPGTimezone == "" {
		return fmt.Errorf("EPG timezone must not be empty")
	}
	for name, base := range map[string]string{
		"auth":  c.AuthBase,
		"api":   c.APIBase,
		"play":  c.PlayBase,
		"relay": c.RelayBase,
	} {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s base URL %q is not a valid http(s) URL", name, base)
		}
	}
	return nil
}
