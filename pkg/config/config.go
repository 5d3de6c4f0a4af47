// Package config holds engine-wide configuration: execution limits, the
// default fetch loader's network ACL, and the recursion circuit breakers
// that bound (but do not detect) runaway propagation.
package config

import "time"

// Config holds dataflow engine configuration. All options are centralized
// here for easy management and validation, the way the teacher repo's
// pkg/config does.
type Config struct {
	// MaxExecutionTime bounds a single call to Scheduler.url's top-level
	// chain. Zero means unlimited.
	MaxExecutionTime time.Duration

	// Loader / fetch configuration (the default artifact transport).
	HTTPTimeout      time.Duration
	MaxHTTPRedirects int
	MaxResponseSize  int64

	// Zero-trust network ACL for the default fetch loader. By default only
	// HTTPS to public addresses is allowed: plain HTTP and loopback,
	// link-local, private and cloud-metadata addresses are denied until the
	// matching Allow* field permits them. A non-empty AllowedDomains limits
	// fetches to those domains and their subdomains.
	AllowHTTP          bool
	AllowedDomains     []string
	AllowPrivateIPs    bool
	AllowLocalhost     bool
	AllowLinkLocal     bool
	AllowCloudMetadata bool

	// ValidateArtifactSchema turns on JSON-Schema validation of freshly
	// fetched artifacts before they enter the loader cache. The spec says
	// the Loader performs no validation by default (§4.2), so this is off
	// unless a caller opts in.
	ValidateArtifactSchema bool

	// MaxConnectorFanout and MaxGraphDepth are soft circuit breakers, not
	// cycle detectors (the spec explicitly has none, §9 "Cycles"). Zero
	// means unlimited, which reproduces the spec's documented behavior
	// exactly; a caller opts into a ceiling explicitly.
	MaxConnectorFanout int
	MaxGraphDepth      int
}

// Default returns a Config with secure, production-ready default values.
func Default() *Config {
	return &Config{
		MaxExecutionTime: 0,
		HTTPTimeout:      30 * time.Second,
		MaxHTTPRedirects: 10,
		MaxResponseSize:  10 * 1024 * 1024,

		AllowHTTP:          false,
		AllowedDomains:     nil,
		AllowPrivateIPs:    false,
		AllowLocalhost:     false,
		AllowLinkLocal:     false,
		AllowCloudMetadata: false,

		ValidateArtifactSchema: false,

		MaxConnectorFanout: 0,
		MaxGraphDepth:      0,
	}
}

// Development returns a Config with relaxed network restrictions, useful
// when artifacts are served from localhost during development.
func Development() *Config {
	cfg := Default()
	cfg.AllowHTTP = true
	cfg.AllowPrivateIPs = true
	cfg.AllowLocalhost = true
	return cfg
}

// Production returns a Config with strict, zero-trust network defaults.
func Production() *Config {
	cfg := Default()
	cfg.AllowHTTP = false
	cfg.AllowPrivateIPs = false
	cfg.AllowLocalhost = false
	cfg.AllowLinkLocal = false
	cfg.AllowCloudMetadata = false
	return cfg
}

// Testing returns a Config suited to unit and integration tests: localhost
// fetches allowed, tight timeouts so a hung test server fails fast.
func Testing() *Config {
	cfg := Default()
	cfg.AllowHTTP = true
	cfg.AllowPrivateIPs = true
	cfg.AllowLocalhost = true
	cfg.HTTPTimeout = 5 * time.Second
	cfg.MaxExecutionTime = time.Minute
	return cfg
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.MaxExecutionTime < 0 {
		return ErrInvalidExecutionTime
	}
	if c.HTTPTimeout < 0 {
		return ErrInvalidHTTPTimeout
	}
	if c.MaxHTTPRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.MaxResponseSize < 0 {
		return ErrInvalidMaxResponseSize
	}
	if c.MaxConnectorFanout < 0 {
		return ErrInvalidMaxFanout
	}
	if c.MaxGraphDepth < 0 {
		return ErrInvalidMaxGraphDepth
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.AllowedDomains != nil {
		clone.AllowedDomains = make([]string, len(c.AllowedDomains))
		copy(clone.AllowedDomains, c.AllowedDomains)
	}
	return &clone
}
