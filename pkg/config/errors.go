package config

import "errors"

// Sentinel errors for configuration validation.
var (
	ErrInvalidExecutionTime = errors.New("vectorflow/config: invalid max execution time: must be non-negative")
	ErrInvalidHTTPTimeout   = errors.New("vectorflow/config: invalid HTTP timeout: must be non-negative")
	ErrInvalidMaxRedirects  = errors.New("vectorflow/config: invalid max redirects: must be non-negative")
	ErrInvalidMaxResponseSize = errors.New("vectorflow/config: invalid max response size: must be non-negative")
	ErrInvalidMaxFanout     = errors.New("vectorflow/config: invalid max connector fanout: must be non-negative")
	ErrInvalidMaxGraphDepth = errors.New("vectorflow/config: invalid max graph depth: must be non-negative")
)
