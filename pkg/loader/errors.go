package loader

import "errors"

var (
	// ErrFetchUndefined is the §7 "Fetch unavailable" error kind: a Load
	// missed the cache and override path and no fetch primitive was given.
	ErrFetchUndefined = errors.New("vectorflow/loader: fetch is not defined")
	ErrFetchFailed    = errors.New("vectorflow/loader: fetch failed")
	ErrParseFailed    = errors.New("vectorflow/loader: artifact parse failed")

	// ErrSchemaValidationFailed reports an artifact that failed its
	// optional JSON-schema check (config.ValidateArtifactSchema), before
	// it ever reaches parse.
	ErrSchemaValidationFailed = errors.New("vectorflow/loader: artifact failed schema validation")
)
