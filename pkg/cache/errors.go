package cache

import "errors"

// Common errors returned by the cache service.
var (
	// ErrInvalidParameterKind indicates a cache-key parameter has a kind that
	// cannot be serialized deterministically. This is a caller bug and is
	// surfaced immediately instead of being retried.
	ErrInvalidParameterKind = errors.New("invalid parameter kind")

	// ErrUnknownTTLClass indicates the requested TTL class is not present in
	// the configured TTL table. This is a configuration error.
	ErrUnknownTTLClass = errors.New("unknown TTL class")

	// ErrLoaderFailed wraps the error returned by a failing loader. Loader
	// failures are never cached; the next call re-invokes the loader.
	ErrLoaderFailed = errors.New("loader failed")

	// ErrNilLoader indicates GetOrCompute was called without a loader.
	ErrNilLoader = errors.New("loader cannot be nil")
)
