package preset

import "errors"

// Sentinel errors for preset loading. Callers should use errors.Is to check.
var (
	// ErrInvalidPreset indicates the YAML could not be parsed or failed validation.
	ErrInvalidPreset = errors.New("preset: invalid preset")
	// ErrInvalidID indicates an id that is empty or unsafe for paths and cache keys.
	ErrInvalidID = errors.New("preset: invalid id")
	// ErrNotFound indicates no preset exists for the given id.
	ErrNotFound = errors.New("preset: not found")
	// ErrFetchFailed indicates the Fetcher could not retrieve the preset.
	ErrFetchFailed = errors.New("preset: fetch failed")
	// ErrHTTPStatus indicates an unexpected HTTP status when using HTTPFetcher.
	ErrHTTPStatus = errors.New("preset: unexpected HTTP status")
)
