// Package gitfetch provides a preset.Fetcher backed by a git repository. The repo is
// cloned into a temporary directory on first use and pulled on later fetches; a failed
// pull keeps serving the existing clone.
package gitfetch
