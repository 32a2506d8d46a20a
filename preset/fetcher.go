package preset

import (
	"context"
	"fmt"
	"strings"
)

// Fetcher fetches raw YAML preset bytes by id.
//
// Return ErrNotFound when the preset does not exist. Wrap other errors in
// ErrFetchFailed so callers can use errors.Is.
type Fetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// Lister is optional. When implemented by Fetcher, Registry.List uses it.
type Lister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

const maxIDLen = 128

// ValidateID checks that id is safe for use in paths and cache keys: 1-128 characters
// from [A-Za-z0-9_.-], not starting with a dot.
func ValidateID(id string) error {
	if id == "" || len(id) > maxIDLen {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}

// CandidatePaths returns file name candidates in resolution order: id.yaml, id.yml.
// Call ValidateID(id) before using the result with filesystem paths.
func CandidatePaths(id string) []string {
	return []string{id + ".yaml", id + ".yml"}
}

// IDFromPath returns the preset id for a file name ending in .yaml or .yml.
func IDFromPath(name string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		if id, ok := strings.CutSuffix(name, ext); ok && ValidateID(id) == nil {
			return id, true
		}
	}
	return "", false
}
