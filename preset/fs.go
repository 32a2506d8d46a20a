package preset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
)

// FSFetcher reads presets from an fs.FS: {dir}/{id}.yaml, then {dir}/{id}.yml.
// Use os.DirFS for a directory on disk or an embed.FS for presets compiled in.
type FSFetcher struct {
	fsys fs.FS
	dir  string
}

// NewFSFetcher returns an FSFetcher over fsys rooted at dir ("." for the root).
func NewFSFetcher(fsys fs.FS, dir string) *FSFetcher {
	if dir == "" {
		dir = "."
	}
	return &FSFetcher{fsys: fsys, dir: dir}
}

// NewDirFetcher returns an FSFetcher over a directory on disk.
func NewDirFetcher(dir string) *FSFetcher {
	return NewFSFetcher(os.DirFS(dir), ".")
}

// Fetch returns the bytes of the first candidate file that exists.
func (f *FSFetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, name := range CandidatePaths(id) {
		data, err := fs.ReadFile(f.fsys, path.Join(f.dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// ListIDs returns the ids of all preset files in dir, sorted.
func (f *FSFetcher) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(f.fsys, f.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := IDFromPath(e.Name()); ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

var (
	_ Fetcher = (*FSFetcher)(nil)
	_ Lister  = (*FSFetcher)(nil)
)
