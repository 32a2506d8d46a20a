package gitfetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge/preset"
)

// Fetcher reads presets from a git repository. Call Close to remove the local clone.
type Fetcher struct {
	repoURL   string
	branch    string
	dir       string
	depth     int
	authToken string
	logger    *zap.Logger

	mu       sync.Mutex
	localDir string
	repo     *git.Repository
}

// New creates a Fetcher. The repo is cloned on first use.
func New(repoURL string, opts ...Option) (*Fetcher, error) {
	if strings.TrimSpace(repoURL) == "" {
		return nil, errors.New("gitfetch: repo URL must not be empty")
	}
	g := &Fetcher{
		repoURL: repoURL,
		branch:  "main",
		depth:   1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if strings.TrimSpace(g.branch) == "" {
		return nil, errors.New("gitfetch: branch must not be empty")
	}
	return g, nil
}

// Fetch reads {dir}/{id}.yaml or {dir}/{id}.yml from the working tree.
func (g *Fetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := preset.ValidateID(id); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureClone(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", preset.ErrFetchFailed, err)
	}
	base := g.baseDir()
	for _, name := range preset.CandidatePaths(id) {
		path := filepath.Join(base, name)
		if rel, err := filepath.Rel(base, path); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		data, err := os.ReadFile(path) // #nosec G304 -- path stays under the clone via filepath.Rel
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("%w: read %s: %w", preset.ErrFetchFailed, name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %q", preset.ErrNotFound, id)
}

// ListIDs returns the ids of the preset files in the configured directory, sorted.
func (g *Fetcher) ListIDs(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureClone(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", preset.ErrFetchFailed, err)
	}
	entries, err := os.ReadDir(g.baseDir())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", preset.ErrFetchFailed, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := preset.IDFromPath(e.Name()); ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (g *Fetcher) baseDir() string {
	return filepath.Clean(filepath.Join(g.localDir, g.dir))
}

func (g *Fetcher) auth() transport.AuthMethod {
	if g.authToken == "" {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: g.authToken}
}

func (g *Fetcher) ensureClone(ctx context.Context) error {
	if g.repo != nil {
		g.pull(ctx)
		return nil
	}
	dir, err := os.MkdirTemp("", "chatbridge-presets-*")
	if err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}
	cloneOpts := &git.CloneOptions{
		URL:           g.repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(g.branch),
		SingleBranch:  true,
		Depth:         g.depth,
		Auth:          g.auth(),
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("clone: %w", err)
	}
	g.localDir = dir
	g.repo = repo
	return nil
}

// pull refreshes the clone. Local file:// remotes are read as cloned.
func (g *Fetcher) pull(ctx context.Context) {
	if strings.HasPrefix(g.repoURL, "file://") {
		return
	}
	wt, err := g.repo.Worktree()
	if err != nil {
		g.logger.Warn("git worktree unavailable, using cached clone", zap.Error(err))
		return
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(g.branch),
		SingleBranch:  true,
		Auth:          g.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		g.logger.Warn("git pull failed, using cached clone", zap.String("repo", g.repoURL), zap.Error(err))
	}
}

// Close removes the local clone. Safe to call more than once; a later Fetch clones again.
func (g *Fetcher) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.localDir == "" {
		return nil
	}
	dir := g.localDir
	g.localDir = ""
	g.repo = nil
	return os.RemoveAll(dir)
}

var (
	_ preset.Fetcher = (*Fetcher)(nil)
	_ preset.Lister  = (*Fetcher)(nil)
)
