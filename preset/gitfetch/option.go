package gitfetch

import "go.uber.org/zap"

// Option configures Fetcher.
type Option func(*Fetcher)

// WithBranch sets the branch to clone. Default is "main".
func WithBranch(branch string) Option {
	return func(g *Fetcher) { g.branch = branch }
}

// WithDir sets the subdirectory within the repo that holds presets. Default is the repo root.
func WithDir(dir string) Option {
	return func(g *Fetcher) { g.dir = dir }
}

// WithDepth sets the clone depth. Default is 1 (shallow clone); 0 means full history.
func WithDepth(depth int) Option {
	return func(g *Fetcher) { g.depth = depth }
}

// WithAuth sets a token for HTTPS auth, sent as BasicAuth user "x-access-token".
func WithAuth(token string) Option {
	return func(g *Fetcher) { g.authToken = token }
}

// WithLogger sets the logger used to report failed pulls. Default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(g *Fetcher) {
		if l != nil {
			g.logger = l
		}
	}
}
