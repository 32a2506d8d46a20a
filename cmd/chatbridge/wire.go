package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/adapter"
	anthropicadapter "github.com/skosovsky/chatbridge/adapter/anthropic"
	"github.com/skosovsky/chatbridge/adapter/gemini"
	"github.com/skosovsky/chatbridge/adapter/httpexec"
	"github.com/skosovsky/chatbridge/adapter/ollama"
	openaiadapter "github.com/skosovsky/chatbridge/adapter/openai"
	"github.com/skosovsky/chatbridge/capability"
	"github.com/skosovsky/chatbridge/config"
	"github.com/skosovsky/chatbridge/ext/otelbridge"
	"github.com/skosovsky/chatbridge/preset"
	"github.com/skosovsky/chatbridge/preset/gitfetch"
	"github.com/skosovsky/chatbridge/router"
)

func newBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (adapter.TypedBackend, error) {
	key := cfg.APIKey()
	switch cfg.Backend {
	case config.BackendOpenAI:
		var opts []openaiadapter.Option
		if cfg.Model != "" {
			opts = append(opts, openaiadapter.WithModel(cfg.Model))
		}
		if key != "" {
			opts = append(opts, openaiadapter.WithAPIKey(key))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openaiadapter.WithBaseURL(cfg.BaseURL))
		}
		return openaiadapter.New(opts...), nil
	case config.BackendAnthropic:
		var opts []anthropicadapter.Option
		if cfg.Model != "" {
			opts = append(opts, anthropicadapter.WithModel(cfg.Model))
		}
		if key != "" {
			opts = append(opts, anthropicadapter.WithAPIKey(key))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicadapter.WithBaseURL(cfg.BaseURL))
		}
		return anthropicadapter.New(opts...), nil
	case config.BackendGemini:
		var opts []gemini.Option
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		if key != "" {
			opts = append(opts, gemini.WithAPIKey(key))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		return gemini.New(ctx, opts...)
	case config.BackendOllama:
		opts := []ollama.Option{ollama.WithLogger(logger)}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithHost(cfg.BaseURL))
		}
		return ollama.New(opts...)
	}
	return nil, fmt.Errorf("%w: backend %q", config.ErrInvalidConfig, cfg.Backend)
}

// newCapability returns nil when no executor is configured; the router then always
// takes the standard path.
func newCapability(cfg config.Config, logger *zap.Logger) (*capability.Resolver, error) {
	miss := capability.WithMissHandler(func(err error) {
		logger.Info("command executor unavailable", zap.String("kind", cfg.Executor.Kind), zap.Error(err))
	})
	switch cfg.Executor.Kind {
	case config.ExecutorOllama:
		host := cfg.Executor.BaseURL
		if host == "" && cfg.Backend == config.BackendOllama {
			host = cfg.BaseURL
		}
		opts := []ollama.Option{ollama.WithLogger(logger)}
		if host != "" {
			opts = append(opts, ollama.WithHost(host))
		}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Model))
		}
		exec, err := ollama.NewExecutor(opts...)
		if err != nil {
			return nil, err
		}
		return capability.New(exec.Locator(), miss), nil
	case config.ExecutorHTTP:
		opts := []httpexec.Option{httpexec.WithLogger(logger)}
		if cfg.Model != "" {
			opts = append(opts, httpexec.WithModel(cfg.Model))
		}
		return capability.New(httpexec.New(cfg.Executor.BaseURL, opts...).Locator(), miss), nil
	}
	return nil, nil
}

func newClient(ctx context.Context, cfg config.Config, logger *zap.Logger) (chatbridge.ChatClient, error) {
	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.Backend, err)
	}
	caps, err := newCapability(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s executor: %w", cfg.Executor.Kind, err)
	}
	rt := router.New(backend,
		router.WithCapability(caps),
		router.WithLogger(logger),
		router.WithObserver(otelbridge.NewObserver()),
	)
	return otelbridge.Wrap(rt), nil
}

// newPresets returns nil when no preset source is configured.
func newPresets(cfg config.Config, logger *zap.Logger) (*preset.Registry, error) {
	var fetcher preset.Fetcher
	switch p := cfg.Presets; {
	case p.GitURL != "":
		opts := []gitfetch.Option{gitfetch.WithBranch(p.GitBranch), gitfetch.WithLogger(logger)}
		if p.GitDir != "" {
			opts = append(opts, gitfetch.WithDir(p.GitDir))
		}
		if token := cfg.GitToken(); token != "" {
			opts = append(opts, gitfetch.WithAuth(token))
		}
		g, err := gitfetch.New(p.GitURL, opts...)
		if err != nil {
			return nil, err
		}
		fetcher = g
	case p.URL != "":
		h, err := preset.NewHTTPFetcher(p.URL)
		if err != nil {
			return nil, err
		}
		fetcher = h
	case p.Dir != "":
		fetcher = preset.NewDirFetcher(p.Dir)
	default:
		return nil, nil
	}
	return preset.New(fetcher, preset.WithTTL(cfg.Presets.TTL)), nil
}
