package ollama

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/adapter"
	"github.com/skosovsky/chatbridge/streambridge"
)

// DefaultHost is the address of a local Ollama server.
const DefaultHost = "http://127.0.0.1:11434"

// DefaultModel is used when neither WithModel nor the request sets a model.
const DefaultModel = "llama3.2"

type config struct {
	model      string
	host       string
	httpClient *http.Client
	client     *api.Client
	logger     *zap.Logger
}

// Option configures a Backend or an Executor.
type Option func(*config)

// WithModel sets the default model.
func WithModel(m string) Option {
	return func(c *config) { c.model = m }
}

// WithHost sets the server address. Default is DefaultHost.
func WithHost(host string) Option {
	return func(c *config) { c.host = host }
}

// WithHTTPClient sets the HTTP client used to reach the server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithClient uses an existing Ollama client; WithHost and WithHTTPClient are ignored.
func WithClient(client *api.Client) Option {
	return func(c *config) { c.client = client }
}

// WithLogger sets the logger. Default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts []Option) (config, error) {
	cfg := config{model: DefaultModel, host: DefaultHost, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.client != nil {
		return cfg, nil
	}
	base, err := url.Parse(cfg.host)
	if err != nil {
		return cfg, fmt.Errorf("ollama: invalid host %q: %w", cfg.host, err)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = http.DefaultClient
	}
	cfg.client = api.NewClient(base, hc)
	return cfg, nil
}

// Backend implements adapter.StreamingBackend over the Ollama chat API.
type Backend struct {
	client *api.Client
	model  string
}

// New returns a Backend. It fails only when the host is not a valid URL.
func New(opts ...Option) (*Backend, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Backend{client: cfg.client, model: cfg.model}, nil
}

// ModelID returns the default model.
func (b *Backend) ModelID() string { return b.model }

// TranslateTyped builds the Ollama request for messages and settings.
func (b *Backend) TranslateTyped(messages []chatbridge.ChatMessage, s adapter.SamplingSettings) (*api.ChatRequest, error) {
	req := &api.ChatRequest{
		Model:    s.Model(b.model),
		Messages: make([]api.Message, 0, len(messages)),
		Options:  optionsMap(s),
	}
	for _, msg := range messages {
		role, err := translateRole(string(msg.Role))
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, api.Message{Role: role, Content: msg.Text})
	}
	return req, nil
}

func translateRole(role string) (string, error) {
	r, err := chatbridge.ParseRole(role)
	if err != nil {
		return "", fmt.Errorf("%w: %q", adapter.ErrUnsupportedRole, role)
	}
	return string(r), nil
}

// optionsMap converts settings to Ollama model options. Nil when nothing is set.
func optionsMap(s adapter.SamplingSettings) map[string]any {
	opts := make(map[string]any)
	if s.Temperature != nil {
		opts["temperature"] = *s.Temperature
	}
	if s.TopP != nil {
		opts["top_p"] = *s.TopP
	}
	if s.TopK != nil {
		opts["top_k"] = *s.TopK
	}
	if s.MaxTokens != nil {
		opts["num_predict"] = *s.MaxTokens
	}
	if s.Seed != nil {
		opts["seed"] = *s.Seed
	}
	if s.FrequencyPenalty != nil {
		opts["frequency_penalty"] = *s.FrequencyPenalty
	}
	if s.PresencePenalty != nil {
		opts["presence_penalty"] = *s.PresencePenalty
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// CompleteChat returns the final *api.ChatResponse.
func (b *Backend) CompleteChat(ctx context.Context, messages []chatbridge.ChatMessage, s adapter.SamplingSettings) (any, error) {
	req, err := b.TranslateTyped(messages, s)
	if err != nil {
		return nil, err
	}
	return chatOnce(ctx, b.client, req)
}

// CompleteChatStreaming yields one *api.ChatResponse per streamed chunk.
func (b *Backend) CompleteChatStreaming(ctx context.Context, messages []chatbridge.ChatMessage, s adapter.SamplingSettings) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		req, err := b.TranslateTyped(messages, s)
		if err != nil {
			yield(nil, err)
			return
		}
		stream := streambridge.Start(ctx, func(ctx context.Context, push func(*api.ChatResponse)) error {
			return chatStream(ctx, b.client, req, func(r *api.ChatResponse) { push(r) })
		})
		defer func() { _ = stream.Close() }()
		for stream.Next() {
			if !yield(stream.Current(), nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func chatOnce(ctx context.Context, client *api.Client, req *api.ChatRequest) (*api.ChatResponse, error) {
	r := *req
	stream := false
	r.Stream = &stream
	var out *api.ChatResponse
	err := client.Chat(ctx, &r, func(resp api.ChatResponse) error {
		out = &resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, adapter.ErrEmptyResult
	}
	return out, nil
}

func chatStream(ctx context.Context, client *api.Client, req *api.ChatRequest, onChunk func(*api.ChatResponse)) error {
	r := *req
	stream := true
	r.Stream = &stream
	return client.Chat(ctx, &r, func(resp api.ChatResponse) error {
		onChunk(&resp)
		return nil
	})
}

// Compile-time check that Backend implements StreamingBackend.
var _ adapter.StreamingBackend = (*Backend)(nil)
