package anthropic

import (
	"context"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/adapter"
)

const defaultMaxTokens int64 = 1024

// DefaultModel is used when neither WithModel nor the request sets a model.
const DefaultModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Backend implements adapter.StreamingBackend over the Anthropic Go SDK.
type Backend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

type config struct {
	model       string
	maxTokens   int64
	requestOpts []option.RequestOption
}

// Option configures a Backend (e.g. WithModel).
type Option func(*config)

// WithModel sets the default model.
func WithModel(m string) Option {
	return func(c *config) { c.model = m }
}

// WithMaxTokens sets max_tokens for requests that do not set one. Default 1024.
func WithMaxTokens(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithAPIKey sets the API key. Without it the SDK reads ANTHROPIC_API_KEY.
func WithAPIKey(key string) Option {
	return func(c *config) { c.requestOpts = append(c.requestOpts, option.WithAPIKey(key)) }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *config) { c.requestOpts = append(c.requestOpts, option.WithBaseURL(u)) }
}

// WithRequestOptions appends raw SDK request options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *config) { c.requestOpts = append(c.requestOpts, opts...) }
}

// New returns a Backend with DefaultModel.
func New(opts ...Option) *Backend {
	cfg := config{model: DefaultModel, maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Backend{
		client:    anthropic.NewClient(cfg.requestOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
	}
}

// ModelID returns the default model.
func (b *Backend) ModelID() string { return b.model }

// TranslateTyped builds the SDK request for messages and settings.
func (b *Backend) TranslateTyped(messages []chatbridge.ChatMessage, s adapter.SamplingSettings) (*anthropic.MessageNewParams, error) {
	params := &anthropic.MessageNewParams{
		MaxTokens: b.maxTokens,
		Model:     anthropic.Model(s.Model(b.model)),
	}
	if s.MaxTokens != nil {
		params.MaxTokens = int64(*s.MaxTokens)
	}
	if s.Temperature != nil {
		params.Temperature = anthropic.Float(*s.Temperature)
	}
	if s.TopP != nil {
		params.TopP = anthropic.Float(*s.TopP)
	}
	if s.TopK != nil {
		params.TopK = anthropic.Int(int64(*s.TopK))
	}
	if system := adapter.SystemText(messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, msg := range messages {
		switch msg.Role {
		case chatbridge.RoleSystem:
		case chatbridge.RoleUser, chatbridge.RoleTool:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		case chatbridge.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)))
		default:
			return nil, adapter.ErrUnsupportedRole
		}
	}
	return params, nil
}

// CompleteChat returns *anthropic.Message.
func (b *Backend) CompleteChat(ctx context.Context, messages []chatbridge.ChatMessage, s adapter.SamplingSettings) (any, error) {
	params, err := b.TranslateTyped(messages, s)
	if err != nil {
		return nil, err
	}
	return b.client.Messages.New(ctx, *params)
}

// CompleteChatStreaming yields *anthropic.MessageStreamEventUnion values in arrival order.
func (b *Backend) CompleteChatStreaming(ctx context.Context, messages []chatbridge.ChatMessage, s adapter.SamplingSettings) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		params, err := b.TranslateTyped(messages, s)
		if err != nil {
			yield(nil, err)
			return
		}
		stream := b.client.Messages.NewStreaming(ctx, *params)
		defer func() { _ = stream.Close() }()
		for stream.Next() {
			event := stream.Current()
			if !yield(&event, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, err)
		}
	}
}

var _ adapter.StreamingBackend = (*Backend)(nil)
