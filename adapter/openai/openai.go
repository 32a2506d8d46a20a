package openai

import (
	"context"
	"iter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/adapter"
)

// DefaultModel is used when neither WithModel nor the request sets a model.
const DefaultModel = string(openai.ChatModelGPT4oMini)

// Backend implements adapter.StreamingBackend over the OpenAI Go SDK.
type Backend struct {
	client openai.Client
	model  shared.ChatModel
}

type config struct {
	model       string
	requestOpts []option.RequestOption
}

// Option configures a Backend (e.g. WithModel, WithBaseURL).
type Option func(*config)

// WithModel sets the default model.
func WithModel(m string) Option {
	return func(c *config) { c.model = m }
}

// WithAPIKey sets the API key. Without it the SDK reads OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(c *config) { c.requestOpts = append(c.requestOpts, option.WithAPIKey(key)) }
}

// WithBaseURL points the client at an OpenAI-compatible server (Foundry Local, vLLM, LM Studio).
func WithBaseURL(u string) Option {
	return func(c *config) { c.requestOpts = append(c.requestOpts, option.WithBaseURL(u)) }
}

// WithRequestOptions appends raw SDK request options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *config) { c.requestOpts = append(c.requestOpts, opts...) }
}

// New returns a Backend. The default model is DefaultModel.
func New(opts ...Option) *Backend {
	cfg := config{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Backend{
		client: openai.NewClient(cfg.requestOpts...),
		model:  shared.ChatModel(cfg.model), //nolint:unconvert // ChatModel is a distinct type
	}
}

// ModelID returns the default model.
func (b *Backend) ModelID() string { return string(b.model) }

// TranslateTyped builds the SDK request for messages and settings.
func (b *Backend) TranslateTyped(messages []chatbridge.ChatMessage, s adapter.SamplingSettings) (*openai.ChatCompletionNewParams, error) {
	params := &openai.ChatCompletionNewParams{
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Model:    shared.ChatModel(s.Model(string(b.model))), //nolint:unconvert // ChatModel is a distinct type
	}
	if s.Temperature != nil {
		params.Temperature = openai.Float(*s.Temperature)
	}
	if s.TopP != nil {
		params.TopP = openai.Float(*s.TopP)
	}
	if s.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*s.FrequencyPenalty)
	}
	if s.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*s.PresencePenalty)
	}
	if s.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*s.MaxTokens))
	}
	if s.Seed != nil {
		params.Seed = openai.Int(int64(*s.Seed))
	}
	for _, msg := range messages {
		union, err := messageToUnion(msg)
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, union)
	}
	return params, nil
}

func messageToUnion(msg chatbridge.ChatMessage) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case chatbridge.RoleSystem:
		return openai.SystemMessage(msg.Text), nil
	case chatbridge.RoleUser, chatbridge.RoleTool:
		// Tool results carry no call id, so they go out as user content.
		return openai.UserMessage(msg.Text), nil
	case chatbridge.RoleAssistant:
		return openai.AssistantMessage(msg.Text), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, adapter.ErrUnsupportedRole
	}
}

// CompleteChat returns *openai.ChatCompletion.
func (b *Backend) CompleteChat(ctx context.Context, messages []chatbridge.ChatMessage, s adapter.SamplingSettings) (any, error) {
	params, err := b.TranslateTyped(messages, s)
	if err != nil {
		return nil, err
	}
	return b.client.Chat.Completions.New(ctx, *params)
}

// CompleteChatStreaming yields *openai.ChatCompletionChunk values in arrival order.
func (b *Backend) CompleteChatStreaming(ctx context.Context, messages []chatbridge.ChatMessage, s adapter.SamplingSettings) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		params, err := b.TranslateTyped(messages, s)
		if err != nil {
			yield(nil, err)
			return
		}
		stream := b.client.Chat.Completions.NewStreaming(ctx, *params)
		defer func() { _ = stream.Close() }()
		for stream.Next() {
			chunk := stream.Current()
			if !yield(&chunk, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Compile-time check that Backend implements StreamingBackend.
var _ adapter.StreamingBackend = (*Backend)(nil)
