package gemini

import (
	"context"
	"iter"
	"math"
	"net/http"

	"google.golang.org/genai"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/adapter"
)

// DefaultModel is used when neither WithModel nor the request sets a model.
const DefaultModel = "gemini-2.5-flash"

// Request holds the per-call arguments of GenerateContent.
type Request struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Backend implements adapter.StreamingBackend over the genai SDK.
type Backend struct {
	client *genai.Client
	model  string
}

type config struct {
	model  string
	client genai.ClientConfig
}

// Option configures a Backend (e.g. WithModel, WithAPIKey).
type Option func(*config)

// WithModel sets the default model.
func WithModel(m string) Option {
	return func(c *config) { c.model = m }
}

// WithAPIKey sets the Gemini API key. Without it the SDK reads GOOGLE_API_KEY.
func WithAPIKey(key string) Option {
	return func(c *config) { c.client.APIKey = key }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *config) { c.client.HTTPOptions.BaseURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.client.HTTPClient = hc }
}

// New returns a Backend for the Gemini API backend.
func New(ctx context.Context, opts ...Option) (*Backend, error) {
	cfg := config{model: DefaultModel}
	cfg.client.Backend = genai.BackendGeminiAPI
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := genai.NewClient(ctx, &cfg.client)
	if err != nil {
		return nil, err
	}
	return &Backend{client: client, model: cfg.model}, nil
}

// ModelID returns the default model.
func (b *Backend) ModelID() string { return b.model }

// TranslateTyped builds the genai request for messages and settings.
func (b *Backend) TranslateTyped(messages []chatbridge.ChatMessage, s adapter.SamplingSettings) (*Request, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      float32Ptr(s.Temperature),
		TopP:             float32Ptr(s.TopP),
		FrequencyPenalty: float32Ptr(s.FrequencyPenalty),
		PresencePenalty:  float32Ptr(s.PresencePenalty),
		Seed:             s.Seed,
	}
	if s.TopK != nil {
		k := float32(*s.TopK)
		cfg.TopK = &k
	}
	if s.MaxTokens != nil {
		if *s.MaxTokens > math.MaxInt32 {
			cfg.MaxOutputTokens = math.MaxInt32
		} else {
			cfg.MaxOutputTokens = int32(*s.MaxTokens)
		}
	}
	if system := adapter.SystemText(messages); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chatbridge.RoleSystem:
		case chatbridge.RoleUser, chatbridge.RoleTool:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleUser))
		case chatbridge.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleModel))
		default:
			return nil, adapter.ErrUnsupportedRole
		}
	}
	return &Request{Model: s.Model(b.model), Contents: contents, Config: cfg}, nil
}

func float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}

// CompleteChat returns *genai.GenerateContentResponse.
func (b *Backend) CompleteChat(ctx context.Context, messages []chatbridge.ChatMessage, s adapter.SamplingSettings) (any, error) {
	req, err := b.TranslateTyped(messages, s)
	if err != nil {
		return nil, err
	}
	return b.client.Models.GenerateContent(ctx, req.Model, req.Contents, req.Config)
}

// CompleteChatStreaming yields one *genai.GenerateContentResponse per streamed chunk.
func (b *Backend) CompleteChatStreaming(ctx context.Context, messages []chatbridge.ChatMessage, s adapter.SamplingSettings) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		req, err := b.TranslateTyped(messages, s)
		if err != nil {
			yield(nil, err)
			return
		}
		for resp, err := range b.client.Models.GenerateContentStream(ctx, req.Model, req.Contents, req.Config) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

var _ adapter.StreamingBackend = (*Backend)(nil)
