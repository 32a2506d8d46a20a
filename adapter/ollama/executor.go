package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge/adapter"
	"github.com/skosovsky/chatbridge/capability"
)

// Executor implements adapter.CommandExecutor over the Ollama chat API.
// It understands adapter.CommandChatCompletions only.
type Executor struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

// NewExecutor returns an Executor. It fails only when the host is not a valid URL.
func NewExecutor(opts ...Option) (*Executor, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Executor{client: cfg.client, model: cfg.model, logger: cfg.logger}, nil
}

// BuildRequest decodes the JSON payload into *api.ChatRequest. tool_choice and
// parallel_tool_calls have no Ollama equivalent and are ignored.
func (e *Executor) BuildRequest(payload []byte) (adapter.NativeRequest, error) {
	p, err := adapter.ParsePayload(payload)
	if err != nil {
		return nil, err
	}
	req := &api.ChatRequest{
		Model:    p.Model,
		Messages: make([]api.Message, 0, len(p.Messages)),
		Options: optionsMap(adapter.SamplingSettings{
			Temperature:      p.Temperature,
			TopP:             p.TopP,
			TopK:             p.TopK,
			FrequencyPenalty: p.FrequencyPenalty,
			PresencePenalty:  p.PresencePenalty,
			MaxTokens:        p.MaxTokens,
			Seed:             p.Seed,
		}),
	}
	if req.Model == "" {
		req.Model = e.model
	}
	for _, m := range p.Messages {
		role, err := translateRole(m.Role)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, api.Message{Role: role, Content: m.Content})
	}
	if len(p.Tools) > 0 {
		// adapter.Tool and api.Tool share the OpenAI function-tool wire shape.
		b, err := json.Marshal(p.Tools)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", adapter.ErrInvalidPayload, err)
		}
		if err := json.Unmarshal(b, &req.Tools); err != nil {
			return nil, fmt.Errorf("%w: tools: %w", adapter.ErrInvalidPayload, err)
		}
	}
	return req, nil
}

func (e *Executor) request(command string, native adapter.NativeRequest) (*api.ChatRequest, error) {
	if command != adapter.CommandChatCompletions {
		return nil, fmt.Errorf("%w: %q", adapter.ErrUnsupportedCommand, command)
	}
	req, ok := native.(*api.ChatRequest)
	if !ok || req == nil {
		return nil, fmt.Errorf("%w: want *api.ChatRequest, got %T", adapter.ErrInvalidRequest, native)
	}
	return req, nil
}

// Execute runs a non-streaming chat and returns the final response as JSON.
func (e *Executor) Execute(ctx context.Context, command string, native adapter.NativeRequest) ([]byte, error) {
	req, err := e.request(command, native)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("ollama execute", zap.String("model", req.Model), zap.Int("tools", len(req.Tools)))
	resp, err := chatOnce(ctx, e.client, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// ExecuteWithCallback streams the chat and calls onChunk with each chunk as JSON.
func (e *Executor) ExecuteWithCallback(ctx context.Context, command string, native adapter.NativeRequest, onChunk func([]byte)) error {
	req, err := e.request(command, native)
	if err != nil {
		return err
	}
	e.logger.Debug("ollama execute streaming", zap.String("model", req.Model), zap.Int("tools", len(req.Tools)))
	var encodeErr error
	err = chatStream(ctx, e.client, req, func(r *api.ChatResponse) {
		if encodeErr != nil {
			return
		}
		b, err := json.Marshal(r)
		if err != nil {
			encodeErr = err
			return
		}
		onChunk(b)
	})
	if err != nil {
		return err
	}
	return encodeErr
}

// Ping reports whether the server answers.
func (e *Executor) Ping(ctx context.Context) error {
	return e.client.Heartbeat(ctx)
}

// Locator returns a capability.Locator that hands out e once the server answers.
// An unreachable server is a transient failure, so a later request tries again.
func (e *Executor) Locator() capability.Locator {
	return func(ctx context.Context) (adapter.CommandExecutor, error) {
		if err := e.Ping(ctx); err != nil {
			e.logger.Info("ollama not reachable", zap.Error(err))
			return nil, err
		}
		return e, nil
	}
}

// Compile-time check that Executor implements CommandExecutor.
var _ adapter.CommandExecutor = (*Executor)(nil)
