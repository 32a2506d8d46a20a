package server

import (
	"fmt"

	"github.com/skosovsky/chatbridge"
)

// chatRequest is the body of POST /v1/chat.
type chatRequest struct {
	Messages []wireMessage `json:"messages"`
	Options  *wireOptions  `json:"options,omitempty"`
	Preset   string        `json:"preset,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireOptions struct {
	Model                  string                      `json:"model,omitempty"`
	Temperature            *float64                    `json:"temperature,omitempty"`
	TopP                   *float64                    `json:"top_p,omitempty"`
	TopK                   *int                        `json:"top_k,omitempty"`
	FrequencyPenalty       *float64                    `json:"frequency_penalty,omitempty"`
	PresencePenalty        *float64                    `json:"presence_penalty,omitempty"`
	MaxTokens              *int                        `json:"max_tokens,omitempty"`
	Seed                   *int64                      `json:"seed,omitempty"`
	ToolMode               string                      `json:"tool_mode,omitempty"`
	AllowMultipleToolCalls *bool                       `json:"allow_multiple_tool_calls,omitempty"`
	Tools                  []chatbridge.ToolDescriptor `json:"tools,omitempty"`
}

func (r *chatRequest) messages() ([]chatbridge.ChatMessage, error) {
	out := make([]chatbridge.ChatMessage, 0, len(r.Messages))
	for i, m := range r.Messages {
		role, err := chatbridge.ParseRole(m.Role)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		out = append(out, chatbridge.NewMessage(role, m.Content))
	}
	return out, nil
}

// chatOptions lists only the fields the request sets, so they can be layered over a preset.
func (w *wireOptions) chatOptions() ([]chatbridge.Option, error) {
	if w == nil {
		return nil, nil
	}
	var opts []chatbridge.Option
	if w.Model != "" {
		opts = append(opts, chatbridge.WithModelID(w.Model))
	}
	if w.Temperature != nil {
		opts = append(opts, chatbridge.WithTemperature(*w.Temperature))
	}
	if w.TopP != nil {
		opts = append(opts, chatbridge.WithTopP(*w.TopP))
	}
	if w.TopK != nil {
		opts = append(opts, chatbridge.WithTopK(*w.TopK))
	}
	if w.FrequencyPenalty != nil {
		opts = append(opts, chatbridge.WithFrequencyPenalty(*w.FrequencyPenalty))
	}
	if w.PresencePenalty != nil {
		opts = append(opts, chatbridge.WithPresencePenalty(*w.PresencePenalty))
	}
	if w.MaxTokens != nil {
		opts = append(opts, chatbridge.WithMaxOutputTokens(*w.MaxTokens))
	}
	if w.Seed != nil {
		opts = append(opts, chatbridge.WithSeed(*w.Seed))
	}
	if w.ToolMode != "" {
		mode, err := chatbridge.ParseToolMode(w.ToolMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chatbridge.WithToolMode(mode))
	}
	if w.AllowMultipleToolCalls != nil {
		opts = append(opts, chatbridge.WithAllowMultipleToolCalls(*w.AllowMultipleToolCalls))
	}
	if len(w.Tools) > 0 {
		opts = append(opts, chatbridge.WithTools(w.Tools...))
	}
	return opts, nil
}

type chatResponse struct {
	Message wireMessage `json:"message"`
	Preset  string      `json:"preset,omitempty"`
}

// NDJSON stream lines.
type (
	updateLine struct {
		Role  string `json:"role"`
		Delta string `json:"delta"`
	}
	doneLine struct {
		Done bool `json:"done"`
	}
	errorLine struct {
		Error string `json:"error"`
	}
)
