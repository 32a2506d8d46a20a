package adapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skosovsky/chatbridge"
)

// RequestPayload is the JSON document sent to a CommandExecutor.
// It is built fresh per request and not mutated afterwards.
type RequestPayload struct {
	Model             string           `json:"model,omitempty"`
	Messages          []PayloadMessage `json:"messages"`
	MaxTokens         *int             `json:"max_tokens,omitempty"`
	Temperature       *float64         `json:"temperature,omitempty"`
	TopP              *float64         `json:"top_p,omitempty"`
	TopK              *int             `json:"top_k,omitempty"`
	FrequencyPenalty  *float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float64         `json:"presence_penalty,omitempty"`
	Seed              *int32           `json:"seed,omitempty"`
	ParallelToolCalls *bool            `json:"parallel_tool_calls,omitempty"`
	Tools             []Tool           `json:"tools,omitempty"`
	ToolChoice        string           `json:"tool_choice,omitempty"`
}

// PayloadMessage is one {role, content} entry.
type PayloadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildPayload assembles the payload for a request. model is the backend default;
// opts.ModelID overrides it. Messages keep their order; roles are lowercase.
func BuildPayload(model string, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions) *RequestPayload {
	s, _ := TranslateOptions(opts)
	p := &RequestPayload{
		Model:            s.Model(model),
		Messages:         make([]PayloadMessage, 0, len(messages)),
		MaxTokens:        s.MaxTokens,
		Temperature:      s.Temperature,
		TopP:             s.TopP,
		TopK:             s.TopK,
		FrequencyPenalty: s.FrequencyPenalty,
		PresencePenalty:  s.PresencePenalty,
		Seed:             s.Seed,
	}
	for _, m := range messages {
		p.Messages = append(p.Messages, PayloadMessage{Role: strings.ToLower(string(m.Role)), Content: m.Text})
	}
	if opts != nil {
		p.ParallelToolCalls = opts.AllowMultipleToolCalls
		p.Tools = MapTools(opts.Tools)
		p.ToolChoice = string(opts.ToolMode)
	}
	return p
}

// Marshal encodes the payload as JSON.
func (p *RequestPayload) Marshal() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return b, nil
}

// ParsePayload decodes a payload produced by Marshal. Executors use it to build
// their native request.
func ParsePayload(data []byte) (*RequestPayload, error) {
	var p RequestPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if p.Messages == nil {
		return nil, fmt.Errorf("%w: missing messages", ErrInvalidPayload)
	}
	return &p, nil
}
