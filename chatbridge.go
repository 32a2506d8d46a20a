package chatbridge

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Role is the message role in a chat (system, user, assistant, tool).
type Role string

// Chat message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole accepts a role name in any case and returns the canonical lowercase Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// ChatMessage is a single role-tagged message. Order within a request is conversation order.
type ChatMessage struct {
	Role Role
	Text string
}

// NewMessage returns a ChatMessage with the given role and text.
func NewMessage(role Role, text string) ChatMessage {
	return ChatMessage{Role: role, Text: text}
}

// ToolMode tells the backend whether and how it may call tools.
// The zero value means "not set" and leaves the backend default in place.
type ToolMode string

// Tool modes.
const (
	ToolModeNone     ToolMode = "none"
	ToolModeAuto     ToolMode = "auto"
	ToolModeRequired ToolMode = "required"
)

// ParseToolMode accepts "", none, auto or required in any case.
func ParseToolMode(s string) (ToolMode, error) {
	switch m := ToolMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ToolModeNone, ToolModeAuto, ToolModeRequired:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidToolMode, s)
	}
}

// ToolDescriptor describes a callable function. JSONSchema is a JSON-schema-shaped
// object with "type", "properties" (name -> {type, description}) and "required".
// Richer schemas are accepted; only the recognized fields are forwarded.
type ToolDescriptor struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	JSONSchema  map[string]any `json:"parameters,omitempty" yaml:"parameters"`
}

// ChatOptions holds optional per-request settings. A nil pointer (or empty ToolMode)
// means "do not override the backend default".
type ChatOptions struct {
	// ModelID overrides the backend's model for this request.
	ModelID string

	Temperature      *float64
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	MaxOutputTokens  *int
	Seed             *int64

	ToolMode               ToolMode
	AllowMultipleToolCalls *bool
	Tools                  []ToolDescriptor
}

// Clone returns a deep copy of o. Tool schemas are cloned one level deep.
func (o *ChatOptions) Clone() *ChatOptions {
	if o == nil {
		return nil
	}
	c := *o
	c.Temperature = clonePtr(o.Temperature)
	c.TopP = clonePtr(o.TopP)
	c.TopK = clonePtr(o.TopK)
	c.FrequencyPenalty = clonePtr(o.FrequencyPenalty)
	c.PresencePenalty = clonePtr(o.PresencePenalty)
	c.MaxOutputTokens = clonePtr(o.MaxOutputTokens)
	c.Seed = clonePtr(o.Seed)
	c.AllowMultipleToolCalls = clonePtr(o.AllowMultipleToolCalls)
	if o.Tools != nil {
		c.Tools = slices.Clone(o.Tools)
		for i := range c.Tools {
			c.Tools[i].JSONSchema = maps.Clone(c.Tools[i].JSONSchema)
		}
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ChatResponse is a completed answer. Message.Role is always RoleAssistant.
// Raw is the backend-native object, kept for diagnostics.
type ChatResponse struct {
	Message ChatMessage
	Raw     any
}

// Text returns the answer text.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	return r.Message.Text
}

// ChatResponseUpdate is one streamed fragment. Concatenating TextDelta values in
// emission order reconstructs the answer (best effort; a backend may send whole messages).
type ChatResponseUpdate struct {
	Role      Role
	TextDelta string
	Raw       any
}

// ChatClient is the uniform request surface.
//
// Both methods return ErrNilMessages when messages is nil; an empty non-nil slice is
// forwarded to the backend. The streaming sequence is single-use and ends on backend
// completion, cancellation of ctx, or producer closure.
type ChatClient interface {
	GetResponse(ctx context.Context, messages []ChatMessage, opts *ChatOptions) (*ChatResponse, error)
	GetStreamingResponse(ctx context.Context, messages []ChatMessage, opts *ChatOptions) (iter.Seq2[ChatResponseUpdate, error], error)
}

// CollectText drains a stream and concatenates the text deltas.
// It stops at the first error and returns the text gathered so far with it.
func CollectText(stream iter.Seq2[ChatResponseUpdate, error]) (string, error) {
	var b strings.Builder
	for u, err := range stream {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(u.TextDelta)
	}
	return b.String(), nil
}
