package adapter

import (
	"context"
	"errors"
	"iter"

	"github.com/skosovsky/chatbridge"
)

// CommandChatCompletions is the command name the router passes to a CommandExecutor.
const CommandChatCompletions = "chat_completions"

// TypedBackend is the typed, synchronous-style completion client (the standard path).
// Settings are passed per call so concurrent requests never share mutable state.
type TypedBackend interface {
	// ModelID returns the model the backend talks to when the request does not override it.
	ModelID() string
	// CompleteChat returns the backend-native response object.
	CompleteChat(ctx context.Context, messages []chatbridge.ChatMessage, settings SamplingSettings) (any, error)
}

// StreamingBackend is implemented by typed backends that can stream. The sequence yields
// backend-native chunks in order; a non-nil error ends it.
type StreamingBackend interface {
	TypedBackend
	CompleteChatStreaming(ctx context.Context, messages []chatbridge.ChatMessage, settings SamplingSettings) iter.Seq2[any, error]
}

// NativeRequest is the backend-native request object built from a JSON payload.
type NativeRequest any

// CommandExecutor is the optional command-execution surface (the advanced path).
// Implementations must be safe for concurrent use; the router shares one instance.
type CommandExecutor interface {
	// BuildRequest constructs the native request from a JSON payload.
	BuildRequest(payload []byte) (NativeRequest, error)
	// Execute runs command once and returns the JSON result.
	Execute(ctx context.Context, command string, req NativeRequest) ([]byte, error)
	// ExecuteWithCallback runs command and calls onChunk once per JSON chunk, in order,
	// until the backend signals completion or ctx is cancelled. onChunk must not block.
	ExecuteWithCallback(ctx context.Context, command string, req NativeRequest, onChunk func([]byte)) error
}

// Sentinel errors for backend and executor implementations. Callers should use errors.Is.
var (
	ErrUnsupportedRole    = errors.New("adapter: unsupported message role for this backend")
	ErrUnsupportedCommand = errors.New("adapter: unsupported command")
	ErrInvalidPayload     = errors.New("adapter: request payload is malformed")
	ErrInvalidRequest     = errors.New("adapter: native request has unexpected type")
	ErrEmptyResult        = errors.New("adapter: backend returned no usable result")
)

// SystemText joins the text of all system messages with a blank line, for backends
// that take the system prompt outside the message list.
func SystemText(messages []chatbridge.ChatMessage) string {
	var out string
	for _, m := range messages {
		if m.Role != chatbridge.RoleSystem {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += m.Text
	}
	return out
}
