package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/adapter"
	"github.com/skosovsky/chatbridge/capability"
	"github.com/skosovsky/chatbridge/streambridge"
)

// Compile-time check that Router implements chatbridge.ChatClient.
var _ chatbridge.ChatClient = (*Router)(nil)

// Router routes each request to the standard or advanced path. It holds no
// per-request state and is safe for concurrent use.
type Router struct {
	backend  adapter.TypedBackend
	caps     *capability.Resolver
	command  string
	logger   *zap.Logger
	observer Observer
}

// New returns a Router over backend. Panics if backend is nil.
func New(backend adapter.TypedBackend, opts ...Option) *Router {
	if backend == nil {
		panic("router: TypedBackend must not be nil")
	}
	r := &Router{
		backend:  backend,
		command:  adapter.CommandChatCompletions,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetResponse returns the completed answer. Routing itself never fails; errors come
// from the path finally taken. Cancellation returns ctx.Err().
func (r *Router) GetResponse(ctx context.Context, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions) (*chatbridge.ChatResponse, error) {
	if messages == nil {
		return nil, chatbridge.ErrNilMessages
	}
	settings, advanced := adapter.TranslateOptions(opts)
	model := settings.Model(r.backend.ModelID())
	if advanced {
		resp, err := r.advancedResponse(ctx, model, messages, opts)
		if err != nil || resp != nil {
			return resp, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	} else {
		r.selected(ctx, PathStandard, ReasonNoToolFields, model, false)
	}
	return r.standardResponse(ctx, model, messages, settings)
}

// GetStreamingResponse returns a single-use sequence of updates. Nothing runs until the
// sequence is ranged over; breaking out of the loop cancels the backend call.
func (r *Router) GetStreamingResponse(ctx context.Context, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions) (iter.Seq2[chatbridge.ChatResponseUpdate, error], error) {
	if messages == nil {
		return nil, chatbridge.ErrNilMessages
	}
	var used atomic.Bool
	return func(yield func(chatbridge.ChatResponseUpdate, error) bool) {
		if used.Swap(true) {
			return
		}
		settings, advanced := adapter.TranslateOptions(opts)
		model := settings.Model(r.backend.ModelID())
		if advanced {
			if exec, req, ok := r.prepareAdvanced(ctx, model, messages, opts, true); ok {
				r.selected(ctx, PathAdvanced, ReasonToolFields, model, true)
				r.advancedStream(ctx, model, exec, req, yield)
				return
			}
		} else {
			r.selected(ctx, PathStandard, ReasonNoToolFields, model, true)
		}
		r.standardStream(ctx, model, messages, settings, yield)
	}, nil
}

// prepareAdvanced resolves the executor and builds the native request. ok is false
// when the request must fall back to the standard path.
func (r *Router) prepareAdvanced(ctx context.Context, model string, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions, streaming bool) (adapter.CommandExecutor, adapter.NativeRequest, bool) {
	exec, ok := r.caps.Resolve(ctx)
	if !ok {
		r.fallback(ctx, ReasonCapabilityUnavailable, model, streaming, nil)
		return nil, nil, false
	}
	req, err := buildRequest(exec, r.backend.ModelID(), messages, opts)
	if err != nil {
		r.fallback(ctx, ReasonPayloadBuildFailure, model, streaming, err)
		return nil, nil, false
	}
	return exec, req, true
}

func buildRequest(exec adapter.CommandExecutor, model string, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions) (adapter.NativeRequest, error) {
	payload, err := adapter.BuildPayload(model, messages, opts).Marshal()
	if err != nil {
		return nil, err
	}
	req, err := exec.BuildRequest(payload)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: executor built no request", adapter.ErrInvalidRequest)
	}
	return req, nil
}

// advancedResponse returns (nil, nil) when the request should fall back.
func (r *Router) advancedResponse(ctx context.Context, model string, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions) (*chatbridge.ChatResponse, error) {
	exec, req, ok := r.prepareAdvanced(ctx, model, messages, opts, false)
	if !ok {
		return nil, nil
	}
	r.selected(ctx, PathAdvanced, ReasonToolFields, model, false)
	data, err := exec.Execute(ctx, r.command, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil || !adapter.UsableResult(data) {
		if err == nil {
			err = adapter.ErrEmptyResult
		}
		r.fallback(ctx, ReasonEmptyResult, model, false, err)
		return nil, nil
	}
	return adapter.NormalizeResponse(json.RawMessage(data)), nil
}

func (r *Router) standardResponse(ctx context.Context, model string, messages []chatbridge.ChatMessage, settings adapter.SamplingSettings) (*chatbridge.ChatResponse, error) {
	raw, err := r.backend.CompleteChat(ctx, messages, settings)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &chatbridge.ExecutionError{Path: string(PathStandard), Model: model, Err: err}
	}
	return adapter.NormalizeResponse(raw), nil
}

func (r *Router) advancedStream(ctx context.Context, model string, exec adapter.CommandExecutor, req adapter.NativeRequest, yield func(chatbridge.ChatResponseUpdate, error) bool) {
	stream := streambridge.Start(ctx, func(ctx context.Context, push func([]byte)) error {
		return exec.ExecuteWithCallback(ctx, r.command, req, func(chunk []byte) {
			push(bytes.Clone(chunk))
		})
	}, streambridge.WithErrorHandler(func(err error) {
		r.truncated(ctx, model, err)
	}))
	defer func() { _ = stream.Close() }()
	for stream.Next() {
		if !yield(adapter.NormalizeUpdate(json.RawMessage(stream.Current())), nil) {
			return
		}
	}
}

func (r *Router) standardStream(ctx context.Context, model string, messages []chatbridge.ChatMessage, settings adapter.SamplingSettings, yield func(chatbridge.ChatResponseUpdate, error) bool) {
	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		yield(chatbridge.ChatResponseUpdate{}, &chatbridge.ExecutionError{Path: string(PathStandard), Model: model, Err: err})
	}
	sb, ok := r.backend.(adapter.StreamingBackend)
	if !ok {
		raw, err := r.backend.CompleteChat(ctx, messages, settings)
		if err != nil {
			fail(err)
			return
		}
		yield(adapter.NormalizeUpdate(raw), nil)
		return
	}
	for raw, err := range sb.CompleteChatStreaming(ctx, messages, settings) {
		if err != nil {
			fail(err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !yield(adapter.NormalizeUpdate(raw), nil) {
			return
		}
	}
}

func (r *Router) selected(ctx context.Context, path Path, reason Reason, model string, streaming bool) {
	r.logger.Debug("route selected",
		zap.String("path", string(path)),
		zap.String("reason", string(reason)),
		zap.String("model", model),
		zap.Bool("stream", streaming),
	)
	r.observer.Observe(ctx, Event{Kind: EventPathSelected, Path: path, Reason: reason, Model: model, Streaming: streaming})
}

func (r *Router) fallback(ctx context.Context, reason Reason, model string, streaming bool, err error) {
	r.logger.Info("advanced path not taken, falling back to standard path",
		zap.String("reason", string(reason)),
		zap.String("model", model),
		zap.Bool("stream", streaming),
		zap.Error(err),
	)
	r.observer.Observe(ctx, Event{Kind: EventFallback, Path: PathStandard, Reason: reason, Model: model, Streaming: streaming, Err: err})
}

func (r *Router) truncated(ctx context.Context, model string, err error) {
	r.logger.Warn("stream producer failed, stream ended early",
		zap.String("model", model),
		zap.Error(err),
	)
	r.observer.Observe(ctx, Event{Kind: EventStreamTruncated, Path: PathAdvanced, Reason: ReasonProducerFailure, Model: model, Streaming: true, Err: err})
}
