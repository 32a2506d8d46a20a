package otelbridge

import (
	"context"
	"iter"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/router"
)

// ScopeName is the instrumentation scope used for the tracer.
const ScopeName = "github.com/skosovsky/chatbridge/ext/otelbridge"

// Attribute keys.
const (
	AttrModel     = attribute.Key("gen_ai.request.model")
	AttrPath      = attribute.Key("chatbridge.path")
	AttrReason    = attribute.Key("chatbridge.reason")
	AttrStreaming = attribute.Key("chatbridge.streaming")
	AttrTools     = attribute.Key("chatbridge.tools")
	AttrMessages  = attribute.Key("chatbridge.messages")
	AttrUpdates   = attribute.Key("chatbridge.updates")
	AttrError     = attribute.Key("chatbridge.error")
)

// NewObserver returns a router.Observer that adds every routing event to the span in
// the event context. Events on a non-recording span are dropped.
func NewObserver() router.Observer {
	return router.ObserverFunc(observe)
}

func observe(ctx context.Context, e router.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		AttrPath.String(string(e.Path)),
		AttrReason.String(string(e.Reason)),
		AttrModel.String(e.Model),
		AttrStreaming.Bool(e.Streaming),
	}
	if e.Err != nil {
		attrs = append(attrs, AttrError.String(e.Err.Error()))
	}
	span.AddEvent("chatbridge."+string(e.Kind), trace.WithAttributes(attrs...))
	if e.Kind == router.EventPathSelected || e.Kind == router.EventFallback {
		span.SetAttributes(AttrPath.String(string(e.Path)))
	}
}

// Option configures Wrap.
type Option func(*Client)

// WithTracerProvider sets the tracer provider. Default is otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(ScopeName)
		}
	}
}

var _ chatbridge.ChatClient = (*Client)(nil)

// Client is a chatbridge.ChatClient that traces the client it wraps.
type Client struct {
	inner  chatbridge.ChatClient
	tracer trace.Tracer
}

// Wrap returns inner decorated with tracing. Panics if inner is nil.
func Wrap(inner chatbridge.ChatClient, opts ...Option) *Client {
	if inner == nil {
		panic("otelbridge: ChatClient must not be nil")
	}
	c := &Client{inner: inner}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.GetTracerProvider().Tracer(ScopeName)
	}
	return c
}

func (c *Client) start(ctx context.Context, name string, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions, streaming bool) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		AttrMessages.Int(len(messages)),
		AttrStreaming.Bool(streaming),
	}
	if opts != nil {
		if opts.ModelID != "" {
			attrs = append(attrs, AttrModel.String(opts.ModelID))
		}
		attrs = append(attrs, AttrTools.Int(len(opts.Tools)))
	}
	return c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// GetResponse calls the wrapped client inside a "chatbridge.GetResponse" span.
func (c *Client) GetResponse(ctx context.Context, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions) (*chatbridge.ChatResponse, error) {
	ctx, span := c.start(ctx, "chatbridge.GetResponse", messages, opts, false)
	defer span.End()
	resp, err := c.inner.GetResponse(ctx, messages, opts)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return resp, nil
}

// GetStreamingResponse returns a sequence traced by a "chatbridge.GetStreamingResponse"
// span. The span starts when the sequence is ranged over and ends with the loop.
func (c *Client) GetStreamingResponse(ctx context.Context, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions) (iter.Seq2[chatbridge.ChatResponseUpdate, error], error) {
	if messages == nil {
		return nil, chatbridge.ErrNilMessages
	}
	var used atomic.Bool
	return func(yield func(chatbridge.ChatResponseUpdate, error) bool) {
		if used.Swap(true) {
			return
		}
		ctx, span := c.start(ctx, "chatbridge.GetStreamingResponse", messages, opts, true)
		defer span.End()
		stream, err := c.inner.GetStreamingResponse(ctx, messages, opts)
		if err != nil {
			fail(span, err)
			yield(chatbridge.ChatResponseUpdate{}, err)
			return
		}
		updates := 0
		defer func() { span.SetAttributes(AttrUpdates.Int(updates)) }()
		for u, err := range stream {
			if err != nil {
				fail(span, err)
				yield(u, err)
				return
			}
			updates++
			if !yield(u, nil) {
				return
			}
		}
	}, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
