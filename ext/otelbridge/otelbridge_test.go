package otelbridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/adapter"
	"github.com/skosovsky/chatbridge/router"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordedEvent struct {
	name  string
	attrs []attribute.KeyValue
}

type recordingSpan struct {
	noop.Span

	mu     sync.Mutex
	name   string
	attrs  []attribute.KeyValue
	events []recordedEvent
	errs   []error
	status codes.Code
	ended  bool
}

func (s *recordingSpan) IsRecording() bool { return true }

func (s *recordingSpan) AddEvent(name string, opts ...trace.EventOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := trace.NewEventConfig(opts...)
	s.events = append(s.events, recordedEvent{name: name, attrs: cfg.Attributes()})
}

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, kv...)
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *recordingSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *recordingSpan) attr(key attribute.Key) (attribute.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.attrs) - 1; i >= 0; i-- {
		if s.attrs[i].Key == key {
			return s.attrs[i].Value, true
		}
	}
	return attribute.Value{}, false
}

type recordingTracer struct {
	noop.Tracer

	mu    sync.Mutex
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{name: name, attrs: cfg.Attributes()}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

func (t *recordingTracer) only(tb testing.TB) *recordingSpan {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()
	require.Len(tb, t.spans, 1)
	return t.spans[0]
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer { return p.tracer }

func newProvider() (recordingProvider, *recordingTracer) {
	tr := &recordingTracer{}
	return recordingProvider{tracer: tr}, tr
}

type answerBackend struct {
	err error
}

func (answerBackend) ModelID() string { return "phi-4-mini" }

func (b answerBackend) CompleteChat(context.Context, []chatbridge.ChatMessage, adapter.SamplingSettings) (any, error) {
	if b.err != nil {
		return nil, b.err
	}
	return map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "sunny"}}}}, nil
}

func userMessages() []chatbridge.ChatMessage {
	return []chatbridge.ChatMessage{chatbridge.NewMessage(chatbridge.RoleUser, "weather?")}
}

func TestWrap_GetResponseSpan(t *testing.T) {
	t.Parallel()
	tp, tr := newProvider()
	client := Wrap(router.New(answerBackend{}, router.WithObserver(NewObserver())), WithTracerProvider(tp))

	resp, err := client.GetResponse(context.Background(), userMessages(), chatbridge.NewOptions(chatbridge.WithModelID("phi-4")))
	require.NoError(t, err)
	assert.Equal(t, "sunny", resp.Text())

	span := tr.only(t)
	assert.Equal(t, "chatbridge.GetResponse", span.name)
	assert.True(t, span.ended)
	assert.Equal(t, codes.Unset, span.status)
	model, ok := span.attr(AttrModel)
	require.True(t, ok)
	assert.Equal(t, "phi-4", model.AsString())
	path, ok := span.attr(AttrPath)
	require.True(t, ok)
	assert.Equal(t, string(router.PathStandard), path.AsString())

	require.Len(t, span.events, 1)
	assert.Equal(t, "chatbridge.path_selected", span.events[0].name)
	assert.Contains(t, span.events[0].attrs, AttrReason.String(string(router.ReasonNoToolFields)))
}

func TestWrap_FallbackEvent(t *testing.T) {
	t.Parallel()
	tp, tr := newProvider()
	client := Wrap(router.New(answerBackend{}, router.WithObserver(NewObserver())), WithTracerProvider(tp))

	opts := chatbridge.NewOptions(chatbridge.WithTools(chatbridge.ToolDescriptor{Name: "get_weather"}))
	_, err := client.GetResponse(context.Background(), userMessages(), opts)
	require.NoError(t, err)

	span := tr.only(t)
	require.Len(t, span.events, 1)
	assert.Equal(t, "chatbridge.fallback", span.events[0].name)
	assert.Contains(t, span.events[0].attrs, AttrReason.String(string(router.ReasonCapabilityUnavailable)))
	tools, ok := span.attr(AttrTools)
	require.True(t, ok)
	assert.Equal(t, int64(1), tools.AsInt64())
}

func TestWrap_GetResponseError(t *testing.T) {
	t.Parallel()
	tp, tr := newProvider()
	boom := errors.New("backend down")
	client := Wrap(router.New(answerBackend{err: boom}), WithTracerProvider(tp))

	_, err := client.GetResponse(context.Background(), userMessages(), nil)
	require.ErrorIs(t, err, boom)

	span := tr.only(t)
	assert.True(t, span.ended)
	assert.Equal(t, codes.Error, span.status)
	require.Len(t, span.errs, 1)
	assert.ErrorIs(t, span.errs[0], boom)
}

func TestWrap_StreamingSpan(t *testing.T) {
	t.Parallel()
	tp, tr := newProvider()
	client := Wrap(router.New(answerBackend{}, router.WithObserver(NewObserver())), WithTracerProvider(tp))

	seq, err := client.GetStreamingResponse(context.Background(), userMessages(), nil)
	require.NoError(t, err)
	text, err := chatbridge.CollectText(seq)
	require.NoError(t, err)
	assert.Equal(t, "sunny", text)

	span := tr.only(t)
	assert.Equal(t, "chatbridge.GetStreamingResponse", span.name)
	assert.True(t, span.ended)
	updates, ok := span.attr(AttrUpdates)
	require.True(t, ok)
	assert.Equal(t, int64(1), updates.AsInt64())
	require.Len(t, span.events, 1)
	assert.Contains(t, span.events[0].attrs, AttrStreaming.Bool(true))

	// Single-use: a second range yields nothing and starts no span.
	for range seq {
		t.Fatal("second range must yield nothing")
	}
	tr.only(t)
}

func TestWrap_StreamingError(t *testing.T) {
	t.Parallel()
	tp, tr := newProvider()
	boom := errors.New("backend down")
	client := Wrap(router.New(answerBackend{err: boom}), WithTracerProvider(tp))

	seq, err := client.GetStreamingResponse(context.Background(), userMessages(), nil)
	require.NoError(t, err)
	_, err = chatbridge.CollectText(seq)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, codes.Error, tr.only(t).status)
}

func TestWrap_NilMessages(t *testing.T) {
	t.Parallel()
	tp, tr := newProvider()
	client := Wrap(router.New(answerBackend{}), WithTracerProvider(tp))

	_, err := client.GetStreamingResponse(context.Background(), nil, nil)
	require.ErrorIs(t, err, chatbridge.ErrNilMessages)
	assert.Empty(t, tr.spans)
}

func TestWrap_NilPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { Wrap(nil) })
}

func TestObserver_NonRecordingSpan(t *testing.T) {
	t.Parallel()
	// No span in context: the observer must not panic.
	NewObserver().Observe(context.Background(), router.Event{Kind: router.EventFallback, Err: errors.New("x")})
}
