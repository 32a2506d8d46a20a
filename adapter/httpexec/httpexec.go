package httpexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge/adapter"
	"github.com/skosovsky/chatbridge/capability"
)

const maxErrorBody = 4 << 10

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpexec: server returned %d: %s", e.Code, e.Body)
}

// Request is the native request: the JSON body to post.
type Request struct {
	Body []byte
}

// Executor posts chat payloads to an OpenAI-compatible server.
type Executor struct {
	base   string
	client *http.Client
	apiKey string
	model  string
	logger *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the HTTP client. Default is http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(e *Executor) { e.apiKey = key }
}

// WithModel sets the model used when the payload has none.
func WithModel(m string) Option {
	return func(e *Executor) { e.model = m }
}

// WithLogger sets the logger. Default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Executor for the server at baseURL (e.g. "http://localhost:5273/v1").
func New(baseURL string, opts ...Option) *Executor {
	e := &Executor{
		base:   strings.TrimRight(baseURL, "/"),
		client: http.DefaultClient,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildRequest validates payload and fills in the default model when it is missing.
func (e *Executor) BuildRequest(payload []byte) (adapter.NativeRequest, error) {
	if _, err := adapter.ParsePayload(payload); err != nil {
		return nil, err
	}
	body := bytes.Clone(payload)
	if e.model != "" && gjson.GetBytes(body, "model").String() == "" {
		var err error
		if body, err = sjson.SetBytes(body, "model", e.model); err != nil {
			return nil, fmt.Errorf("%w: %w", adapter.ErrInvalidPayload, err)
		}
	}
	return &Request{Body: body}, nil
}

func (e *Executor) body(command string, native adapter.NativeRequest, stream bool) ([]byte, error) {
	if command != adapter.CommandChatCompletions {
		return nil, fmt.Errorf("%w: %q", adapter.ErrUnsupportedCommand, command)
	}
	req, ok := native.(*Request)
	if !ok || req == nil {
		return nil, fmt.Errorf("%w: want *httpexec.Request, got %T", adapter.ErrInvalidRequest, native)
	}
	return sjson.SetBytes(req.Body, "stream", stream)
}

func (e *Executor) post(ctx context.Context, body []byte, stream bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	res, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode/100 != 2 {
		defer func() { _ = res.Body.Close() }()
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return res, nil
}

// Execute posts the request with stream=false and returns the response body.
func (e *Executor) Execute(ctx context.Context, command string, native adapter.NativeRequest) ([]byte, error) {
	body, err := e.body(command, native, false)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("httpexec execute", zap.String("url", e.base), zap.Int("bytes", len(body)))
	res, err := e.post(ctx, body, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	return io.ReadAll(res.Body)
}

// ExecuteWithCallback posts the request with stream=true and calls onChunk with the
// data of each server-sent event until [DONE].
func (e *Executor) ExecuteWithCallback(ctx context.Context, command string, native adapter.NativeRequest, onChunk func([]byte)) error {
	body, err := e.body(command, native, true)
	if err != nil {
		return err
	}
	e.logger.Debug("httpexec execute streaming", zap.String("url", e.base), zap.Int("bytes", len(body)))
	res, err := e.post(ctx, body, true)
	if err != nil {
		return err
	}
	dec := ssestream.NewDecoder(res)
	defer func() { _ = dec.Close() }()
	for dec.Next() {
		data := bytes.TrimSpace(dec.Event().Data)
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}
		onChunk(data)
	}
	return dec.Err()
}

// Ping lists models to check that the server answers.
func (e *Executor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.base+"/models", nil)
	if err != nil {
		return err
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	res, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if res.StatusCode/100 != 2 {
		return &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}

// Locator returns a capability.Locator that hands out e once Ping succeeds. A server
// without a models endpoint (404) is cached as unavailable.
func (e *Executor) Locator() capability.Locator {
	return func(ctx context.Context) (adapter.CommandExecutor, error) {
		err := e.Ping(ctx)
		if err == nil {
			return e, nil
		}
		e.logger.Info("command executor not reachable", zap.String("url", e.base), zap.Error(err))
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", capability.ErrUnavailable, err)
		}
		return nil, err
	}
}

var _ adapter.CommandExecutor = (*Executor)(nil)
