// Package server exposes a chatbridge.ChatClient over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/preset"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
	defaultAddr         = ":8080"
)

// Presets resolves preset ids for requests that name one. *preset.Registry implements it.
type Presets interface {
	Get(ctx context.Context, id string) (*preset.Preset, error)
	List(ctx context.Context) ([]string, error)
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.address = addr
		}
	}
}

// WithLogger sets the logger. Default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPresets enables the "preset" request field and GET /v1/presets.
func WithPresets(p Presets) Option {
	return func(s *Server) { s.presets = p }
}

// Server serves POST /v1/chat, GET /v1/presets and GET /healthz.
type Server struct {
	client  chatbridge.ChatClient
	presets Presets
	logger  *zap.Logger
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(client chatbridge.ChatClient, opts ...Option) (*Server, error) {
	if client == nil {
		return nil, errors.New("server: ChatClient must not be nil")
	}
	s := &Server{
		client:  client,
		logger:  zap.NewNop(),
		address: defaultAddr,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	s.app = e
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server", zap.String("addr", s.address))

	// No WriteTimeout: streamed answers can outlive any fixed bound.
	httpServer := &http.Server{
		Addr:              s.address,
		Handler:           s.app,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/healthz", s.handleHealth)
	s.app.GET("/v1/presets", s.handlePresets)
	s.app.POST("/v1/chat", s.handleChat)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePresets(c echo.Context) error {
	if s.presets == nil {
		return c.JSON(http.StatusOK, map[string][]string{"presets": {}})
	}
	ids, err := s.presets.List(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"presets": ids})
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	messages, opts, err := s.resolve(ctx, &req)
	if err != nil {
		return toHTTPError(err)
	}

	if req.Stream {
		return s.stream(c, messages, opts)
	}
	resp, err := s.client.GetResponse(ctx, messages, opts)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, chatResponse{
		Message: wireMessage{Role: string(resp.Message.Role), Content: resp.Message.Text},
		Preset:  req.Preset,
	})
}

// resolve builds the messages and options of a request, layering request options over
// the named preset.
func (s *Server) resolve(ctx context.Context, req *chatRequest) ([]chatbridge.ChatMessage, *chatbridge.ChatOptions, error) {
	history, err := req.messages()
	if err != nil {
		return nil, nil, err
	}
	extra, err := req.Options.chatOptions()
	if err != nil {
		return nil, nil, err
	}
	if req.Preset == "" {
		return history, chatbridge.NewOptions(extra...), nil
	}
	if s.presets == nil {
		return nil, nil, invalidRequest("presets are not configured on this server")
	}
	p, err := s.presets.Get(ctx, req.Preset)
	if err != nil {
		return nil, nil, err
	}
	return p.Messages(history...), p.Options(extra...), nil
}

// stream writes NDJSON update lines followed by {"done":true}. Headers are sent with the
// first update, so an error before any output still gets a JSON error response.
func (s *Server) stream(c echo.Context, messages []chatbridge.ChatMessage, opts *chatbridge.ChatOptions) error {
	seq, err := s.client.GetStreamingResponse(c.Request().Context(), messages, opts)
	if err != nil {
		return toHTTPError(err)
	}
	res := c.Response()
	enc := json.NewEncoder(res)
	started := false
	start := func() {
		res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
		res.Header().Set("Cache-Control", "no-cache")
		res.WriteHeader(http.StatusOK)
		started = true
	}
	write := func(v any) bool {
		if err := enc.Encode(v); err != nil {
			s.logger.Debug("stream write failed", zap.Error(err))
			return false
		}
		res.Flush()
		return true
	}

	for u, err := range seq {
		if err != nil {
			if !started {
				return toHTTPError(err)
			}
			s.logger.Warn("stream failed after first update", zap.Error(err))
			write(errorLine{Error: err.Error()})
			return nil
		}
		if !started {
			start()
		}
		if !write(updateLine{Role: string(u.Role), Delta: u.TextDelta}) {
			return nil
		}
	}
	if !started {
		start()
	}
	write(doneLine{Done: true})
	return nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidRequest("request body is required")
		}
		return invalidRequest(fmt.Sprintf("invalid JSON payload: %v", err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalidRequest("request body must contain a single JSON object")
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}

func invalidRequest(msg string) requestError {
	return requestError{Status: http.StatusBadRequest, Message: msg, Type: "invalid_request_error"}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	return c.JSON(status, payload)
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type)
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message), "invalid_request_error")
		return
	}
	s.logger.Error("unhandled error", zap.Error(err))
	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error")
}

func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	var execErr *chatbridge.ExecutionError
	switch {
	case errors.Is(err, chatbridge.ErrNilMessages),
		errors.Is(err, chatbridge.ErrInvalidRole),
		errors.Is(err, chatbridge.ErrInvalidToolMode),
		errors.Is(err, preset.ErrInvalidID):
		return invalidRequest(err.Error())
	case errors.Is(err, preset.ErrNotFound):
		return requestError{Status: http.StatusNotFound, Message: err.Error(), Type: "not_found_error"}
	case errors.Is(err, context.DeadlineExceeded):
		return requestError{Status: http.StatusGatewayTimeout, Message: "request timed out", Type: "timeout_error"}
	case errors.As(err, &execErr):
		return requestError{Status: http.StatusBadGateway, Message: execErr.Error(), Type: "upstream_error"}
	}
	return requestError{Status: http.StatusInternalServerError, Message: err.Error(), Type: "server_error"}
}
