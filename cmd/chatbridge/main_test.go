package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	anthropicadapter "github.com/skosovsky/chatbridge/adapter/anthropic"
	"github.com/skosovsky/chatbridge/adapter/gemini"
	"github.com/skosovsky/chatbridge/adapter/ollama"
	openaiadapter "github.com/skosovsky/chatbridge/adapter/openai"
	"github.com/skosovsky/chatbridge/config"
	"github.com/skosovsky/chatbridge/preset"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const testKeyEnv = "CHATBRIDGE_TEST_OPENAI_KEY"

// fakeOpenAI answers /chat/completions with a fixed answer, as JSON or as SSE
// depending on the request's "stream" field, and records the last request body.
type fakeOpenAI struct {
	srv *httptest.Server

	mu   sync.Mutex
	body map[string]any
	auth string
}

func newFakeOpenAI(t *testing.T) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(func() {
		f.srv.Close()
		http.DefaultClient.CloseIdleConnections()
	})
	return f
}

func (f *fakeOpenAI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" {
		http.NotFound(w, r)
		return
	}
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(data, &body)
	f.mu.Lock()
	f.body = body
	f.auth = r.Header.Get("Authorization")
	f.mu.Unlock()

	if stream, _ := body["stream"].(bool); stream {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"Bon", "jour"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Paris"}}]}`)
}

func (f *fakeOpenAI) last() (map[string]any, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, f.auth
}

const weatherPreset = `id: weather
description: Answers weather questions
model: gpt-4o
system: You are a weather assistant.
model_config:
  temperature: 0.5
metadata:
  tags: [demo]
tools:
  - name: get_weather
    description: Weather by city
`

// writeWorkspace writes a config pointing at baseURL, a .env file with the API key
// and a presets directory. It returns the config and env file paths.
func writeWorkspace(t *testing.T, baseURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	presets := filepath.Join(dir, "presets")
	require.NoError(t, os.MkdirAll(presets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(presets, "weather.yaml"), []byte(weatherPreset), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(presets, "greeter.yml"), []byte("id: greeter\nsystem: Be kind.\n"), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(testKeyEnv+"=sk-test\n"), 0o600))

	cfg := fmt.Sprintf(`backend: openai
base_url: %s/
api_key_env: %s
executor:
  kind: none
presets:
  dir: %s
`, baseURL, testKeyEnv, presets)
	cfgPath := filepath.Join(dir, "chatbridge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath, envPath
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestChatCommand(t *testing.T) {
	api := newFakeOpenAI(t)
	cfgPath, envPath := writeWorkspace(t, api.srv.URL)

	out, err := runCLI(t, "", "--config", cfgPath, "--env-file", envPath,
		"chat", "--temperature", "0.3", "--seed", "7", "--system", "Be brief.", "Capital", "of", "France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris\n", out)

	body, auth := api.last()
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, 0.3, body["temperature"])
	assert.Equal(t, 7.0, body["seed"])
	assert.NotContains(t, body, "top_p")
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Capital of France?", msgs[1].(map[string]any)["content"])
}

func TestChatCommand_Stdin(t *testing.T) {
	api := newFakeOpenAI(t)
	cfgPath, envPath := writeWorkspace(t, api.srv.URL)

	out, err := runCLI(t, "  Capital of France?\n", "--config", cfgPath, "--env-file", envPath, "chat")
	require.NoError(t, err)
	assert.Equal(t, "Paris\n", out)
}

func TestChatCommand_EmptyPrompt(t *testing.T) {
	api := newFakeOpenAI(t)
	cfgPath, envPath := writeWorkspace(t, api.srv.URL)

	_, err := runCLI(t, "", "--config", cfgPath, "--env-file", envPath, "chat")
	require.ErrorContains(t, err, "prompt is empty")
}

func TestChatCommand_Stream(t *testing.T) {
	api := newFakeOpenAI(t)
	cfgPath, envPath := writeWorkspace(t, api.srv.URL)

	out, err := runCLI(t, "", "--config", cfgPath, "--env-file", envPath, "chat", "--stream", "Say hello in French")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour\n", out)
}

func TestChatCommand_PresetWithToolsFallsBack(t *testing.T) {
	api := newFakeOpenAI(t)
	cfgPath, envPath := writeWorkspace(t, api.srv.URL)

	out, err := runCLI(t, "", "--config", cfgPath, "--env-file", envPath,
		"chat", "--preset", "weather", "--temperature", "0.1", "Weather in Oslo?")
	require.NoError(t, err)
	assert.Equal(t, "Paris\n", out)

	// No executor is configured, so the tool-bearing request takes the backend and
	// the tools are dropped.
	body, _ := api.last()
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, 0.1, body["temperature"])
	assert.NotContains(t, body, "tools")
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "You are a weather assistant.", msgs[0].(map[string]any)["content"])
}

func TestChatCommand_Errors(t *testing.T) {
	api := newFakeOpenAI(t)
	cfgPath, envPath := writeWorkspace(t, api.srv.URL)
	badTool := filepath.Join(t.TempDir(), "tool.json")
	require.NoError(t, os.WriteFile(badTool, []byte(`{"description":"no name"}`), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown preset", []string{"chat", "--preset", "climate", "hi"}, "not found"},
		{"bad tool mode", []string{"chat", "--tool-mode", "sometimes", "hi"}, "invalid tool mode"},
		{"nameless tool", []string{"chat", "--tool", badTool, "hi"}, "has no name"},
		{"missing tool file", []string{"chat", "--tool", filepath.Join(t.TempDir(), "absent.json"), "hi"}, "read tool file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfgPath, "--env-file", envPath}, tt.args...)
			_, err := runCLI(t, "", args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPresetsCommand(t *testing.T) {
	api := newFakeOpenAI(t)
	cfgPath, envPath := writeWorkspace(t, api.srv.URL)

	out, err := runCLI(t, "", "--config", cfgPath, "--env-file", envPath, "presets")
	require.NoError(t, err)
	assert.Equal(t, "greeter\nweather\n", out)

	out, err = runCLI(t, "", "--config", cfgPath, "--env-file", envPath, "presets", "weather")
	require.NoError(t, err)
	assert.Contains(t, out, "id:          weather\n")
	assert.Contains(t, out, "model:       gpt-4o\n")
	assert.Contains(t, out, "tags:        demo\n")
	assert.Contains(t, out, "tools:       get_weather\n")
}

func TestPresetsCommand_NoSource(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "chatbridge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backend: ollama\n"), 0o600))
	_, err := runCLI(t, "", "--config", cfgPath, "presets")
	require.ErrorContains(t, err, "no preset source configured")
}

func TestRootCommand_BadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "chatbridge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backend: bedrock\n"), 0o600))
	_, err := runCLI(t, "", "--config", cfgPath, "presets")
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRootCommand_MissingEnvFile(t *testing.T) {
	_, err := runCLI(t, "", "--env-file", filepath.Join(t.TempDir(), "absent.env"), "presets")
	require.ErrorContains(t, err, "load env file")
}

func TestNewBackend(t *testing.T) {
	t.Setenv(testKeyEnv, "sk-test")
	tests := []struct {
		backend string
		model   string
		check   func(t *testing.T, b any)
	}{
		{config.BackendOpenAI, "gpt-4o", func(t *testing.T, b any) { assert.IsType(t, &openaiadapter.Backend{}, b) }},
		{config.BackendAnthropic, "", func(t *testing.T, b any) { assert.IsType(t, &anthropicadapter.Backend{}, b) }},
		{config.BackendGemini, "gemini-2.5-pro", func(t *testing.T, b any) { assert.IsType(t, &gemini.Backend{}, b) }},
		{config.BackendOllama, "qwen2.5", func(t *testing.T, b any) { assert.IsType(t, &ollama.Backend{}, b) }},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Config{Backend: tt.backend, Model: tt.model, APIKeyEnv: testKeyEnv}
			b, err := newBackend(context.Background(), cfg, nopLogger())
			require.NoError(t, err)
			tt.check(t, b)
			if tt.model != "" {
				assert.Equal(t, tt.model, b.ModelID())
			}
		})
	}

	_, err := newBackend(context.Background(), config.Config{Backend: "bedrock"}, nopLogger())
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewCapability(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantNil bool
	}{
		{"none", config.Config{Executor: config.ExecutorConfig{Kind: config.ExecutorNone}}, true},
		{"ollama", config.Config{Backend: config.BackendOllama, Executor: config.ExecutorConfig{Kind: config.ExecutorOllama}}, false},
		{"http", config.Config{Executor: config.ExecutorConfig{Kind: config.ExecutorHTTP, BaseURL: "http://127.0.0.1:5273/v1"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := newCapability(tt.cfg, nopLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, caps == nil)
		})
	}
}

func TestNewPresets(t *testing.T) {
	reg, err := newPresets(config.Config{}, nopLogger())
	require.NoError(t, err)
	assert.Nil(t, reg)

	reg, err = newPresets(config.Config{Presets: config.PresetsConfig{URL: "https://example.com/presets"}}, nopLogger())
	require.NoError(t, err)
	require.NotNil(t, reg)

	reg, err = newPresets(config.Config{Presets: config.PresetsConfig{GitURL: "https://example.com/presets.git", GitBranch: "main"}}, nopLogger())
	require.NoError(t, err)
	require.NotNil(t, reg)
	require.NoError(t, reg.Close())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeter.yaml"), []byte("id: greeter\n"), 0o600))
	reg, err = newPresets(config.Config{Presets: config.PresetsConfig{Dir: dir}}, nopLogger())
	require.NoError(t, err)
	p, err := reg.Get(context.Background(), "greeter")
	require.NoError(t, err)
	assert.Equal(t, "greeter", p.ID)

	_, err = reg.Get(context.Background(), "absent")
	require.ErrorIs(t, err, preset.ErrNotFound)
}

func TestLoadToolFile(t *testing.T) {
	dir := t.TempDir()
	one := filepath.Join(dir, "one.json")
	many := filepath.Join(dir, "many.json")
	require.NoError(t, os.WriteFile(one, []byte(`{"name":"get_weather","parameters":{"type":"object"}}`), 0o600))
	require.NoError(t, os.WriteFile(many, []byte(` [{"name":"a"},{"name":"b"}]`), 0o600))

	tools, err := loadToolFile(one)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "get_weather", tools[0].Name)
	assert.Equal(t, "object", tools[0].JSONSchema["type"])

	tools, err = loadToolFile(many)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "b", tools[1].Name)
}

func nopLogger() *zap.Logger { return zap.NewNop() }
