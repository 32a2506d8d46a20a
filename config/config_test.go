package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, BackendOllama, cfg.Backend)
	assert.Equal(t, ExecutorOllama, cfg.Executor.Kind)
	assert.Equal(t, "main", cfg.Presets.GitBranch)
	assert.Equal(t, 5*time.Minute, cfg.Presets.TTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chatbridge.yaml")
	data := `
backend: openai
model: gpt-4o-mini
base_url: http://127.0.0.1:5273/v1
executor:
  kind: http
  base_url: http://127.0.0.1:5273/v1
presets:
  dir: ./presets
  ttl: 30s
server:
  addr: 127.0.0.1:9090
log:
  debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.APIKeyEnv)
	assert.Equal(t, ExecutorHTTP, cfg.Executor.Kind)
	assert.Equal(t, "http://127.0.0.1:5273/v1", cfg.Executor.BaseURL)
	assert.Equal(t, "./presets", cfg.Presets.Dir)
	assert.Equal(t, 30*time.Second, cfg.Presets.TTL)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.True(t, cfg.Log.Debug)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		yaml     string
		executor string
		keyEnv   string
	}{
		{"ollama", "backend: ollama\n", ExecutorOllama, ""},
		{"openai", "backend: openai\n", ExecutorNone, "OPENAI_API_KEY"},
		{"anthropic", "backend: anthropic\n", ExecutorNone, "ANTHROPIC_API_KEY"},
		{"gemini", "backend: gemini\n", ExecutorNone, "GOOGLE_API_KEY"},
		{"explicit key env", "backend: openai\napi_key_env: MY_KEY\n", ExecutorNone, "MY_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.executor, cfg.Executor.Kind)
			assert.Equal(t, tt.keyEnv, cfg.APIKeyEnv)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "backend: bedrock\n"},
		{"unknown executor", "executor:\n  kind: grpc\n"},
		{"http executor without url", "executor:\n  kind: http\n"},
		{"negative ttl", "presets:\n  ttl: -1s\n"},
		{"presets url scheme", "presets:\n  url: ftp://example.com/presets\n"},
		{"malformed yaml", "backend: [openai\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidate_EmptyAddr(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Server.Addr = " "
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestAPIKey(t *testing.T) {
	t.Setenv("CHATBRIDGE_TEST_KEY", "sk-test")
	cfg := Config{APIKeyEnv: "CHATBRIDGE_TEST_KEY"}
	assert.Equal(t, "sk-test", cfg.APIKey())
	assert.Empty(t, Config{}.APIKey())
}
