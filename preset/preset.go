package preset

import (
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/internal/cast"
)

// Preset is a named chat configuration.
type Preset struct {
	ID          string
	Version     string
	Description string
	Model       string
	System      string
	Tags        []string
	options     *chatbridge.ChatOptions
}

// fileManifest is the YAML shape of a preset.
type fileManifest struct {
	ID                     string                      `yaml:"id"`
	Version                string                      `yaml:"version"`
	Description            string                      `yaml:"description"`
	Model                  string                      `yaml:"model"`
	System                 string                      `yaml:"system"`
	ModelConfig            map[string]any              `yaml:"model_config"`
	ToolMode               string                      `yaml:"tool_mode"`
	AllowMultipleToolCalls *bool                       `yaml:"allow_multiple_tool_calls"`
	Tools                  []chatbridge.ToolDescriptor `yaml:"tools"`
	Metadata               struct {
		Tags []string `yaml:"tags"`
	} `yaml:"metadata"`
}

// ParseBytes parses a YAML preset.
func ParseBytes(data []byte) (*Preset, error) {
	var m fileManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPreset, err)
	}
	return build(&m)
}

// ParseFile reads and parses a preset file.
func ParseFile(path string) (*Preset, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is validated by caller
	if err != nil {
		return nil, fmt.Errorf("preset: read file: %w", err)
	}
	return ParseBytes(data)
}

// ParseFS reads and parses a preset from fs.FS (e.g. embed.FS).
func ParseFS(fsys fs.FS, name string) (*Preset, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("preset: read fs: %w", err)
	}
	return ParseBytes(data)
}

func build(m *fileManifest) (*Preset, error) {
	if err := ValidateID(m.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPreset, err)
	}
	opts, err := modelConfigOptions(m.ModelConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPreset, m.ID, err)
	}
	if m.Model != "" {
		opts = append(opts, chatbridge.WithModelID(m.Model))
	}
	if m.ToolMode != "" {
		mode, err := chatbridge.ParseToolMode(m.ToolMode)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPreset, m.ID, err)
		}
		opts = append(opts, chatbridge.WithToolMode(mode))
	}
	if m.AllowMultipleToolCalls != nil {
		opts = append(opts, chatbridge.WithAllowMultipleToolCalls(*m.AllowMultipleToolCalls))
	}
	for i, t := range m.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: %q: tool %d: missing name", ErrInvalidPreset, m.ID, i)
		}
	}
	if len(m.Tools) > 0 {
		opts = append(opts, chatbridge.WithTools(m.Tools...))
	}
	return &Preset{
		ID:          m.ID,
		Version:     m.Version,
		Description: m.Description,
		Model:       m.Model,
		System:      m.System,
		Tags:        m.Metadata.Tags,
		options:     chatbridge.NewOptions(opts...),
	}, nil
}

// modelConfigOptions reads the sampling keys of model_config. Unknown keys are ignored;
// a known key with a value of the wrong type is an error.
func modelConfigOptions(cfg map[string]any) ([]chatbridge.Option, error) {
	var opts []chatbridge.Option
	floats := []struct {
		key string
		opt func(float64) chatbridge.Option
	}{
		{"temperature", chatbridge.WithTemperature},
		{"top_p", chatbridge.WithTopP},
		{"frequency_penalty", chatbridge.WithFrequencyPenalty},
		{"presence_penalty", chatbridge.WithPresencePenalty},
	}
	for _, f := range floats {
		v, ok := cfg[f.key]
		if !ok {
			continue
		}
		x, ok := cast.ToFloat64(v)
		if !ok {
			return nil, fmt.Errorf("model_config.%s: want number, got %T", f.key, v)
		}
		opts = append(opts, f.opt(x))
	}
	ints := []struct {
		key string
		opt func(int) chatbridge.Option
	}{
		{"top_k", chatbridge.WithTopK},
		{"max_tokens", chatbridge.WithMaxOutputTokens},
	}
	for _, f := range ints {
		v, ok := cfg[f.key]
		if !ok {
			continue
		}
		x, ok := cast.ToInt(v)
		if !ok {
			return nil, fmt.Errorf("model_config.%s: want integer, got %T", f.key, v)
		}
		opts = append(opts, f.opt(x))
	}
	if v, ok := cfg["seed"]; ok {
		seed, ok := cast.ToInt64(v)
		if !ok {
			return nil, fmt.Errorf("model_config.seed: want integer, got %T", v)
		}
		opts = append(opts, chatbridge.WithSeed(seed))
	}
	return opts, nil
}

// Options returns a copy of the preset's chat options with extra applied on top.
func (p *Preset) Options(extra ...chatbridge.Option) *chatbridge.ChatOptions {
	return p.options.Apply(extra...)
}

// Messages returns the system prompt (when set) followed by history.
func (p *Preset) Messages(history ...chatbridge.ChatMessage) []chatbridge.ChatMessage {
	out := make([]chatbridge.ChatMessage, 0, len(history)+1)
	if p.System != "" {
		out = append(out, chatbridge.NewMessage(chatbridge.RoleSystem, p.System))
	}
	return append(out, history...)
}

// Clone returns a deep copy of p.
func (p *Preset) Clone() *Preset {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.options = p.options.Clone()
	return &c
}
