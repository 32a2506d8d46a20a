package adapter

import (
	"github.com/skosovsky/chatbridge"
	"github.com/skosovsky/chatbridge/internal/cast"
)

// SamplingSettings holds the sampling fields a backend understands. A nil pointer
// leaves the backend default in place. Seed is narrowed to the backend's int32 width.
type SamplingSettings struct {
	Temperature      *float64
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	MaxTokens        *int
	Seed             *int32
	// ModelID is the per-request model override; empty means the backend default.
	ModelID string
}

// Model returns s.ModelID when set, otherwise fallback.
func (s SamplingSettings) Model(fallback string) string {
	if s.ModelID != "" {
		return s.ModelID
	}
	return fallback
}

// TranslateOptions copies the present fields of opts into SamplingSettings and reports
// whether the request needs the advanced path: tool mode set, multiple tool calls
// set, or at least one tool. A seed outside the int32 range is dropped.
func TranslateOptions(opts *chatbridge.ChatOptions) (SamplingSettings, bool) {
	var s SamplingSettings
	if opts == nil {
		return s, false
	}
	s.ModelID = opts.ModelID
	s.Temperature = opts.Temperature
	s.TopP = opts.TopP
	s.TopK = opts.TopK
	s.FrequencyPenalty = opts.FrequencyPenalty
	s.PresencePenalty = opts.PresencePenalty
	s.MaxTokens = opts.MaxOutputTokens
	if opts.Seed != nil {
		if seed, ok := cast.NarrowInt32(*opts.Seed); ok {
			s.Seed = &seed
		}
	}
	advanced := opts.ToolMode != "" || opts.AllowMultipleToolCalls != nil || len(opts.Tools) > 0
	return s, advanced
}
