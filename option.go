package chatbridge

// Option sets one field of ChatOptions (functional options pattern).
type Option func(*ChatOptions)

// NewOptions returns ChatOptions with the given options applied.
func NewOptions(opts ...Option) *ChatOptions {
	o := &ChatOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apply applies opts to a copy of o and returns the copy. o may be nil.
func (o *ChatOptions) Apply(opts ...Option) *ChatOptions {
	c := o.Clone()
	if c == nil {
		c = &ChatOptions{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithModelID overrides the backend model.
func WithModelID(id string) Option {
	return func(o *ChatOptions) { o.ModelID = id }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(v float64) Option {
	return func(o *ChatOptions) { o.Temperature = &v }
}

// WithTopP sets nucleus sampling.
func WithTopP(v float64) Option {
	return func(o *ChatOptions) { o.TopP = &v }
}

// WithTopK sets top-k sampling.
func WithTopK(v int) Option {
	return func(o *ChatOptions) { o.TopK = &v }
}

// WithFrequencyPenalty sets the frequency penalty.
func WithFrequencyPenalty(v float64) Option {
	return func(o *ChatOptions) { o.FrequencyPenalty = &v }
}

// WithPresencePenalty sets the presence penalty.
func WithPresencePenalty(v float64) Option {
	return func(o *ChatOptions) { o.PresencePenalty = &v }
}

// WithMaxOutputTokens caps the answer length.
func WithMaxOutputTokens(v int) Option {
	return func(o *ChatOptions) { o.MaxOutputTokens = &v }
}

// WithSeed sets the sampling seed. Backends with a narrower seed type drop values that do not fit.
func WithSeed(v int64) Option {
	return func(o *ChatOptions) { o.Seed = &v }
}

// WithToolMode sets the tool mode.
func WithToolMode(m ToolMode) Option {
	return func(o *ChatOptions) { o.ToolMode = m }
}

// WithAllowMultipleToolCalls allows or forbids parallel tool calls.
func WithAllowMultipleToolCalls(v bool) Option {
	return func(o *ChatOptions) { o.AllowMultipleToolCalls = &v }
}

// WithTools appends tool descriptors.
func WithTools(tools ...ToolDescriptor) Option {
	return func(o *ChatOptions) { o.Tools = append(o.Tools, tools...) }
}
