// Package anthropic provides a chatbridge typed backend for the Anthropic Messages API.
// CompleteChat returns *anthropic.Message; CompleteChatStreaming yields
// *anthropic.MessageStreamEventUnion values. Both keep their wire JSON, and the text
// of content blocks and text deltas is picked up by adapter.NormalizeText.
//
// System messages are joined into the top-level system prompt. Tool messages are sent
// as user text because chatbridge messages carry no tool_use id. Seed and the
// frequency and presence penalties have no Anthropic field and are dropped.
package anthropic
