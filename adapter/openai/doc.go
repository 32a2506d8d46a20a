// Package openai provides a chatbridge typed backend for the OpenAI Chat Completions API
// and any server that speaks it. CompleteChat returns *openai.ChatCompletion and
// CompleteChatStreaming yields *openai.ChatCompletionChunk; both keep their wire JSON so
// adapter.NormalizeText reads them directly.
//
// TopK has no Chat Completions field and is dropped. Tool messages carry no call id,
// so they are sent as user messages.
package openai
