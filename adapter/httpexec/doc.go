// Package httpexec implements adapter.CommandExecutor against any server exposing the
// OpenAI-compatible /chat/completions endpoint, such as Foundry Local, vLLM or LM
// Studio. The JSON payload is posted as-is, so tools and tool_choice reach the model
// even when the typed client cannot express them.
package httpexec
