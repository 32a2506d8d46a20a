// Package ollama connects chatbridge to a local Ollama server.
//
// Backend is the typed standard path: it returns *api.ChatResponse values and streams
// through a streambridge.Stream, because the Ollama client pushes chunks to a
// callback. Executor is the command surface used by the advanced path: it builds an
// *api.ChatRequest from the JSON payload, so tools reach the model.
package ollama
