// Package router implements chatbridge.ChatClient on top of a typed backend and an
// optional command executor.
//
// Requests without tool fields take the standard path (the typed backend). Requests
// with tool mode, multiple-tool-call or tools set try the advanced path (the command
// executor) and fall back to the standard path, dropping the tool directives, when the
// executor is absent, the native request cannot be built, or a single-shot call returns
// nothing usable. Once an advanced stream has started there is no fallback: a producer
// failure ends the stream early and is reported through the Observer.
package router
