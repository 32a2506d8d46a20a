// Package otelbridge connects chatbridge to OpenTelemetry.
//
// NewObserver records router events on the span carried by the request context.
// Wrap decorates any chatbridge.ChatClient with one span per call:
//
//	r := router.New(backend, router.WithObserver(otelbridge.NewObserver()))
//	client := otelbridge.Wrap(r)
//
// With both in place every span shows the path taken and any fallback as span events.
package otelbridge
