// Package streambridge turns a push-style producer (a callback invoked once per
// chunk from a goroutine the caller does not control) into an ordered, cancelable,
// pull-based stream.
//
// Each Stream owns an unbounded FIFO queue and one producer goroutine. Push never
// blocks the producer; Next blocks only the consumer. A producer error ends the
// stream as if the producer had finished; the error is kept for Err and passed to the
// handler set with WithErrorHandler.
package streambridge
