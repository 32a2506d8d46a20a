package streambridge

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
)

// Producer runs the backend call and calls push once per chunk, in order.
// It should return when ctx is cancelled. push is safe to call from any goroutine
// and never blocks; chunks pushed after the stream is closed are dropped.
type Producer[T any] func(ctx context.Context, push func(T)) error

// Option configures a Stream.
type Option func(*settings)

type settings struct {
	onError func(error)
}

// WithErrorHandler registers fn to receive a producer error (cancellation excluded).
// fn runs on the producer goroutine after the queue is closed.
func WithErrorHandler(fn func(error)) Option {
	return func(s *settings) { s.onError = fn }
}

// Stream is a single-use pull sequence fed by a Producer.
// Next, Current and All must be called from one goroutine; Close may be called from any.
type Stream[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	items  []T
	closed bool
	err    error
	wake   chan struct{} // capacity 1: "state changed"
	done   chan struct{} // closed when the producer goroutine returns

	cur T
}

// Start launches produce on its own goroutine and returns immediately.
// Cancelling ctx, or calling Close, cancels the producer and ends the stream.
func Start[T any](ctx context.Context, produce Producer[T], opts ...Option) *Stream[T] {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run(produce, cfg)
	return s
}

func (s *Stream[T]) run(produce Producer[T], cfg settings) {
	defer close(s.done)
	err := s.safeProduce(produce)
	if err != nil && s.ctx.Err() != nil {
		// The producer gave up because it was cancelled.
		err = nil
	}
	s.mu.Lock()
	s.closed = true
	s.err = err
	s.mu.Unlock()
	s.signal()
	if err != nil && cfg.onError != nil {
		cfg.onError(err)
	}
}

// ErrProducerPanic wraps a panic raised inside a Producer.
var ErrProducerPanic = errors.New("streambridge: producer panicked")

func (s *Stream[T]) safeProduce(produce Producer[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()
	return produce(s.ctx, s.push)
}

func (s *Stream[T]) push(v T) {
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items, v)
	s.mu.Unlock()
	s.signal()
}

func (s *Stream[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next blocks until a chunk is available, the producer finishes, or the stream is
// cancelled. It returns false at the end of the stream; chunks still queued when the
// producer finishes are delivered first, chunks queued at cancellation are dropped.
func (s *Stream[T]) Next() bool {
	for {
		if s.ctx.Err() != nil {
			s.drop()
			return false
		}
		s.mu.Lock()
		if len(s.items) > 0 {
			s.cur = s.items[0]
			var zero T
			s.items[0] = zero
			s.items = s.items[1:]
			s.mu.Unlock()
			return true
		}
		if s.closed {
			s.mu.Unlock()
			s.cancel()
			return false
		}
		s.mu.Unlock()
		select {
		case <-s.wake:
		case <-s.ctx.Done():
		}
	}
}

// Current returns the chunk read by the last successful Next.
func (s *Stream[T]) Current() T { return s.cur }

// Err returns the producer error, if any, once the stream has ended.
// Cancellation is not an error.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the producer, drops queued chunks and waits for the producer
// goroutine to return. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	s.cancel()
	s.drop()
	<-s.done
	return nil
}

// Done is closed when the producer goroutine has returned.
func (s *Stream[T]) Done() <-chan struct{} { return s.done }

// All returns the remaining chunks as a range-over-func sequence. Breaking out of
// the loop closes the stream.
func (s *Stream[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for s.Next() {
			if !yield(s.Current()) {
				_ = s.Close()
				return
			}
		}
	}
}

func (s *Stream[T]) drop() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}
