// Package asyncstream is the asynchronous collaborator spec.md §6
// describes: "a parallel surface where every callback option returns a
// task... the only difference is the stream's next returns a task."
// It re-implements stream.Stream's capability set {next, peek, push}
// over a minimal Task future instead of a direct return: the consumer
// receives a Task to await, and each Next and Peek runs its pull in a
// goroutine of its own.
//
// Go has no native task/promise type, so Task is built the way the
// teacher signals asynchronous completion elsewhere in the pack: a
// closed channel (pages.scope's Touch/Touched pattern) rather than a
// monadic CPS type. Go() starts the producing goroutine; Await blocks
// until it finishes, which is the CPS "bridge" spec.md §6 asks for
// expressed in goroutine-and-channel terms instead of callback-passing
// terms.
package asyncstream

import "github.com/gomarkup/markup/stream"

// Task is a future value of type T: the result of a function running
// in its own goroutine, available once done is closed.
type Task[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn in a new goroutine and returns a Task for its result.
func Go[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		t.val, t.err = fn()
		close(t.done)
	}()
	return t
}

// Done returns a Task that is already resolved to v, err, for callbacks
// that have no actual suspension to perform but must still satisfy the
// Task-returning contract.
func Done[T any](v T, err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), val: v, err: err}
	close(t.done)
	return t
}

// Await blocks until t resolves and returns its value and error.
func (t *Task[T]) Await() (T, error) {
	<-t.done
	return t.val, t.err
}

// Source is the asynchronous analogue of stream.Source: pull one item,
// or report end, as a Task instead of a direct return.
type Source[T any] func() *Task[stream.Item[T]]

// Stream is the asynchronous analogue of stream.Stream: single-
// consumer, lazy, with the same one-item pushback contract, except
// Next and Peek return a Task the caller Awaits instead of blocking
// synchronously inside the call.
type Stream[T any] struct {
	src    Source[T]
	pushed []stream.Item[T]
	failed error
}

// New builds a Stream from a raw async Source.
func New[T any](src Source[T]) *Stream[T] {
	return &Stream[T]{src: src}
}

// FromSync lifts a synchronous stream.Stream into this package's Stream,
// so a caller built around asyncstream can still consume component A's
// ordinary synchronous streams (e.g. the one a fast in-memory string
// source produces, which has nothing worth suspending on).
func FromSync[T any](s *stream.Stream[T]) *Stream[T] {
	return New(func() *Task[stream.Item[T]] {
		it, err := s.Next()
		return Done(it, err)
	})
}

// Next returns a Task for the next item. Once a Task resolves to an
// error, every subsequent Next returns that same error again without
// consulting src, matching stream.Stream's sticky-failure contract.
func (s *Stream[T]) Next() *Task[stream.Item[T]] {
	if s.failed != nil {
		return Done(stream.Item[T]{}, s.failed)
	}
	if n := len(s.pushed); n > 0 {
		it := s.pushed[n-1]
		s.pushed = s.pushed[:n-1]
		return Done(it, nil)
	}
	return Go(func() (stream.Item[T], error) {
		it, err := s.src().Await()
		if err != nil {
			s.failed = err
		}
		return it, err
	})
}

// Peek returns a Task for the next item without advancing.
func (s *Stream[T]) Peek() *Task[stream.Item[T]] {
	return Go(func() (stream.Item[T], error) {
		it, err := s.Next().Await()
		if err != nil {
			return stream.Item[T]{}, err
		}
		s.Push(it)
		return it, nil
	})
}

// Push restores one item to the head of the stream.
func (s *Stream[T]) Push(it stream.Item[T]) {
	s.pushed = append(s.pushed, it)
}

// Fail forces the stream into a permanently-failed state.
func (s *Stream[T]) Fail(err error) {
	if err == nil {
		panic("asyncstream: Fail called with nil error")
	}
	s.failed = err
}

// Iter calls f once per item in order via Task, stopping at the first
// error f returns (itself as a Task, so f may suspend too) or at end of
// stream.
func Iter[T any](s *Stream[T], f func(T) *Task[struct{}]) *Task[struct{}] {
	return Go(func() (struct{}, error) {
		for {
			it, err := s.Next().Await()
			if err != nil {
				return struct{}{}, err
			}
			if it.End {
				return struct{}{}, nil
			}
			if _, err := f(it.Value).Await(); err != nil {
				return struct{}{}, err
			}
		}
	})
}
