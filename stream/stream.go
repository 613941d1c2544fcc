// Package stream implements a lazy, single-consumer pull stream: the
// transport primitive every other package in this module is built on.
//
// A Stream produces items one at a time, only when asked. Nothing is
// computed ahead of a Next or Peek call, and nothing is buffered beyond
// the one-item pushback every combinator here supports. This mirrors how
// the parsers above it need to work: a tokenizer that re-consumes one
// code point, or a tree constructor that peeks one signal to resolve a
// fragment context, without ever materializing the rest of the input.
package stream

import "fmt"

// Item is either a value (Ok) or the end of the stream.
type Item[T any] struct {
	Value T
	End   bool
}

// Of wraps a value as a present item.
func Of[T any](v T) Item[T] {
	return Item[T]{Value: v}
}

// Source is the minimal capability a producer must implement: pull one
// item, or report that the stream is exhausted. Implementations may
// return an error, which Stream.Next/Peek propagate synchronously to the
// caller and which then "sticks" — see Stream's failed-state contract.
type Source[T any] func() (Item[T], error)

// Stream is a lazy pull stream over T. The zero value is not usable;
// construct one with New, FromSlice, FromFunc or a combinator.
//
// A Stream is single-consumer and not restartable: once Next returns an
// item, that item is gone unless it is pushed back with Push. Pulling
// the same Stream concurrently from two goroutines is not supported.
type Stream[T any] struct {
	src    Source[T]
	pushed []Item[T] // LIFO pushback buffer; rarely more than one deep
	failed error      // sticky error: once set, every future Next/Peek returns it
}

// New builds a Stream from a raw Source function.
func New[T any](src Source[T]) *Stream[T] {
	return &Stream[T]{src: src}
}

// FromFunc is an alias for New, named to match the "fn/stream" combinator
// named in the design notes.
func FromFunc[T any](src Source[T]) *Stream[T] {
	return New(src)
}

// FromSlice builds a Stream that yields each element of s in order, then
// ends. This corresponds to "of-list" in the design notes.
func FromSlice[T any](s []T) *Stream[T] {
	i := 0
	return New(func() (Item[T], error) {
		if i >= len(s) {
			return Item[T]{End: true}, nil
		}
		v := s[i]
		i++
		return Of(v), nil
	})
}

// Next advances the stream and returns the next item, or End if
// exhausted. Once an error has been returned, every subsequent call
// returns the same error again without consulting the underlying source.
func (s *Stream[T]) Next() (Item[T], error) {
	if s.failed != nil {
		return Item[T]{}, s.failed
	}
	if n := len(s.pushed); n > 0 {
		it := s.pushed[n-1]
		s.pushed = s.pushed[:n-1]
		return it, nil
	}
	it, err := s.src()
	if err != nil {
		s.failed = err
		return Item[T]{}, err
	}
	return it, nil
}

// Peek returns the next item without advancing. Repeated Peek calls
// (with no intervening Next) return the same item.
func (s *Stream[T]) Peek() (Item[T], error) {
	it, err := s.Next()
	if err != nil {
		return Item[T]{}, err
	}
	s.Push(it)
	return it, nil
}

// Push restores one item to the head of the stream, so the next Next (or
// Peek) call returns it again. This is the bounded constant-size
// pushback the tokenizers and tree constructors rely on for one-token
// (or one-signal) lookahead; nothing here prevents pushing back more
// than one item, but no component in this module needs to.
func (s *Stream[T]) Push(it Item[T]) {
	s.pushed = append(s.pushed, it)
}

// Fail forces the stream into a permanently-failed state, so every
// subsequent Next/Peek returns err. Next enters the same state by
// itself when the source returns an error; Fail lets a caller force it
// from outside.
func (s *Stream[T]) Fail(err error) {
	if err == nil {
		panic("stream: Fail called with nil error")
	}
	s.failed = err
}

// Map transforms each item of s with f. f is only ever called once per
// item, lazily, as the result stream is pulled.
func Map[T, U any](s *Stream[T], f func(T) U) *Stream[U] {
	return New(func() (Item[U], error) {
		it, err := s.Next()
		if err != nil {
			return Item[U]{}, err
		}
		if it.End {
			return Item[U]{End: true}, nil
		}
		return Of(f(it.Value)), nil
	})
}

// Filter keeps only items for which keep returns true.
func Filter[T any](s *Stream[T], keep func(T) bool) *Stream[T] {
	return New(func() (Item[T], error) {
		for {
			it, err := s.Next()
			if err != nil {
				return Item[T]{}, err
			}
			if it.End {
				return Item[T]{End: true}, nil
			}
			if keep(it.Value) {
				return it, nil
			}
		}
	})
}

// FilterMap applies f to each item, keeping the mapped value when ok is
// true and skipping the item otherwise.
func FilterMap[T, U any](s *Stream[T], f func(T) (U, bool)) *Stream[U] {
	return New(func() (Item[U], error) {
		for {
			it, err := s.Next()
			if err != nil {
				return Item[U]{}, err
			}
			if it.End {
				return Item[U]{End: true}, nil
			}
			if u, ok := f(it.Value); ok {
				return Of(u), nil
			}
		}
	})
}

// Fold drains s, accumulating with f starting from init. It forces the
// entire stream; callers needing laziness should use Iter instead.
func Fold[T, A any](s *Stream[T], init A, f func(A, T) A) (A, error) {
	acc := init
	for {
		it, err := s.Next()
		if err != nil {
			return acc, err
		}
		if it.End {
			return acc, nil
		}
		acc = f(acc, it.Value)
	}
}

// Iter calls f once per item in order, stopping at the first error f
// returns or at end of stream.
func Iter[T any](s *Stream[T], f func(T) error) error {
	for {
		it, err := s.Next()
		if err != nil {
			return err
		}
		if it.End {
			return nil
		}
		if err := f(it.Value); err != nil {
			return err
		}
	}
}

// Drain discards every remaining item, forcing production (and any
// errors) without collecting results. Useful for callers who only care
// about side effects performed by Report callbacks.
func Drain[T any](s *Stream[T]) error {
	return Iter(s, func(T) error { return nil })
}

// ToSlice drains s into a slice, in order.
func ToSlice[T any](s *Stream[T]) ([]T, error) {
	var out []T
	err := Iter(s, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// ErrFailed wraps an underlying producer error with context about which
// stream stage raised it, for error messages that name the stage.
type ErrFailed struct {
	Stage string
	Err   error
}

func (e *ErrFailed) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *ErrFailed) Unwrap() error { return e.Err }
