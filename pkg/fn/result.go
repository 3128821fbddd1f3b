// Package fn provides a small Result type and Stage combinators used to
// compose the simulation pipeline, with an OpenTelemetry span per stage.
package fn

import "fmt"

// Result carries either a value or an error through a pipeline.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v, ok: true}
}

// Err wraps an error.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Errf wraps a formatted error.
func Errf[T any](format string, args ...any) Result[T] {
	return Err[T](fmt.Errorf(format, args...))
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr reports whether the result holds an error.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value and error pair.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// UnwrapOr returns the value, or fallback when the result is an error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if r.ok {
		return r.val
	}
	return fallback
}

// FromPair converts a conventional (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}
