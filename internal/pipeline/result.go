package pipeline

import "context"

// Result holds either the value produced by a stage or the error that stopped it.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps a stage failure.
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// From adapts a conventional (value, error) pair.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

func (r Result[T]) Value() T { return r.value }

func (r Result[T]) Err() error { return r.err }

func (r Result[T]) IsOk() bool { return r.err == nil }

// Unpack converts back to a (value, error) pair.
func (r Result[T]) Unpack() (T, error) {
	return r.value, r.err
}

// Then runs next on a successful result. A failed result is forwarded unchanged
// and next is never called.
func Then[In, Out any](ctx context.Context, r Result[In], next func(context.Context, In) Result[Out]) Result[Out] {
	if r.err != nil {
		return Fail[Out](r.err)
	}
	return next(ctx, r.value)
}

// Map applies a total function to a successful result.
func Map[In, Out any](ctx context.Context, r Result[In], f func(context.Context, In) Out) Result[Out] {
	if r.err != nil {
		return Fail[Out](r.err)
	}
	return Ok(f(ctx, r.value))
}

// Pipe threads r through steps in order, stopping at the first failure.
func Pipe[T any](ctx context.Context, r Result[T], steps ...func(context.Context, T) Result[T]) Result[T] {
	for _, step := range steps {
		if r.err != nil {
			return r
		}
		r = step(ctx, r.value)
	}
	return r
}
