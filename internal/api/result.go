package api

// Empty is the payload of operations that return nothing on success.
type Empty struct{}

// Result is the tagged outcome of one management operation: either a
// success carrying a payload, or a failure carrying a kind and message.
type Result[T any] struct {
	value T
	err   *Error
}

// Succeed wraps a successful payload.
func Succeed[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Fail wraps a failure. Untyped errors become KindInternal; a nil error is
// itself treated as an internal fault so a Fail never reads as success.
func Fail[T any](err error) Result[T] {
	apiErr := AsError(err)
	if apiErr == nil {
		apiErr = &Error{Kind: KindInternal, Message: "internal error: failure without cause"}
	}
	return Result[T]{err: apiErr}
}

// From builds a Result from a conventional (value, error) pair.
func From[T any](value T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Succeed(value)
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool {
	return r.err == nil
}

// Value returns the payload. It is the zero value on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, or nil on success.
func (r Result[T]) Err() *Error {
	return r.err
}

// Kind returns the failure kind, or "" on success.
func (r Result[T]) Kind() ErrorKind {
	if r.err == nil {
		return ""
	}
	return r.err.Kind
}

// Message returns the failure message, or "" on success.
func (r Result[T]) Message() string {
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}
