package core

// State is the outcome of one query as seen by a consumer. There are exactly
// three variants: Loading, Success and Failure. A query that has not started
// has no State at all.
type State[T any] interface {
	isState(T)
}

// Loading means the query is in flight.
type Loading[T any] struct{}

// Success carries the query result.
type Success[T any] struct {
	Data T
}

// Failure carries a human readable message and the error it came from.
type Failure[T any] struct {
	Message string
	Err     error
}

func (Loading[T]) isState(T) {}
func (Success[T]) isState(T) {}
func (Failure[T]) isState(T) {}

func (f Failure[T]) Error() string { return f.Message }
func (f Failure[T]) Unwrap() error { return f.Err }

// Succeed wraps data in a Success state.
func Succeed[T any](data T) State[T] {
	return Success[T]{Data: data}
}

// Fail builds a Failure state from err, keeping its message verbatim.
func Fail[T any](err error) State[T] {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Failure[T]{Message: msg, Err: err}
}

// Match dispatches on s. Every variant must be handled.
func Match[T, R any](s State[T], loading func() R, success func(T) R, failure func(Failure[T]) R) R {
	switch v := s.(type) {
	case Loading[T]:
		return loading()
	case Success[T]:
		return success(v.Data)
	case Failure[T]:
		return failure(v)
	default:
		panic("core: unknown state variant")
	}
}

// Unwrap converts a terminal state into the usual (value, error) pair.
// Loading is reported as ErrStillLoading.
func Unwrap[T any](s State[T]) (T, error) {
	var zero T
	switch v := s.(type) {
	case Success[T]:
		return v.Data, nil
	case Failure[T]:
		return zero, v
	default:
		return zero, ErrStillLoading
	}
}
