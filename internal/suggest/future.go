package suggest

import "context"

// Future is a completion result that may still be in flight.
type Future struct {
	done   chan struct{}
	result Suggestions
	err    error
}

// Completed returns a Future already holding s.
func Completed(s Suggestions) *Future {
	f := &Future{done: make(chan struct{}), result: s}
	close(f.done)
	return f
}

// Failed returns a Future already holding err.
func Failed(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Async runs fn on its own goroutine and completes with its result.
func Async(ctx context.Context, fn func(context.Context) (Suggestions, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the result is available or ctx ends.
func (f *Future) Get(ctx context.Context) (Suggestions, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Empty(), ctx.Err()
	}
}
