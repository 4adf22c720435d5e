package args

import (
	"context"

	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/danmuck/unitconsole/internal/suggest"
)

// Source is the execution context of one console invocation.
type Source any

// Type parses one argument value of type T and drives its completion.
type Type[T any] interface {
	Parse(r *reader.Reader) (T, error)
	ListSuggestions(ctx context.Context, src Source, b *suggest.Builder) *suggest.Future
	Examples() []string
}

// Remote is implemented by sources that can ask the controller to complete
// the full input line on their behalf.
type Remote interface {
	RemoteSuggestions(ctx context.Context, b *suggest.Builder) *suggest.Future
}

// OnController runs local when src is a privileged source of type S,
// forwards b to the controller when src is Remote, and completes empty
// otherwise.
func OnController[S any](
	ctx context.Context,
	src Source,
	b *suggest.Builder,
	local func(S, *suggest.Builder) suggest.Suggestions,
) *suggest.Future {
	if privileged, ok := src.(S); ok {
		return suggest.Completed(local(privileged, b))
	}
	if remote, ok := src.(Remote); ok {
		return remote.RemoteSuggestions(ctx, b)
	}
	return suggest.Completed(suggest.Empty())
}

// Wrapper is implemented by adapters around another argument type.
type Wrapper interface {
	Unwrap() any
}

// Underlying peels Wrapper layers off t.
func Underlying(t any) any {
	for {
		w, ok := t.(Wrapper)
		if !ok {
			return t
		}
		t = w.Unwrap()
	}
}

// Erase adapts a typed argument to Type[any] so heterogeneous types can
// share one command table.
func Erase[T any](t Type[T]) Type[any] {
	if already, ok := any(t).(Type[any]); ok {
		return already
	}
	return erased[T]{inner: t}
}

type erased[T any] struct {
	inner Type[T]
}

func (e erased[T]) Parse(r *reader.Reader) (any, error) {
	v, err := e.inner.Parse(r)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e erased[T]) ListSuggestions(ctx context.Context, src Source, b *suggest.Builder) *suggest.Future {
	return e.inner.ListSuggestions(ctx, src, b)
}

func (e erased[T]) Examples() []string {
	return e.inner.Examples()
}

func (e erased[T]) Unwrap() any {
	return e.inner
}
