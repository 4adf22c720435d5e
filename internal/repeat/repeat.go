package repeat

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/danmuck/unitconsole/internal/suggest"
	"github.com/rs/zerolog/log"
)

// Kind identifies the repeat type in synced descriptors.
const Kind = "unitconsole:repeat"

var (
	ErrNoInputConsumed = errors.New("repeat: no input consumed")
	// ErrNoProgress is a contract fault of the inner type, never a user error.
	ErrNoProgress = errors.New("repeat: inner argument consumed no input")
)

// Policy decides how one inner value is added to the output list.
type Policy uint8

const (
	Append Policy = iota
	Flatten
)

func (p Policy) String() string {
	switch p {
	case Append:
		return "append"
	case Flatten:
		return "flatten"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// Mode decides whether an empty list is accepted.
type Mode uint8

const (
	OneOrMore Mode = iota
	ZeroOrMore
)

func (m Mode) String() string {
	switch m {
	case OneOrMore:
		return "one_or_more"
	case ZeroOrMore:
		return "zero_or_more"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Repeat parses inner values of type U into a list of T.
type Repeat[T, U any] struct {
	inner    args.Type[U]
	policy   Policy
	mode     Mode
	missing  string
	appendTo func([]T, U) []T
}

// Some repeats inner one or more times, appending each value. missing is
// the message reported when nothing was parsed.
func Some[T any](inner args.Type[T], missing string) *Repeat[T, T] {
	return &Repeat[T, T]{
		inner:    inner,
		policy:   Append,
		mode:     OneOrMore,
		missing:  missing,
		appendTo: appendOne[T],
	}
}

// SomeFlat repeats a list-valued inner one or more times, concatenating the
// lists.
func SomeFlat[T any](inner args.Type[[]T], missing string) *Repeat[T, []T] {
	return &Repeat[T, []T]{
		inner:    inner,
		policy:   Flatten,
		mode:     OneOrMore,
		missing:  missing,
		appendTo: appendAll[T],
	}
}

// Any repeats inner zero or more times, appending each value.
func Any[T any](inner args.Type[T]) *Repeat[T, T] {
	return &Repeat[T, T]{
		inner:    inner,
		policy:   Append,
		mode:     ZeroOrMore,
		appendTo: appendOne[T],
	}
}

// New builds an untyped repeat, used when the inner type is only known at
// run time. Flatten expands slice values of any element type.
func New(inner args.Type[any], policy Policy, mode Mode, missing string) *Repeat[any, any] {
	appendTo := appendOne[any]
	if policy == Flatten {
		appendTo = appendReflect
	}
	return &Repeat[any, any]{
		inner:    inner,
		policy:   policy,
		mode:     mode,
		missing:  missing,
		appendTo: appendTo,
	}
}

func (p *Repeat[T, U]) Kind() string {
	return Kind
}

// Inner returns the repeated argument type.
func (p *Repeat[T, U]) Inner() any {
	return p.inner
}

func (p *Repeat[T, U]) Policy() Policy {
	return p.policy
}

func (p *Repeat[T, U]) Mode() Mode {
	return p.mode
}

// Missing is the message reported when nothing was parsed.
func (p *Repeat[T, U]) Missing() string {
	return p.missing
}

func (p *Repeat[T, U]) Parse(r *reader.Reader) ([]T, error) {
	out := make([]T, 0)
	parsed := 0
	for {
		r.SkipWhitespace()
		if !r.CanRead() {
			break
		}
		before := r.Cursor()
		value, err := p.inner.Parse(r)
		if err != nil {
			return nil, err
		}
		if r.Cursor() == before {
			log.Error().
				Str("inner", fmt.Sprintf("%T", p.inner)).
				Int("cursor", before).
				Msg("repeat.no_progress")
			return nil, fmt.Errorf("%w: %T at %q", ErrNoProgress, p.inner, r.Remaining())
		}
		out = p.appendTo(out, value)
		parsed++
	}
	if parsed == 0 && p.mode == OneOrMore {
		return nil, r.Errorf(ErrNoInputConsumed, "%s", p.missing)
	}
	return slices.Clip(out), nil
}

// ListSuggestions replays the input to find the start of the trailing
// element and asks the inner type to complete from there.
func (p *Repeat[T, U]) ListSuggestions(ctx context.Context, src args.Source, b *suggest.Builder) *suggest.Future {
	r := reader.New(b.Input())
	r.SetCursor(b.Start())
	previous := r.Cursor()
	for r.CanRead() {
		if _, err := p.inner.Parse(r); err != nil {
			break
		}
		cursor := r.Cursor()
		r.SkipWhitespace()
		if cursor == r.Cursor() {
			break
		}
		previous = r.Cursor()
	}
	return p.inner.ListSuggestions(ctx, src, b.CreateOffset(previous))
}

func (p *Repeat[T, U]) Examples() []string {
	return p.inner.Examples()
}

func appendOne[T any](out []T, v T) []T {
	return append(out, v)
}

func appendAll[T any](out []T, v []T) []T {
	return append(out, v...)
}

func appendReflect(out []any, v any) []any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return append(out, v)
	}
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}
