package args

import (
	"context"
	"testing"

	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/danmuck/unitconsole/internal/suggest"
	"github.com/danmuck/unitconsole/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

type word struct{}

func (word) Parse(r *reader.Reader) (string, error) {
	return r.ReadUnquotedString(), nil
}

func (word) ListSuggestions(_ context.Context, _ Source, b *suggest.Builder) *suggest.Future {
	return b.Suggest("word").Future()
}

func (word) Examples() []string {
	return []string{"word"}
}

type privileged struct{ names []string }

type forwarding struct{ calls int }

func (f *forwarding) RemoteSuggestions(_ context.Context, b *suggest.Builder) *suggest.Future {
	f.calls++
	return b.Suggest("remote").Future()
}

func localNames(p privileged, b *suggest.Builder) suggest.Suggestions {
	for _, n := range p.names {
		b.Suggest(n)
	}
	return b.Build()
}

func TestOnControllerBranches(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	got, err := OnController(ctx, privileged{names: []string{"a", "b"}}, suggest.NewBuilder("x ", 2), localNames).Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got.Texts())

	fwd := &forwarding{}
	got, err = OnController(ctx, fwd, suggest.NewBuilder("x ", 2), localNames).Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"remote"}, got.Texts())
	require.Equal(t, 1, fwd.calls)

	got, err = OnController(ctx, struct{}{}, suggest.NewBuilder("x ", 2), localNames).Get(ctx)
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}

func TestEraseKeepsBehaviorAndUnderlying(t *testing.T) {
	testlog.Start(t)
	erased := Erase[string](word{})

	v, err := erased.Parse(reader.New("hello world"))
	require.NoError(t, err)
	require.Equal(t, "hello", v)
	require.Equal(t, []string{"word"}, erased.Examples())
	require.Equal(t, word{}, Underlying(erased))

	require.Equal(t, erased, Erase(erased))
}
