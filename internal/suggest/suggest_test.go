package suggest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/unitconsole/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestBuilderRangesCoverRemaining(t *testing.T) {
	testlog.Start(t)
	b := NewBuilder("dump @Lum", 5)
	require.Equal(t, "@Lum", b.Remaining())

	got := b.Suggest("@Lumberjack").Suggest("@Lum").Build()
	require.Equal(t, []string{"@Lumberjack"}, got.Texts())
	require.Equal(t, Range{Start: 5, End: 9}, got.Range)
	require.Equal(t, "dump @Lumberjack", got.List[0].Apply(b.Input()))
}

func TestCreateDedupesAndSortsIgnoringCase(t *testing.T) {
	testlog.Start(t)
	b := NewBuilder("x ", 2)
	got := b.Suggest("beta").Suggest("Alpha").Suggest("beta").Suggest("alpha2").Build()
	require.Equal(t, []string{"Alpha", "alpha2", "beta"}, got.Texts())
}

func TestCreateWidensToUnionRange(t *testing.T) {
	testlog.Start(t)
	input := "list #1 #"
	a := NewBuilder(input, 8).Suggest("#12").Build()
	b := NewBuilder(input, 9).Suggest("3").Build()
	merged := Merge(input, a, b)
	require.Equal(t, Range{Start: 8, End: 9}, merged.Range)
	require.Equal(t, []string{"#12", "#3"}, merged.Texts())
}

func TestCreateOffsetKeepsInput(t *testing.T) {
	testlog.Start(t)
	b := NewBuilder("turnon 1 2", 7)
	off := b.CreateOffset(9)
	require.Equal(t, "2", off.Remaining())
	require.True(t, off.Build().IsEmpty())
}

func TestHasPrefixFold(t *testing.T) {
	testlog.Start(t)
	require.True(t, HasPrefixFold("Advanced", "adv"))
	require.True(t, HasPrefixFold("Normal", ""))
	require.False(t, HasPrefixFold("Command", "x"))
}

func TestFutureAsyncAndCancel(t *testing.T) {
	testlog.Start(t)
	f := Async(context.Background(), func(context.Context) (Suggestions, error) {
		return NewBuilder("a", 0).Suggest("abc").Build(), nil
	})
	got, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"abc"}, got.Texts())

	block := make(chan struct{})
	defer close(block)
	slow := Async(context.Background(), func(context.Context) (Suggestions, error) {
		<-block
		return Empty(), nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Get(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = Failed(errors.New("boom")).Get(context.Background())
	require.EqualError(t, err, "boom")
}
