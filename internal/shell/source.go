package shell

import (
	"context"
	"fmt"

	"github.com/danmuck/unitconsole/internal/protocol/session"
	"github.com/danmuck/unitconsole/internal/suggest"
)

// remoteSource is the shell execution source. It implements args.Remote
// and must never implement unit.Source.
type remoteSource struct {
	client *Client
}

// RemoteSuggestions asks the controller to complete the builder's input.
// The controller sees the same line, so the returned range applies as-is.
func (s remoteSource) RemoteSuggestions(ctx context.Context, b *suggest.Builder) *suggest.Future {
	input := b.Input()
	return suggest.Async(ctx, func(ctx context.Context) (suggest.Suggestions, error) {
		resp, err := s.client.SuggestRemote(ctx, input, len(input))
		if err != nil {
			return suggest.Empty(), err
		}
		return fromResponse(input, resp)
	})
}

func fromResponse(input string, resp session.SuggestResponse) (suggest.Suggestions, error) {
	if len(resp.Texts) == 0 {
		return suggest.Empty(), nil
	}
	if int(resp.End) > len(input) || resp.Start > resp.End {
		return suggest.Empty(), fmt.Errorf("%w: suggestion range %d..%d outside input of %d bytes",
			session.ErrInvalidMessage, resp.Start, resp.End, len(input))
	}
	rng := suggest.Range{Start: int(resp.Start), End: int(resp.End)}
	list := make([]suggest.Suggestion, 0, len(resp.Texts))
	for _, text := range resp.Texts {
		list = append(list, suggest.Suggestion{Range: rng, Text: text})
	}
	return suggest.Create(input, list), nil
}
