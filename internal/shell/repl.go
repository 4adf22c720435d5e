package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
)

// Completer adapts Complete to liner. pos is a rune offset into line.
func (c *Client) Completer(ctx context.Context) liner.WordCompleter {
	return func(line string, pos int) (string, []string, string) {
		runes := []rune(line)
		pos = min(max(pos, 0), len(runes))
		cursor := len(string(runes[:pos]))
		list, err := c.Complete(ctx, line, cursor)
		if err != nil {
			log.Debug().Str("line", line).Err(err).Msg("shell.complete failed")
			return line[:cursor], nil, line[cursor:]
		}
		if list.IsEmpty() {
			return line[:cursor], nil, line[cursor:]
		}
		return line[:list.Range.Start], list.Texts(), line[cursor:]
	}
}

// REPL reads lines from the terminal until EOF, Ctrl+C, exit or the
// session ending, writing results to out.
func (c *Client) REPL(ctx context.Context, out io.Writer, historyFile string) error {
	state := liner.NewLiner()
	defer state.Close()
	state.SetCtrlCAborts(true)
	state.SetTabCompletionStyle(liner.TabPrints)
	state.SetWordCompleter(c.Completer(ctx))

	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
		defer saveHistory(state, historyFile)
	}

	prompt := c.controller + "> "
	for {
		select {
		case <-c.done:
			return c.pending.Err()
		case <-ctx.Done():
			return nil
		default:
		}
		input, err := state.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		state.AppendHistory(input)
		switch input {
		case "exit", "quit":
			return nil
		case "help":
			c.Help(out)
			continue
		}
		text, err := c.Execute(ctx, input)
		Render(out, text, err)
	}
}

// Help lists the mirrored commands with their example lines.
func (c *Client) Help(out io.Writer) {
	for _, cmd := range c.console.Commands() {
		fmt.Fprintf(out, "%-10s %s\n", cmd.Name, cmd.Summary)
		for _, ex := range cmd.Examples() {
			fmt.Fprintf(out, "    %s\n", ex)
		}
	}
}

// Render writes one execution outcome.
func Render(out io.Writer, text string, err error) {
	if err == nil {
		if text != "" {
			fmt.Fprintln(out, text)
		}
		return
	}
	var remote *RemoteError
	if pe, ok := reader.AsParseError(err); ok {
		fmt.Fprintf(out, "syntax error: %s\n", pe.Error())
		return
	}
	if errors.As(err, &remote) {
		fmt.Fprintf(out, "%s: %s\n", remote.Kind, remote.Message)
		return
	}
	fmt.Fprintf(out, "error: %v\n", err)
}

func saveHistory(state *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Debug().Str("path", path).Err(err).Msg("shell.history not saved")
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		log.Debug().Str("path", path).Err(err).Msg("shell.history not saved")
		return
	}
	defer f.Close()
	_, _ = state.WriteHistory(f)
}
