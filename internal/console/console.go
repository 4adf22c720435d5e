package console

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/danmuck/unitconsole/internal/suggest"
)

var (
	ErrUnknownCommand    = errors.New("console: unknown command")
	ErrExpectedSeparator = errors.New("console: expected whitespace")
	ErrTrailingInput     = errors.New("console: trailing input")
	ErrCommandExists     = errors.New("console: command already registered")
	ErrInvalidCommand    = errors.New("console: invalid command")
)

// Invocation is what an Action receives for one parsed line.
type Invocation struct {
	Source  args.Source
	Input   string
	Command string
	Value   any
}

// Action runs a parsed command and returns its output text.
type Action func(ctx context.Context, inv Invocation) (string, error)

type Command struct {
	Name    string
	Summary string
	Arg     args.Type[any]
	Run     Action
}

// Examples returns complete example lines for the command.
func (c Command) Examples() []string {
	if c.Arg == nil {
		return []string{c.Name}
	}
	ex := c.Arg.Examples()
	out := make([]string, 0, len(ex))
	for _, e := range ex {
		out = append(out, c.Name+" "+e)
	}
	return out
}

// Parsed is a successfully parsed line.
type Parsed struct {
	Command Command
	Value   any
}

// Console is a concurrency-safe command table.
type Console struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func New() *Console {
	return &Console{commands: make(map[string]Command)}
}

func (c *Console) Register(cmd Command) error {
	if !validName(cmd.Name) {
		return fmt.Errorf("%w: name %q", ErrInvalidCommand, cmd.Name)
	}
	if cmd.Run == nil {
		return fmt.Errorf("%w: %s has no action", ErrInvalidCommand, cmd.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.commands[cmd.Name]; ok {
		return fmt.Errorf("%w: %s", ErrCommandExists, cmd.Name)
	}
	c.commands[cmd.Name] = cmd
	return nil
}

func (c *Console) Lookup(name string) (Command, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmd, ok := c.commands[name]
	return cmd, ok
}

// Commands returns the table ordered by name.
func (c *Console) Commands() []Command {
	c.mu.RLock()
	list := make([]Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		list = append(list, cmd)
	}
	c.mu.RUnlock()
	slices.SortFunc(list, func(a, b Command) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list
}

// Parse parses one full line without running it.
func (c *Console) Parse(input string) (Parsed, error) {
	r := reader.New(input)
	r.SkipWhitespace()
	start := r.Cursor()
	name := r.ReadUnquotedString()
	cmd, ok := c.Lookup(name)
	if !ok {
		return Parsed{}, r.ErrorAt(start, ErrUnknownCommand, "unknown command '%s'", name)
	}
	var value any
	if cmd.Arg != nil {
		if r.CanRead() {
			if r.Peek() != ' ' {
				return Parsed{}, r.Errorf(ErrExpectedSeparator, "expected whitespace to end one argument, but found trailing data")
			}
			r.Skip()
		}
		v, err := cmd.Arg.Parse(r)
		if err != nil {
			return Parsed{}, err
		}
		value = v
	}
	r.SkipWhitespace()
	if r.CanRead() {
		return Parsed{}, r.Errorf(ErrTrailingInput, "incorrect argument for command")
	}
	return Parsed{Command: cmd, Value: value}, nil
}

// Execute parses input and runs the matching command for src.
func (c *Console) Execute(ctx context.Context, src args.Source, input string) (string, error) {
	parsed, err := c.Parse(input)
	if err != nil {
		return "", err
	}
	return parsed.Command.Run(ctx, Invocation{
		Source:  src,
		Input:   input,
		Command: parsed.Command.Name,
		Value:   parsed.Value,
	})
}

// Suggest completes input as typed up to cursor.
func (c *Console) Suggest(ctx context.Context, src args.Source, input string, cursor int) *suggest.Future {
	cursor = min(max(cursor, 0), len(input))
	line := input[:cursor]
	r := reader.New(line)
	r.SkipWhitespace()
	start := r.Cursor()
	name := r.ReadUnquotedString()
	if !r.CanRead() {
		b := suggest.NewBuilder(line, start)
		for _, cmd := range c.Commands() {
			if suggest.HasPrefixFold(cmd.Name, name) {
				b.Suggest(cmd.Name)
			}
		}
		return b.Future()
	}
	cmd, ok := c.Lookup(name)
	if !ok || cmd.Arg == nil || r.Peek() != ' ' {
		return suggest.Completed(suggest.Empty())
	}
	r.Skip()
	return cmd.Arg.ListSuggestions(ctx, src, suggest.NewBuilder(line, r.Cursor()))
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !reader.IsUnquotedByte(name[i]) {
			return false
		}
	}
	return true
}
