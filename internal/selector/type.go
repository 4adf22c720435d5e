package selector

import (
	"context"
	"strconv"
	"strings"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/danmuck/unitconsole/internal/suggest"
	"github.com/danmuck/unitconsole/internal/unit"
)

// Kind identifies the selector type in synced descriptors.
const Kind = "unitconsole:units"

var examples = []string{"0", "#0", "@Label", "~Advanced"}

var (
	many = &Type{requireSome: false}
	some = &Type{requireSome: true}
)

// Type parses one selector token.
type Type struct {
	requireSome bool
}

// Many accepts selectors that may resolve to no units.
func Many() *Type {
	return many
}

// Some rejects selectors that resolve to no units at execution time.
func Some() *Type {
	return some
}

// ForRequireSome returns the shared instance for the given mode.
func ForRequireSome(requireSome bool) *Type {
	if requireSome {
		return some
	}
	return many
}

func (t *Type) RequireSome() bool {
	return t.requireSome
}

func (t *Type) Kind() string {
	return Kind
}

func (t *Type) Parse(r *reader.Reader) (Selector, error) {
	start := r.Cursor()
	var sel Selector
	switch Sigil(r.Peek()) {
	case SigilAt:
		r.Skip()
		label := r.ReadUnquotedString()
		if label == "" {
			return Selector{}, r.Errorf(ErrExpectedLabel, "expected label")
		}
		sel = Selector{Sigil: SigilAt, Text: label}
	case SigilTilde:
		r.Skip()
		name := r.ReadUnquotedString()
		if name == "" {
			return Selector{}, r.Errorf(ErrExpectedCategory, "expected category")
		}
		sel = Selector{Sigil: SigilTilde, Text: name}
	case SigilHash:
		r.Skip()
		id, err := r.ReadInt()
		if err != nil {
			return Selector{}, err
		}
		sel = Selector{Sigil: SigilHash, Number: id}
	default:
		handle, err := r.ReadInt()
		if err != nil {
			return Selector{}, err
		}
		sel = Selector{Sigil: SigilNone, Number: handle}
	}
	sel.RequireSome = t.requireSome
	sel.Start = start
	sel.End = r.Cursor()
	sel.Raw = r.Input()[start:sel.End]
	return sel, nil
}

func (t *Type) ListSuggestions(ctx context.Context, src args.Source, b *suggest.Builder) *suggest.Future {
	remaining := b.Remaining()
	if strings.HasPrefix(remaining, string(SigilTilde)) {
		for _, c := range unit.Categories() {
			candidate := "~" + c.String()
			if suggest.HasPrefixFold(candidate, remaining) {
				b.Suggest(candidate)
			}
		}
		return b.Future()
	}
	return args.OnController(ctx, src, b, func(s unit.Source, b *suggest.Builder) suggest.Suggestions {
		render := renderHandle
		switch {
		case strings.HasPrefix(remaining, string(SigilAt)):
			render = renderLabel
		case strings.HasPrefix(remaining, string(SigilHash)):
			render = renderID
		}
		for _, u := range s.Units().All() {
			candidate, ok := render(u)
			if ok && suggest.HasPrefixFold(candidate, remaining) {
				b.Suggest(candidate)
			}
		}
		return b.Build()
	})
}

func (t *Type) Examples() []string {
	return append([]string(nil), examples...)
}

func renderHandle(u unit.Unit) (string, bool) {
	return strconv.Itoa(int(u.Handle)), true
}

func renderID(u unit.Unit) (string, bool) {
	return "#" + strconv.Itoa(int(u.ID)), true
}

func renderLabel(u unit.Unit) (string, bool) {
	if !u.HasLabel() {
		return "", false
	}
	return "@" + u.Label, true
}
