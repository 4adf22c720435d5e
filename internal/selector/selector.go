package selector

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/danmuck/unitconsole/internal/unit"
	"github.com/rs/zerolog/log"
)

var (
	ErrExpectedLabel    = errors.New("selector: expected label")
	ErrExpectedCategory = errors.New("selector: expected category")
	ErrNoMatch          = errors.New("selector: no units matched")
	ErrNoRegistry       = errors.New("selector: source cannot see live units")
)

// NoMatchError reports a require-some selector that resolved to nothing.
// Selector is the text exactly as typed.
type NoMatchError struct {
	Selector string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no units matching '%s'", e.Selector)
}

func (e *NoMatchError) Unwrap() error {
	return ErrNoMatch
}

// Sigil classifies a selector token by its first byte.
type Sigil byte

const (
	SigilNone  Sigil = 0
	SigilHash  Sigil = '#'
	SigilAt    Sigil = '@'
	SigilTilde Sigil = '~'
)

func (s Sigil) String() string {
	switch s {
	case SigilNone:
		return "handle"
	case SigilHash:
		return "id"
	case SigilAt:
		return "label"
	case SigilTilde:
		return "category"
	default:
		return fmt.Sprintf("Sigil(%q)", byte(s))
	}
}

// Selector is a parsed selector token. It is immutable and resolves
// against whatever the registry holds at call time.
type Selector struct {
	Sigil       Sigil
	Number      int32
	Text        string
	RequireSome bool
	Raw         string
	Start       int
	End         int
}

func ByHandle(handle int32) Selector {
	return Selector{Sigil: SigilNone, Number: handle, Raw: strconv.Itoa(int(handle))}
}

func ByID(id int32) Selector {
	return Selector{Sigil: SigilHash, Number: id, Raw: "#" + strconv.Itoa(int(id))}
}

func ByLabel(label string) Selector {
	return Selector{Sigil: SigilAt, Text: label, Raw: "@" + label}
}

func ByCategory(name string) Selector {
	return Selector{Sigil: SigilTilde, Text: name, Raw: "~" + name}
}

// Required returns a copy of s that fails with NoMatchError when empty.
func (s Selector) Required() Selector {
	s.RequireSome = true
	return s
}

// Match reports whether u satisfies the selector.
func (s Selector) Match(u unit.Unit) bool {
	switch s.Sigil {
	case SigilNone:
		return u.Handle == s.Number
	case SigilHash:
		return u.ID == s.Number
	case SigilAt:
		return u.HasLabel() && u.Label == s.Text
	case SigilTilde:
		return u.Category.Matches(s.Text)
	default:
		return false
	}
}

// Resolve evaluates the selector for src, which must expose live units.
func (s Selector) Resolve(src args.Source) ([]unit.Unit, error) {
	units, ok := src.(unit.Source)
	if !ok {
		return nil, ErrNoRegistry
	}
	return s.ResolveIn(units.Units())
}

// ResolveIn evaluates the selector against lookup.
func (s Selector) ResolveIn(lookup unit.Lookup) ([]unit.Unit, error) {
	var out []unit.Unit
	if s.Sigil == SigilNone {
		if u, ok := lookup.Get(s.Number); ok {
			out = append(out, u)
		}
	} else {
		for _, u := range lookup.All() {
			if s.Match(u) {
				out = append(out, u)
			}
		}
	}
	log.Trace().Str("selector", s.Raw).Int("matched", len(out)).Msg("selector.resolve")
	if len(out) == 0 && s.RequireSome {
		return nil, &NoMatchError{Selector: s.Raw}
	}
	return out, nil
}

func (s Selector) String() string {
	return s.Raw
}

// Unwrap resolves every selector and returns the union of matches in
// first-seen order, de-duplicated by handle.
func Unwrap(src args.Source, selectors []Selector) ([]unit.Unit, error) {
	seen := make(map[int32]struct{})
	var out []unit.Unit
	for _, s := range selectors {
		matched, err := s.Resolve(src)
		if err != nil {
			return nil, err
		}
		for _, u := range matched {
			if _, ok := seen[u.Handle]; ok {
				continue
			}
			seen[u.Handle] = struct{}{}
			out = append(out, u)
		}
	}
	return out, nil
}
