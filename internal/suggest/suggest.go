package suggest

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Range is a half-open byte range into an input line.
type Range struct {
	Start int
	End   int
}

func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Suggestion replaces Range of the input with Text when applied.
type Suggestion struct {
	Range Range
	Text  string
}

// Apply returns input with the suggestion's range replaced by its text.
func (s Suggestion) Apply(input string) string {
	start := min(s.Range.Start, len(input))
	end := min(max(s.Range.End, start), len(input))
	return input[:start] + s.Text + input[end:]
}

// Suggestions is an ordered completion result covering one shared range.
type Suggestions struct {
	Range Range
	List  []Suggestion
}

func Empty() Suggestions {
	return Suggestions{}
}

func (s Suggestions) IsEmpty() bool {
	return len(s.List) == 0
}

func (s Suggestions) Texts() []string {
	out := make([]string, 0, len(s.List))
	for _, item := range s.List {
		out = append(out, item.Text)
	}
	return out
}

// Create normalizes suggestions for input: every entry is widened to the
// union range, duplicate texts are dropped and the list is sorted
// case-insensitively.
func Create(input string, list []Suggestion) Suggestions {
	if len(list) == 0 {
		return Empty()
	}
	union := list[0].Range
	for _, item := range list[1:] {
		union.Start = min(union.Start, item.Range.Start)
		union.End = max(union.End, item.Range.End)
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]Suggestion, 0, len(list))
	for _, item := range list {
		text := item.Text
		if item.Range.Start > union.Start {
			text = input[union.Start:item.Range.Start] + text
		}
		if item.Range.End < union.End {
			text += input[item.Range.End:union.End]
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, Suggestion{Range: union, Text: text})
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int {
		if c := strings.Compare(Fold(a.Text), Fold(b.Text)); c != 0 {
			return c
		}
		return strings.Compare(a.Text, b.Text)
	})
	return Suggestions{Range: union, List: out}
}

// Merge combines results computed for the same input line.
func Merge(input string, all ...Suggestions) Suggestions {
	var list []Suggestion
	for _, s := range all {
		list = append(list, s.List...)
	}
	return Create(input, list)
}

// Fold returns the case-folded form of s.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// HasPrefixFold reports whether candidate starts with typed, ignoring case.
func HasPrefixFold(candidate, typed string) bool {
	return strings.HasPrefix(Fold(candidate), Fold(typed))
}
