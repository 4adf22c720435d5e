package unit

import (
	"fmt"

	"golang.org/x/text/cases"
)

// Category is the closed set of unit families.
type Category uint8

const (
	Normal Category = iota
	Advanced
	Command
)

var categoryNames = [...]string{
	Normal:   "Normal",
	Advanced: "Advanced",
	Command:  "Command",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

func (c Category) Valid() bool {
	return int(c) < len(categoryNames)
}

// Matches compares name against the category ignoring case.
func (c Category) Matches(name string) bool {
	return c.Valid() && fold(name) == fold(c.String())
}

// Categories returns every category in declaration order.
func Categories() []Category {
	return []Category{Normal, Advanced, Command}
}

// ParseCategory resolves a case-insensitive category name.
func ParseCategory(name string) (Category, bool) {
	for _, c := range Categories() {
		if c.Matches(name) {
			return c, true
		}
	}
	return 0, false
}

// Unit is one live addressable runtime unit.
type Unit struct {
	Handle   int32
	ID       int32
	Label    string
	Category Category
	Running  bool
}

// HasLabel reports whether the unit carries a label. An empty label means
// the unit is unlabeled.
func (u Unit) HasLabel() bool {
	return u.Label != ""
}

func (u Unit) String() string {
	label := "-"
	if u.HasLabel() {
		label = u.Label
	}
	state := "off"
	if u.Running {
		state = "on"
	}
	return fmt.Sprintf("%d #%d @%s ~%s %s", u.Handle, u.ID, label, u.Category, state)
}

func fold(s string) string {
	return cases.Fold().String(s)
}
