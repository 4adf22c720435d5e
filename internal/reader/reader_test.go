package reader

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/unitconsole/internal/testutil/testlog"
)

func TestReadIntAdvancesToTokenBoundary(t *testing.T) {
	testlog.Start(t)
	r := New("-42 rest")
	v, err := r.ReadInt()
	if err != nil {
		t.Fatalf("read int: %v", err)
	}
	if v != -42 {
		t.Fatalf("unexpected value: %d", v)
	}
	if r.Cursor() != 3 {
		t.Fatalf("unexpected cursor: %d", r.Cursor())
	}
	if r.Remaining() != " rest" {
		t.Fatalf("unexpected remaining: %q", r.Remaining())
	}
}

func TestReadIntExpectedAtCursor(t *testing.T) {
	testlog.Start(t)
	r := New("#abc")
	r.Skip()
	_, err := r.ReadInt()
	if !errors.Is(err, ErrExpectedInt) {
		t.Fatalf("expected ErrExpectedInt, got %v", err)
	}
	pe, ok := AsParseError(err)
	if !ok || pe.Cursor != 1 {
		t.Fatalf("expected parse error at 1, got %+v", pe)
	}
}

func TestReadIntInvalidResetsCursor(t *testing.T) {
	testlog.Start(t)
	cases := []string{"1.5", "--2", "99999999999"}
	for _, in := range cases {
		r := New(in)
		_, err := r.ReadInt()
		if !errors.Is(err, ErrInvalidInt) {
			t.Fatalf("input=%q expected ErrInvalidInt, got %v", in, err)
		}
		if r.Cursor() != 0 {
			t.Fatalf("input=%q cursor not reset: %d", in, r.Cursor())
		}
	}
}

func TestReadUnquotedStringStopsAtDisallowed(t *testing.T) {
	testlog.Start(t)
	r := New("Lumber_jack-2.0+x!tail")
	got := r.ReadUnquotedString()
	if got != "Lumber_jack-2.0+x" {
		t.Fatalf("unexpected token: %q", got)
	}
	if r.Peek() != '!' {
		t.Fatalf("unexpected peek: %q", r.Peek())
	}
}

func TestSkipWhitespaceAndBounds(t *testing.T) {
	testlog.Start(t)
	r := New(" \t x")
	r.SkipWhitespace()
	if r.Peek() != 'x' {
		t.Fatalf("whitespace not skipped, cursor=%d", r.Cursor())
	}
	r.SetCursor(100)
	if r.CanRead() || r.Peek() != 0 {
		t.Fatalf("expected end of input")
	}
	r.SetCursor(-3)
	if r.Cursor() != 0 {
		t.Fatalf("expected clamp to 0, got %d", r.Cursor())
	}
}

func TestParseErrorContext(t *testing.T) {
	testlog.Start(t)
	r := New("shutdown 1 2 #nope")
	r.SetCursor(14)
	err := r.Errorf(ErrExpectedInt, "expected integer")
	msg := err.Error()
	if !strings.Contains(msg, "at position 14") {
		t.Fatalf("missing position: %q", msg)
	}
	if !strings.HasSuffix(msg, "...down 1 2 #<--[HERE]") {
		t.Fatalf("unexpected context: %q", msg)
	}
}
