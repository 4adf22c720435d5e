package reader

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Reader walks one line of console input.
type Reader struct {
	input  string
	cursor int
}

func New(input string) *Reader {
	return &Reader{input: input}
}

func (r *Reader) Input() string {
	return r.input
}

func (r *Reader) Cursor() int {
	return r.cursor
}

// SetCursor moves the cursor, clamped to the input bounds.
func (r *Reader) SetCursor(cursor int) {
	switch {
	case cursor < 0:
		r.cursor = 0
	case cursor > len(r.input):
		r.cursor = len(r.input)
	default:
		r.cursor = cursor
	}
}

func (r *Reader) CanRead() bool {
	return r.cursor < len(r.input)
}

func (r *Reader) Remaining() string {
	return r.input[r.cursor:]
}

// Consumed returns the input before the cursor.
func (r *Reader) Consumed() string {
	return r.input[:r.cursor]
}

// Peek returns the byte under the cursor, or 0 at end of input.
func (r *Reader) Peek() byte {
	if !r.CanRead() {
		return 0
	}
	return r.input[r.cursor]
}

func (r *Reader) Skip() {
	if r.CanRead() {
		r.cursor++
	}
}

func (r *Reader) SkipWhitespace() {
	for r.CanRead() {
		ch, size := utf8.DecodeRuneInString(r.input[r.cursor:])
		if !unicode.IsSpace(ch) {
			return
		}
		r.cursor += size
	}
}

// ReadInt reads a signed 32-bit decimal integer.
//
// Digits, '-' and '.' are consumed as one number token so that "1.5" and
// "--2" are reported as invalid integers rather than split into pieces.
func (r *Reader) ReadInt() (int32, error) {
	start := r.cursor
	for r.CanRead() && isNumberByte(r.Peek()) {
		r.cursor++
	}
	number := r.input[start:r.cursor]
	if number == "" {
		return 0, r.Errorf(ErrExpectedInt, "expected integer")
	}
	v, err := strconv.ParseInt(number, 10, 32)
	if err != nil {
		r.cursor = start
		return 0, r.Errorf(ErrInvalidInt, "invalid integer '%s'", number)
	}
	return int32(v), nil
}

// ReadUnquotedString reads the longest run of unquoted-token bytes. It may
// return an empty string; callers decide whether that is an error.
func (r *Reader) ReadUnquotedString() string {
	start := r.cursor
	for r.CanRead() && IsUnquotedByte(r.Peek()) {
		r.cursor++
	}
	return r.input[start:r.cursor]
}

// IsUnquotedByte reports whether b may appear in an unquoted token.
func IsUnquotedByte(b byte) bool {
	return b >= '0' && b <= '9' ||
		b >= 'A' && b <= 'Z' ||
		b >= 'a' && b <= 'z' ||
		b == '_' || b == '-' || b == '.' || b == '+'
}

func isNumberByte(b byte) bool {
	return b >= '0' && b <= '9' || b == '.' || b == '-'
}
