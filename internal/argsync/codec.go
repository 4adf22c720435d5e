package argsync

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/unitconsole/internal/args"
)

const maxDepth = 32

// Encoder appends one binary descriptor and its nested children.
type Encoder struct {
	reg   *Registry
	buf   []byte
	depth int
}

func (e *Encoder) Byte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *Encoder) Uvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

func (e *Encoder) Text(s string) {
	e.Uvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// Descriptor appends the full descriptor of t, kind included.
func (e *Encoder) Descriptor(t any) error {
	if e.depth >= maxDepth {
		return ErrTooDeep
	}
	s, kind, err := e.reg.serializerFor(t)
	if err != nil {
		return err
	}
	e.Text(kind)
	e.depth++
	defer func() { e.depth-- }()
	return s.Encode(e, args.Underlying(t))
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads one binary descriptor and its nested children.
type Decoder struct {
	reg   *Registry
	data  []byte
	off   int
	depth int
}

func (d *Decoder) Byte() (byte, error) {
	if d.off >= len(d.data) {
		return 0, ErrTruncated
	}
	b := d.data[d.off]
	d.off++
	return b, nil
}

func (d *Decoder) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.data[d.off:])
	if n == 0 {
		return 0, ErrTruncated
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: uvarint overflow", ErrInvalid)
	}
	d.off += n
	return v, nil
}

func (d *Decoder) Text() (string, error) {
	n, err := d.Uvarint()
	if err != nil {
		return "", err
	}
	if n > uint64(len(d.data)-d.off) {
		return "", ErrTruncated
	}
	s := string(d.data[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

// Descriptor reads a nested descriptor and rebuilds its argument type.
func (d *Decoder) Descriptor() (args.Type[any], error) {
	if d.depth >= maxDepth {
		return nil, ErrTooDeep
	}
	kind, err := d.Text()
	if err != nil {
		return nil, err
	}
	s, ok := d.reg.lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	d.depth++
	defer func() { d.depth-- }()
	return s.Decode(d)
}

// Remaining reports how many bytes are left unread.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}
