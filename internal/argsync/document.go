package argsync

import (
	"fmt"
	"strconv"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DocEncoder builds structured descriptor documents.
type DocEncoder struct {
	reg   *Registry
	depth int
}

// Document returns the JSON document for t, kind included.
func (e *DocEncoder) Document(t any) (string, error) {
	if e.depth >= maxDepth {
		return "", ErrTooDeep
	}
	s, kind, err := e.reg.serializerFor(t)
	if err != nil {
		return "", err
	}
	doc, err := sjson.Set("", "kind", kind)
	if err != nil {
		return "", err
	}
	e.depth++
	defer func() { e.depth-- }()
	return s.EncodeDoc(e, doc, args.Underlying(t))
}

// Child returns raw JSON for a nested argument type. A child without a
// serializer is rendered as the quoted Sentinel.
func (e *DocEncoder) Child(t any) (string, error) {
	if !e.reg.Transmittable(t) {
		return strconv.Quote(Sentinel), nil
	}
	return e.Document(t)
}

// DocDecoder rebuilds argument types from structured documents.
type DocDecoder struct {
	reg   *Registry
	depth int
}

// Document rebuilds the argument type described by doc.
func (d *DocDecoder) Document(doc gjson.Result) (args.Type[any], error) {
	if d.depth >= maxDepth {
		return nil, ErrTooDeep
	}
	if doc.Type == gjson.String && doc.Str == Sentinel {
		return nil, ErrDegraded
	}
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrInvalid, doc.Type)
	}
	kind := doc.Get("kind")
	if kind.Type != gjson.String {
		return nil, fmt.Errorf("%w: missing kind", ErrInvalid)
	}
	s, ok := d.reg.lookup(kind.Str)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind.Str)
	}
	d.depth++
	defer func() { d.depth-- }()
	return s.DecodeDoc(d, doc)
}

// BoolField reads a required boolean field.
func BoolField(doc gjson.Result, field string) (bool, error) {
	v := doc.Get(field)
	if !v.IsBool() {
		return false, fmt.Errorf("%w: field %q must be a boolean", ErrInvalid, field)
	}
	return v.Bool(), nil
}

// StringField reads a required string field.
func StringField(doc gjson.Result, field string) (string, error) {
	v := doc.Get(field)
	if v.Type != gjson.String {
		return "", fmt.Errorf("%w: field %q must be a string", ErrInvalid, field)
	}
	return v.Str, nil
}
