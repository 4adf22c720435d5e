package argsync

import (
	"fmt"
	"sync"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/tidwall/gjson"
)

// Kinded is implemented by argument types that name their descriptor kind.
type Kinded interface {
	Kind() string
}

// Serializer converts one argument kind to and from descriptors. Encode
// and EncodeDoc receive the argument type with adapters already peeled.
type Serializer interface {
	Encode(e *Encoder, t any) error
	Decode(d *Decoder) (args.Type[any], error)
	EncodeDoc(e *DocEncoder, doc string, t any) (string, error)
	DecodeDoc(d *DocDecoder, doc gjson.Result) (args.Type[any], error)
}

// Registry maps argument kinds to serializers.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Serializer
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Serializer)}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared registry holding the built-in unit selector
// and repeat serializers.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		if err := RegisterBuiltins(defaultReg); err != nil {
			panic(err)
		}
	})
	return defaultReg
}

func (r *Registry) Register(kind string, s Serializer) error {
	if kind == "" || s == nil {
		return fmt.Errorf("%w: empty kind or nil serializer", ErrInvalid)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[kind]; ok {
		return fmt.Errorf("%w: %q", ErrKindExists, kind)
	}
	r.items[kind] = s
	return nil
}

func (r *Registry) lookup(kind string) (Serializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[kind]
	return s, ok
}

func (r *Registry) serializerFor(t any) (Serializer, string, error) {
	k, ok := args.Underlying(t).(Kinded)
	if !ok {
		return nil, "", fmt.Errorf("%w: %T declares no kind", ErrNotTransmittable, args.Underlying(t))
	}
	s, ok := r.lookup(k.Kind())
	if !ok {
		return nil, "", fmt.Errorf("%w: no serializer for kind %q", ErrNotTransmittable, k.Kind())
	}
	return s, k.Kind(), nil
}

// Transmittable reports whether t has a registered serializer.
func (r *Registry) Transmittable(t any) bool {
	_, _, err := r.serializerFor(t)
	return err == nil
}

// Encode returns the binary descriptor of t.
func (r *Registry) Encode(t any) ([]byte, error) {
	e := &Encoder{reg: r}
	if err := e.Descriptor(t); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Decode rebuilds an argument type from one binary descriptor. Trailing
// bytes are rejected.
func (r *Registry) Decode(data []byte) (args.Type[any], error) {
	d := &Decoder{reg: r, data: data}
	t, err := d.Descriptor()
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalid, d.Remaining())
	}
	return t, nil
}

// EncodeJSON returns the structured descriptor document of t.
func (r *Registry) EncodeJSON(t any) (string, error) {
	e := &DocEncoder{reg: r}
	return e.Document(t)
}

// DecodeJSON rebuilds an argument type from a structured document.
func (r *Registry) DecodeJSON(doc string) (args.Type[any], error) {
	if !gjson.Valid(doc) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalid)
	}
	d := &DocDecoder{reg: r}
	return d.Document(gjson.Parse(doc))
}
