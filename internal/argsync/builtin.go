package argsync

import (
	"fmt"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/danmuck/unitconsole/internal/repeat"
	"github.com/danmuck/unitconsole/internal/selector"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	selectorRequireSome byte = 1 << 0

	repeatFlatten    byte = 1 << 0
	repeatZeroOrMore byte = 1 << 1
)

// RegisterBuiltins adds the unit selector and repeat serializers to r.
func RegisterBuiltins(r *Registry) error {
	if err := r.Register(selector.Kind, SelectorSerializer{}); err != nil {
		return err
	}
	return r.Register(repeat.Kind, RepeatSerializer{})
}

// SelectorSerializer transmits the require-some flag of a selector type.
type SelectorSerializer struct{}

func (SelectorSerializer) Encode(e *Encoder, t any) error {
	sel, err := asSelector(t)
	if err != nil {
		return err
	}
	var flags byte
	if sel.RequireSome() {
		flags |= selectorRequireSome
	}
	e.Byte(flags)
	return nil
}

func (SelectorSerializer) Decode(d *Decoder) (args.Type[any], error) {
	flags, err := d.Byte()
	if err != nil {
		return nil, err
	}
	if flags&^selectorRequireSome != 0 {
		return nil, fmt.Errorf("%w: selector flags 0x%02x", ErrInvalid, flags)
	}
	return args.Erase[selector.Selector](selector.ForRequireSome(flags&selectorRequireSome != 0)), nil
}

func (SelectorSerializer) EncodeDoc(_ *DocEncoder, doc string, t any) (string, error) {
	sel, err := asSelector(t)
	if err != nil {
		return "", err
	}
	return sjson.Set(doc, "requireSome", sel.RequireSome())
}

func (SelectorSerializer) DecodeDoc(_ *DocDecoder, doc gjson.Result) (args.Type[any], error) {
	requireSome, err := BoolField(doc, "requireSome")
	if err != nil {
		return nil, err
	}
	return args.Erase[selector.Selector](selector.ForRequireSome(requireSome)), nil
}

func asSelector(t any) (*selector.Type, error) {
	sel, ok := t.(*selector.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a selector type", ErrInvalid, t)
	}
	return sel, nil
}

// Repeated is the configuration surface of a repeat type, independent of
// its element types.
type Repeated interface {
	Inner() any
	Policy() repeat.Policy
	Mode() repeat.Mode
	Missing() string
}

// RepeatSerializer transmits repeat policy, mode, child and missing text.
type RepeatSerializer struct{}

func (RepeatSerializer) Encode(e *Encoder, t any) error {
	rep, err := asRepeated(t)
	if err != nil {
		return err
	}
	var flags byte
	if rep.Policy() == repeat.Flatten {
		flags |= repeatFlatten
	}
	if rep.Mode() == repeat.ZeroOrMore {
		flags |= repeatZeroOrMore
	}
	e.Byte(flags)
	if err := e.Descriptor(rep.Inner()); err != nil {
		return fmt.Errorf("repeat child: %w", err)
	}
	e.Text(rep.Missing())
	return nil
}

func (RepeatSerializer) Decode(d *Decoder) (args.Type[any], error) {
	flags, err := d.Byte()
	if err != nil {
		return nil, err
	}
	if flags&^(repeatFlatten|repeatZeroOrMore) != 0 {
		return nil, fmt.Errorf("%w: repeat flags 0x%02x", ErrInvalid, flags)
	}
	child, err := d.Descriptor()
	if err != nil {
		return nil, err
	}
	missing, err := d.Text()
	if err != nil {
		return nil, err
	}
	return build(child, flags&repeatFlatten != 0, flags&repeatZeroOrMore != 0, missing), nil
}

func (RepeatSerializer) EncodeDoc(e *DocEncoder, doc string, t any) (string, error) {
	rep, err := asRepeated(t)
	if err != nil {
		return "", err
	}
	child, err := e.Child(rep.Inner())
	if err != nil {
		return "", err
	}
	if doc, err = sjson.Set(doc, "flatten", rep.Policy() == repeat.Flatten); err != nil {
		return "", err
	}
	if doc, err = sjson.Set(doc, "zeroOrMore", rep.Mode() == repeat.ZeroOrMore); err != nil {
		return "", err
	}
	if doc, err = sjson.SetRaw(doc, "child", child); err != nil {
		return "", err
	}
	return sjson.Set(doc, "error", rep.Missing())
}

func (RepeatSerializer) DecodeDoc(d *DocDecoder, doc gjson.Result) (args.Type[any], error) {
	flatten, err := BoolField(doc, "flatten")
	if err != nil {
		return nil, err
	}
	zeroOrMore, err := BoolField(doc, "zeroOrMore")
	if err != nil {
		return nil, err
	}
	missing, err := StringField(doc, "error")
	if err != nil {
		return nil, err
	}
	child, err := d.Document(doc.Get("child"))
	if err != nil {
		return nil, fmt.Errorf("repeat child: %w", err)
	}
	return build(child, flatten, zeroOrMore, missing), nil
}

func asRepeated(t any) (Repeated, error) {
	rep, ok := t.(Repeated)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a repeat type", ErrInvalid, t)
	}
	return rep, nil
}

func build(child args.Type[any], flatten, zeroOrMore bool, missing string) args.Type[any] {
	policy := repeat.Append
	if flatten {
		policy = repeat.Flatten
	}
	mode := repeat.OneOrMore
	if zeroOrMore {
		mode = repeat.ZeroOrMore
	}
	return args.Erase[[]any](repeat.New(child, policy, mode, missing))
}
