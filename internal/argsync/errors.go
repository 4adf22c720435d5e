package argsync

import "errors"

// Sentinel marks a structured field whose value could not be serialized.
const Sentinel = "<<cannot serialize>>"

var (
	ErrNotTransmittable = errors.New("argsync: argument type is not transmittable")
	ErrUnknownKind      = errors.New("argsync: unknown argument kind")
	ErrKindExists       = errors.New("argsync: kind already registered")
	ErrTruncated        = errors.New("argsync: truncated descriptor")
	ErrTooDeep          = errors.New("argsync: descriptor nesting too deep")
	ErrInvalid          = errors.New("argsync: invalid descriptor")
	ErrDegraded         = errors.New("argsync: descriptor carries an unserializable field")
)
