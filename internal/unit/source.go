package unit

// Source is implemented by execution contexts allowed to see live units.
type Source interface {
	Units() Lookup
}

// Privileged is the controller-side execution source.
type Privileged struct {
	lookup Lookup
}

func NewPrivileged(lookup Lookup) Privileged {
	return Privileged{lookup: lookup}
}

func (p Privileged) Units() Lookup {
	return p.lookup
}
